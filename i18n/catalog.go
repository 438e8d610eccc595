// Package i18n loads the bot reply catalogs and formats localized messages
// with golang.org/x/text.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

const (
	// BaseLocale is the canonical locale every other catalog must cover.
	BaseLocale = "en"

	// DefaultLocale is the reply language used when none is configured.
	DefaultLocale = "ru"
)

// Message keys.
const (
	MsgStartRegistered      = "start.registered"
	MsgBalanceCurrent       = "balance.current"
	MsgTransferUsage        = "transfer.usage"
	MsgTransferBadHandle    = "transfer.bad_handle"
	MsgTransferInsufficient = "transfer.insufficient"
	MsgTransferDone         = "transfer.done"
	MsgAmountNotInteger     = "amount.not_integer"
	MsgAmountNotPositive    = "amount.not_positive"
	MsgAmountTooLarge       = "amount.too_large"
	MsgAccessDenied         = "access.denied"
	MsgTargetBadHandle      = "target.bad_handle"
	MsgMintUsage            = "mint.usage"
	MsgMintDone             = "mint.done"
	MsgBurnUsage            = "burn.usage"
	MsgBurnInsufficient     = "burn.insufficient"
	MsgBurnDone             = "burn.done"
	MsgNoUsername           = "user.no_username"
	MsgInternalError        = "error.internal"
	MsgHelp                 = "help.text"
)

type catalogFile struct {
	Locale    string            `yaml:"locale"`
	Namespace string            `yaml:"namespace"`
	Messages  map[string]string `yaml:"messages"`
}

//go:embed locales/*/*.yaml
var embeddedCatalogFS embed.FS

// Bundle holds every loaded locale in an x/text catalog.
type Bundle struct {
	builder  *catalog.Builder
	messages map[string]map[string]string
	tags     []language.Tag
	matcher  language.Matcher
}

// LoadEmbedded loads the catalogs compiled into the binary.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedCatalogFS)
}

// LoadFromFS loads catalog files matching locales/*/*.yaml from fsys.
func LoadFromFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	b := &Bundle{
		builder:  catalog.NewBuilder(),
		messages: make(map[string]map[string]string),
	}

	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if err := b.addFile(p, file); err != nil {
			return nil, err
		}
	}

	base, ok := b.messages[BaseLocale]
	if !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	for locale, msgs := range b.messages {
		for key := range base {
			if _, ok := msgs[key]; !ok {
				return nil, fmt.Errorf("catalog %s: missing key %q", locale, key)
			}
		}
	}

	// The base locale goes first so the matcher falls back to it.
	locales := b.Locales()
	b.tags = append(b.tags, language.Make(BaseLocale))
	for _, locale := range locales {
		if locale != BaseLocale {
			b.tags = append(b.tags, language.Make(locale))
		}
	}
	b.matcher = language.NewMatcher(b.tags)

	return b, nil
}

func (b *Bundle) addFile(p string, file catalogFile) error {
	localeFromPath := path.Base(path.Dir(p))
	namespaceFromPath := strings.TrimSuffix(path.Base(p), path.Ext(p))

	locale := strings.TrimSpace(file.Locale)
	if locale == "" {
		return fmt.Errorf("catalog %s: locale is required", p)
	}
	if locale != localeFromPath {
		return fmt.Errorf("catalog %s: locale %q must match path locale %q", p, locale, localeFromPath)
	}
	if strings.TrimSpace(file.Namespace) != namespaceFromPath {
		return fmt.Errorf("catalog %s: namespace %q must match filename namespace %q", p, file.Namespace, namespaceFromPath)
	}
	if len(file.Messages) == 0 {
		return fmt.Errorf("catalog %s: messages map is required", p)
	}

	tag, err := language.Parse(locale)
	if err != nil {
		return fmt.Errorf("catalog %s: parse locale tag %q: %w", p, locale, err)
	}

	msgs, ok := b.messages[locale]
	if !ok {
		msgs = make(map[string]string, len(file.Messages))
		b.messages[locale] = msgs
	}
	for key, value := range file.Messages {
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("catalog %s: message key cannot be blank", p)
		}
		if _, exists := msgs[key]; exists {
			return fmt.Errorf("catalog %s: duplicate key %q in locale %q", p, key, locale)
		}
		if err := b.builder.SetString(tag, key, value); err != nil {
			return fmt.Errorf("catalog %s: set %q: %w", p, key, err)
		}
		msgs[key] = value
	}
	return nil
}

// Locales returns all available locale identifiers.
func (b *Bundle) Locales() []string {
	out := make([]string, 0, len(b.messages))
	for locale := range b.messages {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// Message returns the raw, unformatted message for key.
func (b *Bundle) Message(locale, key string) (string, bool) {
	if msgs, ok := b.messages[locale]; ok {
		if v, ok := msgs[key]; ok {
			return v, true
		}
	}
	v, ok := b.messages[BaseLocale][key]
	return v, ok
}

// Printer returns a printer for the closest available locale.
func (b *Bundle) Printer(locale string) *Printer {
	_, idx, _ := b.matcher.Match(language.Make(locale))
	tag := b.tags[idx]
	return &Printer{
		tag: tag,
		p:   message.NewPrinter(tag, message.Catalog(b.builder)),
	}
}

// Printer formats catalog messages for one locale.
type Printer struct {
	tag language.Tag
	p   *message.Printer
}

// Sprintf formats the message stored under key.
func (p *Printer) Sprintf(key string, args ...any) string {
	return p.p.Sprintf(key, args...)
}

// Locale returns the locale the printer resolved to.
func (p *Printer) Locale() string {
	return p.tag.String()
}
