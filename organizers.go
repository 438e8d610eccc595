package tokenledger

import (
	"sort"
	"strings"
)

// DefaultOrganizers is the allow-list used when none is configured.
var DefaultOrganizers = []string{"@roman_odobesku"}

// Organizers is the static set of handles allowed to mint and burn tokens.
// It is fixed for the lifetime of the process.
type Organizers struct {
	set map[string]struct{}
}

// NewOrganizers builds an allow-list. Entries are trimmed and a missing
// leading "@" is added; blanks are skipped. Matching is case-sensitive.
func NewOrganizers(handles ...string) *Organizers {
	o := &Organizers{set: make(map[string]struct{}, len(handles))}
	for _, h := range handles {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if !strings.HasPrefix(h, "@") {
			h = "@" + h
		}
		o.set[h] = struct{}{}
	}
	return o
}

// Contains reports whether handle is an organizer.
func (o *Organizers) Contains(handle string) bool {
	if o == nil {
		return false
	}
	_, ok := o.set[handle]
	return ok
}

// List returns the organizer handles in sorted order.
func (o *Organizers) List() []string {
	if o == nil {
		return nil
	}
	out := make([]string, 0, len(o.set))
	for h := range o.set {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of organizers.
func (o *Organizers) Len() int {
	if o == nil {
		return 0
	}
	return len(o.set)
}
