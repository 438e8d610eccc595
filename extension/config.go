package extension

import (
	"time"

	"github.com/xraph/tokenledger"
)

// Config holds the token ledger extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.tokenledger" or "tokenledger" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Organizers is the allow-list for /addtokens and /removetokens
	// (default: the ledger's DefaultOrganizers).
	Organizers []string `json:"organizers" mapstructure:"organizers" yaml:"organizers"`

	// DisableAtomicTransfers runs transfers and burns outside a store
	// transaction even when the store supports one.
	DisableAtomicTransfers bool `json:"disable_atomic_transfers" mapstructure:"disable_atomic_transfers" yaml:"disable_atomic_transfers"`

	// HookTimeout bounds each plugin hook call (default: 5s).
	HookTimeout time.Duration `json:"hook_timeout" mapstructure:"hook_timeout" yaml:"hook_timeout"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Organizers:  append([]string(nil), tokenledger.DefaultOrganizers...),
		HookTimeout: 5 * time.Second,
	}
}
