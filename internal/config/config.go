// Package config holds the CLI-independent runtime configuration
// consumed by internal/expander, separated from flag parsing so tests
// can build it directly (spec.md §3).
package config

import (
	"fmt"

	"github.com/irrquery/irrgen/internal/radixtree"
)

// Config is the fully-resolved, validated set of knobs the expander
// needs. cmd/irrgen is the only package that builds one from flags;
// everything downstream only sees this struct.
type Config struct {
	Family radixtree.Family

	Server string
	Port   string

	Sources   string
	UseSource bool

	MaxDepth int
	MaxLen   int

	ValidateASNs     bool
	Pipelining       bool
	ExpandSpecialASN bool
	Identify         bool
	ClientID         string

	NeedPrefixes bool
	DebugGraph   bool
}

// Default returns the baseline configuration before flags are applied:
// IPv4, port 43, no depth limit, maximum length bound to the family's
// natural width, pipelining on (spec.md §3's documented defaults).
func Default() Config {
	return Config{
		Family:     radixtree.IPv4,
		Port:       "43",
		MaxLen:     32,
		Pipelining: true,
		ClientID:   "irrgen",
	}
}

// Validate checks field combinations the flag parser can't catch
// syntactically on its own.
func (c Config) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("config: server is required")
	}
	if c.MaxLen <= 0 || c.MaxLen > c.Family.MaxLen() {
		return fmt.Errorf("config: max-len %d out of range for %s", c.MaxLen, c.Family)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("config: max-depth must be >= 0")
	}
	return nil
}
