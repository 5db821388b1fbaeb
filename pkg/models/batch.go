package models

import (
	"errors"
	"fmt"
	"time"
)

// Batch is an ordered set of sessions submitted and tracked together
type Batch []SessionConfig

// DefaultName returns the generated name for the n-th (1-based) session of a batch
func DefaultName(n int) string {
	return fmt.Sprintf("Bot_%d", n)
}

// Add appends a session to the batch, generating a name when none is given
func (b *Batch) Add(target string, duration time.Duration, kind DriverKind, auth *Credentials, name string) SessionConfig {
	if name == "" {
		name = DefaultName(len(*b) + 1)
	}
	if kind == "" {
		kind = DriverDefault
	}

	cfg := SessionConfig{
		Name:       name,
		Target:     target,
		Duration:   duration,
		DriverKind: kind,
		Auth:       auth,
	}
	*b = append(*b, cfg)
	return cfg
}

// Names returns the session names in submission order
func (b Batch) Names() []string {
	names := make([]string, len(b))
	for i, cfg := range b {
		names[i] = cfg.Name
	}
	return names
}

// Validate checks every session and reports duplicate names. Callers resolve collisions
// before submitting; the orchestrator does not dedupe.
func (b Batch) Validate() error {
	var errs []error
	seen := make(map[string]int, len(b))

	for i, cfg := range b {
		if err := cfg.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("session %d: %w", i+1, err))
		}
		if prev, ok := seen[cfg.Name]; ok && cfg.Name != "" {
			errs = append(errs, fmt.Errorf("session %d: name %q already used by session %d", i+1, cfg.Name, prev+1))
			continue
		}
		seen[cfg.Name] = i
	}

	return errors.Join(errs...)
}

// NewBatch builds a batch from configs, naming unnamed ones by position
func NewBatch(configs ...SessionConfig) Batch {
	b := make(Batch, 0, len(configs))
	for _, cfg := range configs {
		b.Add(cfg.Target, cfg.Duration, cfg.DriverKind, cfg.Auth, cfg.Name)
	}
	return b
}
