package models

import (
	"fmt"
	"math"
	"time"
)

// DriverKind selects which browser profile a session is launched with
type DriverKind string

const (
	DriverDefault  DriverKind = "default"
	DriverProfileA DriverKind = "profile-a"
	DriverProfileB DriverKind = "profile-b"
)

// DriverKinds lists every supported kind in a stable order
var DriverKinds = []DriverKind{DriverDefault, DriverProfileA, DriverProfileB}

// ParseDriverKind converts a persisted or user-supplied value into a DriverKind.
// An empty string maps to DriverDefault.
func ParseDriverKind(s string) (DriverKind, error) {
	if s == "" {
		return DriverDefault, nil
	}
	for _, k := range DriverKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown driver kind %q", s)
}

// Valid reports whether k is one of the supported kinds
func (k DriverKind) Valid() bool {
	_, err := ParseDriverKind(string(k))
	return err == nil && k != ""
}

// Credentials is the optional login pair for a session
type Credentials struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// MinDuration is the smallest watch duration a session may request
const MinDuration = time.Minute

// MaxDurationMinutes is the longest watch, in minutes, a time.Duration can hold
const MaxDurationMinutes = int(math.MaxInt64 / int64(time.Minute))

// SessionConfig describes one viewing session. It is treated as an immutable value.
type SessionConfig struct {
	Name       string
	Target     string
	Duration   time.Duration
	DriverKind DriverKind
	Auth       *Credentials
}

// DurationMinutes returns the watch duration rounded down to whole minutes
func (c SessionConfig) DurationMinutes() int {
	return int(c.Duration / time.Minute)
}

// Validate checks the fields a runnable session needs
func (c SessionConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Target == "" {
		return fmt.Errorf("%s: target is required", c.Name)
	}
	if c.Duration < MinDuration {
		return fmt.Errorf("%s: duration must be at least %s", c.Name, MinDuration)
	}
	if !c.DriverKind.Valid() {
		return fmt.Errorf("%s: unknown driver kind %q", c.Name, c.DriverKind)
	}
	if c.Auth != nil && c.Auth.Username == "" {
		return fmt.Errorf("%s: auth requires a username", c.Name)
	}
	return nil
}
