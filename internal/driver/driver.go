// Package driver defines the browser automation capability the orchestrator consumes and a
// registry that resolves a driver implementation per DriverKind.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shehryarbajwa/browserbase-fleet/pkg/models"
)

// Handle is one open automation context. It is owned by a single session.
type Handle interface {
	// ID identifies the handle in logs (container id, fake id, ...)
	ID() string
	// Endpoint is the DevTools URL for live debugging, empty when unsupported
	Endpoint() string
}

// SessionDriver opens, drives, and tears down one browser per session
type SessionDriver interface {
	Open(ctx context.Context, kind models.DriverKind) (Handle, error)
	// Authenticate returns false on rejected credentials and an error on
	// transport or environment failure.
	Authenticate(ctx context.Context, h Handle, creds models.Credentials) (bool, error)
	// Watch blocks for roughly duration, keeping the target loaded.
	Watch(ctx context.Context, h Handle, target string, duration time.Duration) error
	IsReachable(ctx context.Context, h Handle) bool
	// Close is idempotent and safe after any prior failure.
	Close(ctx context.Context, h Handle) error
}

// ErrDriver marks any runtime failure reported by a driver
var ErrDriver = errors.New("driver error")

// InitError is returned when a driver instance cannot be started
type InitError struct {
	Kind models.DriverKind
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("driver init (%s): %v", e.Kind, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// Is lets InitError match ErrDriver
func (e *InitError) Is(target error) bool { return target == ErrDriver }

// Error wraps a failed driver operation
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrDriver }

// Wrap tags err as a driver failure of op. A nil err stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// Factory creates a fresh SessionDriver for a session
type Factory interface {
	New(kind models.DriverKind) (SessionDriver, error)
}

// FactoryFunc adapts a function to Factory
type FactoryFunc func(kind models.DriverKind) (SessionDriver, error)

func (f FactoryFunc) New(kind models.DriverKind) (SessionDriver, error) { return f(kind) }

// Registry maps driver kinds to constructors. Kinds without a constructor fall back to
// DriverDefault.
type Registry struct {
	mu      sync.RWMutex
	drivers map[models.DriverKind]func() SessionDriver
}

func NewRegistry() *Registry {
	return &Registry{
		drivers: make(map[models.DriverKind]func() SessionDriver),
	}
}

func (r *Registry) Register(kind models.DriverKind, newDriver func() SessionDriver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[kind] = newDriver
}

func (r *Registry) New(kind models.DriverKind) (SessionDriver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	newDriver, ok := r.drivers[kind]
	if !ok {
		newDriver, ok = r.drivers[models.DriverDefault]
	}
	if !ok {
		return nil, &InitError{Kind: kind, Err: fmt.Errorf("no driver registered")}
	}
	return newDriver(), nil
}

// Kinds returns the registered kinds
func (r *Registry) Kinds() []models.DriverKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]models.DriverKind, 0, len(r.drivers))
	for _, k := range models.DriverKinds {
		if _, ok := r.drivers[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
