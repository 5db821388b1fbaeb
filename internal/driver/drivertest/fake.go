// Package drivertest provides an instrumented in-memory SessionDriver for tests.
package drivertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shehryarbajwa/browserbase-fleet/internal/driver"
	"github.com/shehryarbajwa/browserbase-fleet/pkg/models"
)

// ErrClosed is returned by Watch when the handle is torn down underneath it
var ErrClosed = errors.New("browser closed")

// Behavior scripts how the fake reacts for one target
type Behavior struct {
	AuthReject bool
	AuthErr    error
	WatchErr   error
	// WatchTime overrides the requested duration when non-zero
	WatchTime time.Duration
	Panic     bool
	// IgnoreContext makes Watch block until Close or its timer, never on ctx
	IgnoreContext bool
}

// Fake is a driver.Factory whose drivers record every call
type Fake struct {
	mu        sync.Mutex
	Behaviors map[string]Behavior
	FailOpen  map[models.DriverKind]error
	// PanicOpen makes Open panic after its handle is already allocated
	PanicOpen map[models.DriverKind]bool

	seq      int
	open     int
	peak     int
	opened   int
	handles  []*Handle
	watching []string
}

func NewFake() *Fake {
	return &Fake{
		Behaviors: make(map[string]Behavior),
		FailOpen:  make(map[models.DriverKind]error),
		PanicOpen: make(map[models.DriverKind]bool),
	}
}

// Handle is the fake automation context
type Handle struct {
	id     string
	kind   models.DriverKind
	closed chan struct{}

	mu     sync.Mutex
	closes int
}

func (h *Handle) ID() string       { return h.id }
func (h *Handle) Endpoint() string { return "ws://fake/" + h.id }

// Closes returns how many times Close was called on the handle
func (h *Handle) Closes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closes
}

// IsClosed reports whether Close has run at least once
func (h *Handle) IsClosed() bool { return h.Closes() > 0 }

func (f *Fake) New(kind models.DriverKind) (driver.SessionDriver, error) {
	return &fakeDriver{fake: f}, nil
}

// Peak is the highest number of simultaneously open handles
func (f *Fake) Peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

// Open is the number of currently open handles
func (f *Fake) Open() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// Opened is the total number of handles ever opened
func (f *Fake) Opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

// Handles returns every handle in open order
func (f *Fake) Handles() []*Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Handle(nil), f.handles...)
}

// WatchOrder returns targets in the order their watch began
func (f *Fake) WatchOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.watching...)
}

func (f *Fake) behavior(target string) Behavior {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Behaviors[target]
}

type fakeDriver struct {
	fake *Fake
	// pending is a handle Open allocated but never returned
	pending *Handle
}

func (d *fakeDriver) Open(ctx context.Context, kind models.DriverKind) (driver.Handle, error) {
	f := d.fake
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.FailOpen[kind]; err != nil {
		return nil, &driver.InitError{Kind: kind, Err: err}
	}

	f.seq++
	f.opened++
	f.open++
	if f.open > f.peak {
		f.peak = f.open
	}

	h := &Handle{
		id:     fmt.Sprintf("fake-%d", f.seq),
		kind:   kind,
		closed: make(chan struct{}),
	}
	f.handles = append(f.handles, h)

	if f.PanicOpen[kind] {
		d.pending = h
		panic("open exploded")
	}
	return h, nil
}

func (d *fakeDriver) Authenticate(ctx context.Context, h driver.Handle, creds models.Credentials) (bool, error) {
	// credentials carry the target through Username for scripting
	b := d.fake.behavior(creds.Username)
	if b.AuthErr != nil {
		return false, b.AuthErr
	}
	return !b.AuthReject, nil
}

func (d *fakeDriver) Watch(ctx context.Context, h driver.Handle, target string, duration time.Duration) error {
	f := d.fake
	f.mu.Lock()
	f.watching = append(f.watching, target)
	b := f.Behaviors[target]
	f.mu.Unlock()

	if b.Panic {
		panic("driver exploded")
	}
	if b.WatchErr != nil {
		return b.WatchErr
	}

	wait := duration
	if b.WatchTime > 0 {
		wait = b.WatchTime
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	done := ctx.Done()
	if b.IgnoreContext {
		done = nil
	}

	select {
	case <-timer.C:
		return nil
	case <-done:
		return ctx.Err()
	case <-h.(*Handle).closed:
		return ErrClosed
	}
}

func (d *fakeDriver) IsReachable(ctx context.Context, h driver.Handle) bool {
	fh, ok := h.(*Handle)
	return ok && !fh.IsClosed()
}

func (d *fakeDriver) Close(ctx context.Context, h driver.Handle) error {
	fh, ok := h.(*Handle)
	if !ok || fh == nil {
		fh = d.pending
	}
	if fh == nil {
		return nil
	}

	fh.mu.Lock()
	fh.closes++
	first := fh.closes == 1
	fh.mu.Unlock()

	if first {
		close(fh.closed)
		d.fake.mu.Lock()
		d.fake.open--
		d.fake.mu.Unlock()
	}
	return nil
}
