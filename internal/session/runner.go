package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shehryarbajwa/browserbase-fleet/internal/driver"
	"github.com/shehryarbajwa/browserbase-fleet/pkg/models"
)

// DefaultCloseTimeout bounds driver teardown
const DefaultCloseTimeout = 30 * time.Second

// ErrAuthRejected is the detail recorded when a driver refuses the credentials
var ErrAuthRejected = errors.New("credentials rejected")

// Hooks let the caller observe a session's driver while it is open
type Hooks struct {
	// OnOpen runs after the driver handle is acquired and before any work on it
	OnOpen func(l *Lease)
	// OnClose runs after the lease has been released
	OnClose func(l *Lease)
}

// Runner executes one session against a freshly created driver
type Runner struct {
	factory      driver.Factory
	closeTimeout time.Duration
}

// NewRunner creates a runner that builds drivers through factory
func NewRunner(factory driver.Factory) *Runner {
	return &Runner{
		factory:      factory,
		closeTimeout: DefaultCloseTimeout,
	}
}

// SetCloseTimeout overrides how long a teardown may take
func (r *Runner) SetCloseTimeout(d time.Duration) {
	if d > 0 {
		r.closeTimeout = d
	}
}

// Run drives cfg to completion and always returns an outcome. Driver failures, panics,
// and cancellation are converted into the outcome status; nothing propagates.
func (r *Runner) Run(ctx context.Context, cfg models.SessionConfig, hooks Hooks) (out models.SessionOutcome) {
	out = models.SessionOutcome{
		Name:      cfg.Name,
		StartedAt: time.Now(),
	}

	log.Printf("🚀 %s: starting session (%s, %s, %s)", cfg.Name, cfg.Target, cfg.Duration, cfg.DriverKind)

	defer func() {
		if p := recover(); p != nil {
			out = finish(ctx, out, fmt.Errorf("panic: %v", p))
		}
		if out.EndedAt.IsZero() {
			out.EndedAt = time.Now()
		}
		log.Printf("🔚 %s: %s", cfg.Name, describe(out))
	}()

	drv, err := r.factory.New(cfg.DriverKind)
	if err != nil {
		return finish(ctx, out, err)
	}

	handle, err := openDriver(ctx, drv, cfg.DriverKind)
	if err != nil {
		var initErr *driver.InitError
		if !errors.As(err, &initErr) {
			err = &driver.InitError{Kind: cfg.DriverKind, Err: err}
		}
		// a partially started driver still owns resources
		closeCtx, cancel := context.WithTimeout(context.Background(), r.closeTimeout)
		drv.Close(closeCtx, handle)
		cancel()
		return finish(ctx, out, err)
	}

	lease := newLease(cfg, drv, handle, r.closeTimeout)
	if hooks.OnOpen != nil {
		hooks.OnOpen(lease)
	}
	defer func() {
		p := recover()
		if err := lease.Release(); err != nil {
			log.Printf("⚠️ %s: failed to close driver: %v", cfg.Name, err)
		}
		if hooks.OnClose != nil {
			hooks.OnClose(lease)
		}
		if p != nil {
			out = finish(ctx, out, fmt.Errorf("panic: %v", p))
		}
		out.EndedAt = time.Now()
	}()

	if cfg.Auth != nil {
		ok, err := drv.Authenticate(ctx, handle, *cfg.Auth)
		if err != nil {
			return finish(ctx, out, driver.Wrap("authenticate", err))
		}
		if !ok {
			if ctx.Err() != nil {
				return finish(ctx, out, ctx.Err())
			}
			out.Status = models.OutcomeAuthFailed
			out.Error = ErrAuthRejected.Error()
			return out
		}
		log.Printf("✅ %s: logged in as %s", cfg.Name, cfg.Auth.Username)
	}

	return finish(ctx, out, drv.Watch(ctx, handle, cfg.Target, cfg.Duration))
}

// openDriver turns a panic inside Open into an InitError so the caller still closes
// whatever the driver started
func openDriver(ctx context.Context, drv driver.SessionDriver, kind models.DriverKind) (h driver.Handle, err error) {
	defer func() {
		if p := recover(); p != nil {
			h = nil
			err = &driver.InitError{Kind: kind, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	return drv.Open(ctx, kind)
}

// finish classifies the terminal error of a session. A cancelled context wins over
// whatever error the teardown produced.
func finish(ctx context.Context, out models.SessionOutcome, err error) models.SessionOutcome {
	switch {
	case ctx.Err() != nil:
		out.Status = models.OutcomeCancelled
		out.Error = "stopped before completion"
	case err != nil:
		out.Status = models.OutcomeDriverError
		out.Error = err.Error()
	default:
		out.Status = models.OutcomeCompleted
		out.Error = ""
	}
	return out
}

func describe(o models.SessionOutcome) string {
	if o.Error == "" {
		return string(o.Status)
	}
	return fmt.Sprintf("%s (%s)", o.Status, o.Error)
}
