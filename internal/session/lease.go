package session

import (
	"context"
	"sync"
	"time"

	"github.com/shehryarbajwa/browserbase-fleet/internal/driver"
	"github.com/shehryarbajwa/browserbase-fleet/pkg/models"
)

// Lease is a session's exclusive hold on one open driver handle. Release tears the
// driver down exactly once no matter how many callers race on it; late callers block
// until the teardown has finished.
type Lease struct {
	Name      string
	Kind      models.DriverKind
	StartedAt time.Time

	driver  driver.SessionDriver
	handle  driver.Handle
	timeout time.Duration

	once sync.Once
	err  error
}

func newLease(cfg models.SessionConfig, d driver.SessionDriver, h driver.Handle, timeout time.Duration) *Lease {
	return &Lease{
		Name:      cfg.Name,
		Kind:      cfg.DriverKind,
		StartedAt: time.Now(),
		driver:    d,
		handle:    h,
		timeout:   timeout,
	}
}

// Endpoint returns the DevTools URL of the handle, if it has one
func (l *Lease) Endpoint() string {
	if l.handle == nil {
		return ""
	}
	return l.handle.Endpoint()
}

// Release closes the driver handle. It is safe to call from any goroutine.
func (l *Lease) Release() error {
	l.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		defer cancel()
		l.err = l.driver.Close(ctx, l.handle)
	})
	return l.err
}
