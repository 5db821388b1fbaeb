package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shehryarbajwa/browserbase-fleet/internal/cdp"
	"github.com/shehryarbajwa/browserbase-fleet/internal/driver"
	"github.com/shehryarbajwa/browserbase-fleet/pkg/models"
)

// Launcher starts and stops browser containers. *Pool implements it.
type Launcher interface {
	LaunchBrowser(ctx context.Context, sessionID string) (*BrowserInstance, error)
	StopBrowser(ctx context.Context, containerID string) error
	IsHealthy(ctx context.Context, containerID string) bool
}

type DriverOptions struct {
	// PollInterval is the liveness check cadence during a watch
	PollInterval time.Duration
	// BaseURL resolves bare target identifiers, e.g. "https://kick.com/"
	BaseURL string
	// AuthURL is probed with the session credentials; empty skips the probe
	AuthURL    string
	HTTPClient *http.Client
	// Dial opens the DevTools connection; defaults to cdp.Dial
	Dial func(ctx context.Context, url string) (*cdp.Client, error)
}

// Driver runs one session in a dedicated browser container
type Driver struct {
	launcher Launcher
	opts     DriverOptions
}

func NewDriver(launcher Launcher, opts DriverOptions) *Driver {
	if opts.PollInterval <= 0 {
		opts.PollInterval = driver.DefaultPollInterval
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout: 15 * time.Second,
			// a redirect from the auth endpoint is a login page, not an accepted login
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	if opts.Dial == nil {
		opts.Dial = cdp.Dial
	}
	return &Driver{launcher: launcher, opts: opts}
}

type handle struct {
	instance *BrowserInstance
	client   *cdp.Client

	mu        sync.Mutex
	headers   map[string]string
	targetID  string
	pageID    string
	targetURL *url.URL

	closeOnce sync.Once
	closeErr  error
}

func (h *handle) ID() string {
	if len(h.instance.ContainerID) > 12 {
		return h.instance.ContainerID[:12]
	}
	return h.instance.ContainerID
}

func (h *handle) Endpoint() string {
	return h.instance.ConnectURL
}

func asHandle(h driver.Handle) (*handle, error) {
	bh, ok := h.(*handle)
	if !ok || bh == nil {
		return nil, fmt.Errorf("not a browser handle: %T", h)
	}
	return bh, nil
}

func (d *Driver) Open(ctx context.Context, kind models.DriverKind) (driver.Handle, error) {
	sessionID := uuid.New().String()

	instance, err := d.launcher.LaunchBrowser(ctx, sessionID)
	if err != nil {
		return nil, &driver.InitError{Kind: kind, Err: err}
	}

	client, err := d.opts.Dial(ctx, instance.ConnectURL)
	if err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if stopErr := d.launcher.StopBrowser(stopCtx, instance.ContainerID); stopErr != nil {
			log.Printf("⚠️ Failed to stop container %s: %v", instance.ContainerID, stopErr)
		}
		os.RemoveAll(instance.UserDataDir)
		return nil, &driver.InitError{Kind: kind, Err: err}
	}

	h := &handle{instance: instance, client: client}
	log.Printf("✓ Browser %s ready (%s)", h.ID(), kind)
	return h, nil
}

// Authenticate checks the credentials against AuthURL with HTTP basic auth. Accepted
// credentials are sent with every page request of the session.
func (d *Driver) Authenticate(ctx context.Context, h driver.Handle, creds models.Credentials) (bool, error) {
	bh, err := asHandle(h)
	if err != nil {
		return false, err
	}

	if d.opts.AuthURL != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.opts.AuthURL, nil)
		if err != nil {
			return false, fmt.Errorf("invalid auth url: %w", err)
		}
		req.SetBasicAuth(creds.Username, creds.Password)

		resp, err := d.opts.HTTPClient.Do(req)
		if err != nil {
			return false, fmt.Errorf("auth request failed: %w", err)
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return false, nil
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return false, fmt.Errorf("auth endpoint returned %s", resp.Status)
		}
	}

	token := base64.StdEncoding.EncodeToString([]byte(creds.Username + ":" + creds.Password))
	bh.mu.Lock()
	bh.headers = map[string]string{"Authorization": "Basic " + token}
	bh.mu.Unlock()
	return true, nil
}

// ResolveTarget turns a bare identifier into a URL under base
func ResolveTarget(base, target string) (*url.URL, error) {
	raw := target
	if !strings.Contains(target, "://") {
		if base == "" {
			return nil, fmt.Errorf("target %q is not a URL and no base URL is configured", target)
		}
		raw = strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(target, "/")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid target %q: %w", target, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid target %q: missing host", target)
	}
	return u, nil
}

func (d *Driver) Watch(ctx context.Context, h driver.Handle, target string, duration time.Duration) error {
	bh, err := asHandle(h)
	if err != nil {
		return err
	}

	u, err := ResolveTarget(d.opts.BaseURL, target)
	if err != nil {
		return driver.Wrap("watch", err)
	}
	pageURL := u.String()

	targetID, err := bh.client.CreatePage(ctx, "about:blank")
	if err != nil {
		return driver.Wrap("open page", err)
	}
	pageID, err := bh.client.Attach(ctx, targetID)
	if err != nil {
		return driver.Wrap("attach", err)
	}

	bh.mu.Lock()
	bh.targetID = targetID
	bh.pageID = pageID
	bh.targetURL = u
	headers := bh.headers
	bh.mu.Unlock()

	if len(headers) > 0 {
		if err := bh.client.SetExtraHeaders(ctx, pageID, headers); err != nil {
			return driver.Wrap("set headers", err)
		}
	}
	if err := bh.client.Navigate(ctx, pageID, pageURL); err != nil {
		return driver.Wrap("navigate", err)
	}

	log.Printf("📺 Browser %s watching %s for %s", bh.ID(), pageURL, duration)

	loop := driver.WatchLoop{
		Name:         bh.ID(),
		PollInterval: d.opts.PollInterval,
		Probe: func(ctx context.Context) bool {
			return d.IsReachable(ctx, h)
		},
		Renavigate: func(ctx context.Context) error {
			return bh.client.Navigate(ctx, pageID, pageURL)
		},
	}
	_, err = loop.Run(ctx, duration)
	return err
}

// IsReachable reports whether the container is up and the page is still on the target host
func (d *Driver) IsReachable(ctx context.Context, h driver.Handle) bool {
	bh, err := asHandle(h)
	if err != nil {
		return false
	}

	select {
	case <-bh.client.Done():
		return false
	default:
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if !d.launcher.IsHealthy(probeCtx, bh.instance.ContainerID) {
		return false
	}

	bh.mu.Lock()
	targetID, want := bh.targetID, bh.targetURL
	bh.mu.Unlock()
	if targetID == "" {
		return true
	}

	info, err := bh.client.TargetInfo(probeCtx, targetID)
	if err != nil {
		return false
	}
	got, err := url.Parse(info.URL)
	if err != nil {
		return false
	}
	return strings.EqualFold(got.Hostname(), want.Hostname())
}

func (d *Driver) Close(ctx context.Context, h driver.Handle) error {
	if h == nil {
		return nil
	}
	bh, err := asHandle(h)
	if err != nil {
		return nil
	}

	bh.closeOnce.Do(func() {
		bh.client.Close()

		var errs []error
		if err := d.launcher.StopBrowser(ctx, bh.instance.ContainerID); err != nil {
			errs = append(errs, err)
		}
		if bh.instance.UserDataDir != "" {
			if err := os.RemoveAll(bh.instance.UserDataDir); err != nil {
				errs = append(errs, fmt.Errorf("failed to remove user data: %w", err))
			}
		}
		bh.closeErr = errors.Join(errs...)
		log.Printf("🔌 Browser %s closed", bh.ID())
	})
	return bh.closeErr
}
