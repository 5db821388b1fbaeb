package browser

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/browserbase-fleet/internal/driver"
	"github.com/shehryarbajwa/browserbase-fleet/pkg/models"
)

type fakeLauncher struct {
	mu        sync.Mutex
	url       string
	launchErr error
	healthy   bool
	stopped   []string
}

func (l *fakeLauncher) LaunchBrowser(ctx context.Context, sessionID string) (*BrowserInstance, error) {
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	return &BrowserInstance{
		ContainerID: "c0ffee0000000000" + sessionID[:4],
		SessionID:   sessionID,
		ConnectURL:  l.url,
	}, nil
}

func (l *fakeLauncher) StopBrowser(ctx context.Context, containerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = append(l.stopped, containerID)
	return nil
}

func (l *fakeLauncher) IsHealthy(ctx context.Context, containerID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.healthy
}

func (l *fakeLauncher) stops() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.stopped)
}

// devtools is a minimal DevTools endpoint that records the methods it was asked for
type devtools struct {
	mu      sync.Mutex
	methods []string
	pageURL string
}

func (d *devtools) serve(t *testing.T) string {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg struct {
				ID     int64           `json:"id"`
				Method string          `json:"method"`
				Params json.RawMessage `json:"params"`
			}
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}

			d.mu.Lock()
			d.methods = append(d.methods, msg.Method)
			var result any = map[string]any{}
			switch msg.Method {
			case "Target.createTarget":
				result = map[string]any{"targetId": "T1"}
			case "Target.attachToTarget":
				result = map[string]any{"sessionId": "S1"}
			case "Target.getTargetInfo":
				result = map[string]any{"targetInfo": map[string]any{"targetId": "T1", "type": "page", "url": d.pageURL}}
			}
			d.mu.Unlock()

			if err := conn.WriteJSON(map[string]any{"id": msg.ID, "result": result}); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (d *devtools) count(method string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, m := range d.methods {
		if m == method {
			n++
		}
	}
	return n
}

func (d *devtools) setPageURL(u string) {
	d.mu.Lock()
	d.pageURL = u
	d.mu.Unlock()
}

func TestResolveTarget(t *testing.T) {
	tests := []struct {
		base, target, want string
		wantErr            bool
	}{
		{"https://kick.com/", "somechannel", "https://kick.com/somechannel", false},
		{"https://kick.com", "/somechannel", "https://kick.com/somechannel", false},
		{"https://kick.com/", "https://example.com/live", "https://example.com/live", false},
		{"", "somechannel", "", true},
		{"", "https:///nohost", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			u, err := ResolveTarget(tt.base, tt.target)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}
}

func TestDriver_OpenLaunchFailureIsInitError(t *testing.T) {
	d := NewDriver(&fakeLauncher{launchErr: errors.New("no docker")}, DriverOptions{})

	h, err := d.Open(context.Background(), models.DriverDefault)
	assert.Nil(t, h)
	var initErr *driver.InitError
	require.ErrorAs(t, err, &initErr)
	assert.ErrorIs(t, err, driver.ErrDriver)
}

func TestDriver_OpenDialFailureStopsContainer(t *testing.T) {
	l := &fakeLauncher{url: "ws://127.0.0.1:1"}
	d := NewDriver(l, DriverOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := d.Open(ctx, models.DriverDefault)
	assert.ErrorIs(t, err, driver.ErrDriver)
	assert.Equal(t, 1, l.stops())
}

func TestDriver_Authenticate(t *testing.T) {
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		switch {
		case !ok:
			w.WriteHeader(http.StatusBadRequest)
		case user == "broken":
			w.WriteHeader(http.StatusBadGateway)
		case user == "lost":
			w.WriteHeader(http.StatusNotFound)
		case user == "redirected":
			http.Redirect(w, r, "/login", http.StatusFound)
		case user == "viewer" && pass == "secret":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer auth.Close()

	dt := &devtools{}
	l := &fakeLauncher{url: dt.serve(t), healthy: true}
	d := NewDriver(l, DriverOptions{AuthURL: auth.URL})

	ctx := context.Background()
	h, err := d.Open(ctx, models.DriverDefault)
	require.NoError(t, err)
	defer d.Close(ctx, h)

	ok, err := d.Authenticate(ctx, h, models.Credentials{Username: "viewer", Password: "wrong"})
	require.NoError(t, err)
	assert.False(t, ok)

	for _, user := range []string{"broken", "lost", "redirected"} {
		ok, err = d.Authenticate(ctx, h, models.Credentials{Username: user, Password: "x"})
		assert.Error(t, err, user)
		assert.False(t, ok, user)
	}

	ok, err = d.Authenticate(ctx, h, models.Credentials{Username: "viewer", Password: "secret"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDriver_WatchSendsCredentialsAndCompletes(t *testing.T) {
	dt := &devtools{pageURL: "https://example.com/live"}
	l := &fakeLauncher{url: dt.serve(t), healthy: true}
	d := NewDriver(l, DriverOptions{PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h, err := d.Open(ctx, models.DriverDefault)
	require.NoError(t, err)
	assert.Equal(t, l.url, h.Endpoint())

	ok, err := d.Authenticate(ctx, h, models.Credentials{Username: "viewer", Password: "secret"})
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, d.Watch(ctx, h, "https://example.com/live", 100*time.Millisecond))
	assert.Equal(t, 1, dt.count("Network.setExtraHTTPHeaders"))
	assert.Equal(t, 1, dt.count("Page.navigate"))
	assert.True(t, d.IsReachable(ctx, h))

	require.NoError(t, d.Close(ctx, h))
	require.NoError(t, d.Close(ctx, h))
	assert.Equal(t, 1, l.stops())
	assert.False(t, d.IsReachable(ctx, h))
}

func TestDriver_WatchRenavigatesWhenPageDrifts(t *testing.T) {
	dt := &devtools{pageURL: "https://elsewhere.example/"}
	l := &fakeLauncher{url: dt.serve(t), healthy: true}
	d := NewDriver(l, DriverOptions{PollInterval: 20 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h, err := d.Open(ctx, models.DriverDefault)
	require.NoError(t, err)
	defer d.Close(ctx, h)

	require.NoError(t, d.Watch(ctx, h, "https://example.com/live", 150*time.Millisecond))
	assert.Greater(t, dt.count("Page.navigate"), 1)
}

func TestDriver_WatchCancelled(t *testing.T) {
	dt := &devtools{pageURL: "https://example.com/live"}
	l := &fakeLauncher{url: dt.serve(t), healthy: true}
	d := NewDriver(l, DriverOptions{PollInterval: time.Second})

	h, err := d.Open(context.Background(), models.DriverDefault)
	require.NoError(t, err)
	defer d.Close(context.Background(), h)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = d.Watch(ctx, h, "https://example.com/live", time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDriver_UnhealthyContainerIsUnreachable(t *testing.T) {
	dt := &devtools{pageURL: "https://example.com/live"}
	l := &fakeLauncher{url: dt.serve(t), healthy: false}
	d := NewDriver(l, DriverOptions{})

	h, err := d.Open(context.Background(), models.DriverDefault)
	require.NoError(t, err)
	defer d.Close(context.Background(), h)

	assert.False(t, d.IsReachable(context.Background(), h))
}

func TestDriver_CloseNilHandle(t *testing.T) {
	d := NewDriver(&fakeLauncher{}, DriverOptions{})
	assert.NoError(t, d.Close(context.Background(), nil))
}

func TestDefaultProfiles(t *testing.T) {
	profiles := DefaultProfiles()
	require.Len(t, profiles, len(models.DriverKinds))
	for i, p := range profiles {
		assert.Equal(t, models.DriverKinds[i], p.Kind)
		assert.NotEmpty(t, p.Image)
	}
}
