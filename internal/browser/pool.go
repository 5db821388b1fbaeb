package browser

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/shehryarbajwa/browserbase-fleet/pkg/models"
)

const (
	DefaultImage = "browserless/chrome:latest"
	browserPort  = "3000/tcp"
)

// Profile describes how browsers of one driver kind are launched
type Profile struct {
	Kind  models.DriverKind
	Image string
	Env   []string
}

// DefaultProfiles returns the launch profile of every driver kind
func DefaultProfiles() []Profile {
	return []Profile{
		{Kind: models.DriverDefault, Image: DefaultImage},
		{Kind: models.DriverProfileA, Image: DefaultImage, Env: []string{"DEFAULT_BLOCK_ADS=true"}},
		{Kind: models.DriverProfileB, Image: DefaultImage, Env: []string{`DEFAULT_LAUNCH_ARGS=["--blink-settings=imagesEnabled=false"]`}},
	}
}

type BrowserInstance struct {
	ContainerID string
	SessionID   string
	ConnectURL  string
	Kind        models.DriverKind
	Port        string
	UserDataDir string
}

// Pool launches one browser container per session for a single profile
type Pool struct {
	client       *client.Client
	profile      Profile
	host         string
	readyTimeout time.Duration
}

// NewDockerClient connects to the docker daemon configured in the environment
func NewDockerClient() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return cli, nil
}

// NewPool creates a pool for profile. host is where published container ports are reachable.
func NewPool(cli *client.Client, profile Profile, host string, readyTimeout time.Duration) *Pool {
	if profile.Image == "" {
		profile.Image = DefaultImage
	}
	if host == "" {
		host = "localhost"
	}
	if readyTimeout <= 0 {
		readyTimeout = 30 * time.Second
	}

	return &Pool{
		client:       cli,
		profile:      profile,
		host:         host,
		readyTimeout: readyTimeout,
	}
}

func (p *Pool) Profile() Profile {
	return p.profile
}

func (p *Pool) LaunchBrowser(ctx context.Context, sessionID string) (*BrowserInstance, error) {
	userDataDir := filepath.Join(os.TempDir(), "fleet-browser-data", sessionID)
	if err := os.MkdirAll(userDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create user data directory: %w", err)
	}

	env := append([]string{
		"CONNECTION_TIMEOUT=-1",        // Sessions outlive the default 30s
		"MAX_CONCURRENT_SESSIONS=1",    // One session per container
		"PREBOOT_CHROME=true",          // Pre-boot Chrome for faster startup
		"KEEP_ALIVE=true",              // Keep connections alive
		"EXIT_ON_HEALTH_FAILURE=false", // Don't exit on health check failures
	}, p.profile.Env...)

	containerConfig := &container.Config{
		Image: p.profile.Image,
		Labels: map[string]string{
			"session-id":  sessionID,
			"driver-kind": string(p.profile.Kind),
			"managed-by":  "browserbase-fleet",
		},
		Env: env,
		ExposedPorts: nat.PortSet{
			browserPort: struct{}{},
		},
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			browserPort: []nat.PortBinding{
				{
					HostIP:   "0.0.0.0",
					HostPort: "0",
				},
			},
		},
		AutoRemove: false,
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: userDataDir,
				Target: "/data",
			},
		},
	}

	resp, err := p.client.ContainerCreate(
		ctx,
		containerConfig,
		hostConfig,
		nil,
		nil,
		fmt.Sprintf("fleet-%s", sessionID[:8]),
	)
	if err != nil {
		os.RemoveAll(userDataDir)
		return nil, fmt.Errorf("failed to create container: %w", err)
	}

	// From here on the container exists and must be removed on failure
	fail := func(err error) (*BrowserInstance, error) {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		p.removeContainer(stopCtx, resp.ID)
		os.RemoveAll(userDataDir)
		return nil, err
	}

	if err := p.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fail(fmt.Errorf("failed to start container: %w", err))
	}

	inspect, err := p.client.ContainerInspect(ctx, resp.ID)
	if err != nil {
		return fail(fmt.Errorf("failed to inspect container: %w", err))
	}

	bindings := inspect.NetworkSettings.Ports[browserPort]
	if len(bindings) == 0 {
		return fail(fmt.Errorf("container %s published no browser port", resp.ID[:12]))
	}
	port := bindings[0].HostPort

	// Wait for the browser to be ready by checking the /json/version endpoint
	if err := waitForBrowserReady(ctx, fmt.Sprintf("http://%s:%s/json/version", p.host, port), p.readyTimeout); err != nil {
		return fail(fmt.Errorf("browser failed to become ready: %w", err))
	}

	return &BrowserInstance{
		ContainerID: resp.ID,
		SessionID:   sessionID,
		ConnectURL:  fmt.Sprintf("ws://%s:%s", p.host, port),
		Kind:        p.profile.Kind,
		Port:        port,
		UserDataDir: userDataDir,
	}, nil
}

func (p *Pool) StopBrowser(ctx context.Context, containerID string) error {
	timeout := 10
	stopOptions := container.StopOptions{
		Timeout: &timeout,
	}

	if err := p.client.ContainerStop(ctx, containerID, stopOptions); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}

	if err := p.client.ContainerRemove(ctx, containerID, container.RemoveOptions{}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}

	return nil
}

func (p *Pool) removeContainer(ctx context.Context, containerID string) {
	if err := p.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		log.Printf("⚠️ Failed to remove container %s: %v", containerID[:12], err)
	}
}

func (p *Pool) IsHealthy(ctx context.Context, containerID string) bool {
	inspect, err := p.client.ContainerInspect(ctx, containerID)
	if err != nil {
		return false
	}
	return inspect.State.Running
}

func (p *Pool) EnsureImage(ctx context.Context) error {
	images, err := p.client.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return err
	}

	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == p.profile.Image {
				return nil
			}
		}
	}

	log.Printf("⏳ Pulling %s...", p.profile.Image)
	reader, err := p.client.ImagePull(ctx, p.profile.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

// waitForBrowserReady polls url until it answers 200 or timeout passes
func waitForBrowserReady(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("browser did not become ready within %s", timeout)
		case <-ticker.C:
		}
	}
}
