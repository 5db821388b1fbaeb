package profile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/docker/docker/client"

	"github.com/shehryarbajwa/browserbase-fleet/internal/browser"
	"github.com/shehryarbajwa/browserbase-fleet/internal/driver"
	"github.com/shehryarbajwa/browserbase-fleet/pkg/models"
)

// Launcher is a browser pool bound to one profile
type Launcher interface {
	browser.Launcher
	EnsureImage(ctx context.Context) error
	Profile() browser.Profile
}

// Manager holds one browser pool per driver kind
type Manager struct {
	pools  map[models.DriverKind]Launcher
	closer func() error
	mu     sync.RWMutex
}

type Options struct {
	// Images overrides the container image per kind
	Images       map[models.DriverKind]string
	Host         string
	ReadyTimeout time.Duration
}

// NewManager creates docker-backed pools for every profile, sharing one client
func NewManager(cli *client.Client, opts Options) *Manager {
	pools := make(map[models.DriverKind]Launcher)
	for _, p := range browser.DefaultProfiles() {
		if image := opts.Images[p.Kind]; image != "" {
			p.Image = image
		}
		pools[p.Kind] = browser.NewPool(cli, p, opts.Host, opts.ReadyTimeout)
	}
	return &Manager{pools: pools, closer: cli.Close}
}

// NewManagerWithPools builds a manager over existing launchers
func NewManagerWithPools(pools map[models.DriverKind]Launcher) *Manager {
	m := &Manager{pools: make(map[models.DriverKind]Launcher, len(pools))}
	for kind, pool := range pools {
		m.pools[kind] = pool
	}
	return m
}

// Pool returns the pool for a driver kind
func (m *Manager) Pool(kind models.DriverKind) (Launcher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pool, exists := m.pools[kind]
	if !exists {
		return nil, fmt.Errorf("unsupported driver kind: %s", kind)
	}
	return pool, nil
}

// Route picks the kind a session runs with, falling back to the default profile
func (m *Manager) Route(kind models.DriverKind) models.DriverKind {
	m.mu.RLock()
	_, exists := m.pools[kind]
	m.mu.RUnlock()

	if exists {
		return kind
	}
	return models.DriverDefault
}

// EnsureImages pulls every distinct image once
func (m *Manager) EnsureImages(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	for _, kind := range models.DriverKinds {
		pool, ok := m.pools[kind]
		if !ok {
			continue
		}
		image := pool.Profile().Image
		if seen[image] {
			continue
		}
		seen[image] = true
		if err := pool.EnsureImage(ctx); err != nil {
			return fmt.Errorf("failed to ensure image for %s: %w", kind, err)
		}
	}
	return nil
}

// Kinds returns the configured kinds in stable order
func (m *Manager) Kinds() []models.DriverKind {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kinds := make([]models.DriverKind, 0, len(m.pools))
	for _, kind := range models.DriverKinds {
		if _, ok := m.pools[kind]; ok {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// Registry exposes the pools as session drivers
func (m *Manager) Registry(opts browser.DriverOptions) *driver.Registry {
	reg := driver.NewRegistry()
	for _, kind := range m.Kinds() {
		pool, _ := m.Pool(kind)
		reg.Register(kind, func() driver.SessionDriver {
			return browser.NewDriver(pool, opts)
		})
	}
	return reg
}

// Close releases the docker client
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closer == nil {
		return nil
	}
	err := m.closer()
	m.closer = nil
	return err
}
