package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/browserbase-fleet/internal/browser"
	"github.com/shehryarbajwa/browserbase-fleet/internal/driver"
	"github.com/shehryarbajwa/browserbase-fleet/pkg/models"
)

type stubPool struct {
	profile browser.Profile
	pulls   int
	pullErr error
}

func (p *stubPool) LaunchBrowser(ctx context.Context, sessionID string) (*browser.BrowserInstance, error) {
	return nil, errors.New("launch disabled")
}
func (p *stubPool) StopBrowser(ctx context.Context, containerID string) error { return nil }
func (p *stubPool) IsHealthy(ctx context.Context, containerID string) bool    { return false }
func (p *stubPool) Profile() browser.Profile                                  { return p.profile }
func (p *stubPool) EnsureImage(ctx context.Context) error {
	p.pulls++
	return p.pullErr
}

func newStubManager() (*Manager, map[models.DriverKind]*stubPool) {
	stubs := map[models.DriverKind]*stubPool{
		models.DriverDefault:  {profile: browser.Profile{Kind: models.DriverDefault, Image: "chrome:1"}},
		models.DriverProfileA: {profile: browser.Profile{Kind: models.DriverProfileA, Image: "chrome:1"}},
	}
	pools := make(map[models.DriverKind]Launcher)
	for k, v := range stubs {
		pools[k] = v
	}
	return NewManagerWithPools(pools), stubs
}

func TestManager_Route(t *testing.T) {
	m, _ := newStubManager()

	assert.Equal(t, models.DriverProfileA, m.Route(models.DriverProfileA))
	assert.Equal(t, models.DriverDefault, m.Route(models.DriverProfileB))
	assert.Equal(t, []models.DriverKind{models.DriverDefault, models.DriverProfileA}, m.Kinds())

	_, err := m.Pool(models.DriverProfileB)
	assert.Error(t, err)
}

func TestManager_EnsureImagesPullsEachImageOnce(t *testing.T) {
	m, stubs := newStubManager()

	require.NoError(t, m.EnsureImages(context.Background()))
	assert.Equal(t, 1, stubs[models.DriverDefault].pulls)
	assert.Equal(t, 0, stubs[models.DriverProfileA].pulls)
}

func TestManager_EnsureImagesError(t *testing.T) {
	m, stubs := newStubManager()
	stubs[models.DriverDefault].pullErr = errors.New("registry down")

	err := m.EnsureImages(context.Background())
	assert.ErrorContains(t, err, "registry down")
}

func TestManager_RegistryFallsBackToDefault(t *testing.T) {
	m, _ := newStubManager()
	reg := m.Registry(browser.DriverOptions{})

	d, err := reg.New(models.DriverProfileB)
	require.NoError(t, err)

	_, err = d.Open(context.Background(), models.DriverProfileB)
	assert.ErrorIs(t, err, driver.ErrDriver)
}

func TestManager_CloseWithoutClient(t *testing.T) {
	m, _ := newStubManager()
	assert.NoError(t, m.Close())
}
