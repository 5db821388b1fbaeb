package configstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/browserbase-fleet/pkg/models"
)

func sampleBatch() models.Batch {
	var b models.Batch
	b.Add("https://kick.com/alpha", 30*time.Minute, models.DriverDefault, nil, "")
	b.Add("https://kick.com/beta", 25*time.Minute, models.DriverProfileA, nil, "Viewer_Beta")
	b.Add("gamma", time.Minute, models.DriverProfileB, &models.Credentials{Username: "viewer", Password: "s3cret"}, "")
	return b
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRoundTrip(t *testing.T) {
	for _, name := range []string{"batch.json", "batch.yaml", "batch.yml"} {
		t.Run(name, func(t *testing.T) {
			store := NewFileStore(filepath.Join(t.TempDir(), "nested", name))
			batch := sampleBatch()

			require.NoError(t, store.Save(batch))
			loaded, err := store.Load()
			require.NoError(t, err)
			assert.Equal(t, batch, loaded)
		})
	}
}

func TestCodecRoundTrip_PreservesOrderAndFields(t *testing.T) {
	for _, codec := range []Codec{JSON, YAML} {
		t.Run(codec.Name(), func(t *testing.T) {
			var batch models.Batch
			for i := 0; i < 20; i++ {
				batch.Add("https://example.com/"+models.DefaultName(i+1), time.Duration(i+1)*time.Minute, models.DriverKinds[i%3], nil, "")
			}

			data, err := codec.Marshal(batch)
			require.NoError(t, err)
			loaded, err := codec.Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, batch, loaded)
		})
	}
}

func TestSave_HumanReadableJSON(t *testing.T) {
	data, err := JSON.Marshal(sampleBatch()[:1])
	require.NoError(t, err)

	expected := `[
  {
    "name": "Bot_1",
    "target": "https://kick.com/alpha",
    "durationMinutes": 30,
    "driverKind": "default"
  }
]
`
	assert.Equal(t, expected, string(data))
}

func TestSave_RejectsInvalidSessions(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "batch.json"))

	bad := models.Batch{{Name: "x", Target: "t", Duration: 90 * time.Second, DriverKind: models.DriverDefault}}
	assert.Error(t, store.Save(bad))

	bad = models.Batch{{Name: "x", Duration: time.Minute, DriverKind: models.DriverDefault}}
	assert.Error(t, store.Save(bad))

	_, err := os.Stat(store.Path)
	assert.True(t, os.IsNotExist(err), "a failed save must not leave a file behind")
}

func TestLoad_NotFound(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrMalformedConfig)
}

func TestLoad_MissingTarget(t *testing.T) {
	path := writeFile(t, "batch.json", `[
  {"name": "Bot_1", "target": "https://kick.com/a", "durationMinutes": 5, "driverKind": "default"},
  {"name": "Bot_2", "durationMinutes": 5, "driverKind": "default"}
]`)

	batch, err := NewFileStore(path).Load()
	require.Error(t, err)
	assert.Nil(t, batch, "load is all or nothing")
	assert.ErrorIs(t, err, ErrMalformedConfig)

	var malformedErr *MalformedError
	require.ErrorAs(t, err, &malformedErr)
	assert.Equal(t, 1, malformedErr.Index)
	assert.Equal(t, "target", malformedErr.Field)
}

func TestLoad_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"wrong type", "b.json", `[{"name": "a", "target": "t", "durationMinutes": "ten"}]`},
		{"fractional minutes", "b.json", `[{"name": "a", "target": "t", "durationMinutes": 1.5}]`},
		{"zero minutes", "b.json", `[{"name": "a", "target": "t", "durationMinutes": 0}]`},
		{"overflowing minutes", "b.json", `[{"name": "a", "target": "t", "durationMinutes": 307445736}]`},
		{"max int minutes", "b.json", `[{"name": "a", "target": "t", "durationMinutes": 9223372036854775807}]`},
		{"legacy overflowing minutes", "b.json", `[{"bot_name": "a", "stream_url": "t", "duration_minutes": 200000000}]`},
		{"missing duration", "b.json", `[{"name": "a", "target": "t"}]`},
		{"missing name", "b.json", `[{"target": "t", "durationMinutes": 3}]`},
		{"unknown kind", "b.json", `[{"name": "a", "target": "t", "durationMinutes": 3, "driverKind": "firefox"}]`},
		{"auth without user", "b.json", `[{"name": "a", "target": "t", "durationMinutes": 3, "auth": {"password": "x"}}]`},
		{"not a list", "b.json", `{"name": "a"}`},
		{"syntax", "b.json", `[{"name": "a",`},
		{"empty", "b.json", "  \n"},
		{"yaml wrong type", "b.yaml", "- name: a\n  target: t\n  durationMinutes: soon\n"},
		{"yaml map", "b.yaml", "name: a\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFileStore(writeFile(t, tt.file, tt.content)).Load()
			assert.ErrorIs(t, err, ErrMalformedConfig)
		})
	}
}

func TestLoad_IgnoresUnknownFields(t *testing.T) {
	path := writeFile(t, "batch.json", `[
  {"name": "Bot_1", "target": "https://kick.com/a", "durationMinutes": 5, "driverKind": "profile-a", "proxy": "socks5://x", "priority": 3}
]`)

	batch, err := NewFileStore(path).Load()
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, models.DriverProfileA, batch[0].DriverKind)
	assert.Equal(t, 5*time.Minute, batch[0].Duration)
}

func TestLoad_DefaultsDriverKind(t *testing.T) {
	path := writeFile(t, "batch.yaml", "- name: Bot_1\n  target: alpha\n  durationMinutes: 2\n")

	batch, err := NewFileStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, models.DriverDefault, batch[0].DriverKind)
}

func TestLoad_LegacyRecords(t *testing.T) {
	path := writeFile(t, "bot_configs.json", `[
  {
    "bot_name": "Bot_xQc",
    "stream_url": "https://kick.com/xqc",
    "duration_minutes": 30,
    "browser_type": "chromium",
    "use_account": false,
    "username": null,
    "password": null
  },
  {
    "stream_url": "https://kick.com/adinross",
    "duration_minutes": 20,
    "browser_type": "brave",
    "use_account": true,
    "username": "viewer",
    "password": "pw"
  }
]`)

	batch, err := NewFileStore(path).Load()
	require.NoError(t, err)
	require.Len(t, batch, 2)

	assert.Equal(t, models.SessionConfig{
		Name:       "Bot_xQc",
		Target:     "https://kick.com/xqc",
		Duration:   30 * time.Minute,
		DriverKind: models.DriverDefault,
	}, batch[0])

	assert.Equal(t, "Bot_2", batch[1].Name)
	assert.Equal(t, models.DriverProfileA, batch[1].DriverKind)
	require.NotNil(t, batch[1].Auth)
	assert.Equal(t, models.Credentials{Username: "viewer", Password: "pw"}, *batch[1].Auth)
}

func TestLoad_LegacyUnknownBrowser(t *testing.T) {
	path := writeFile(t, "bot_configs.json", `[{"stream_url": "https://kick.com/x", "browser_type": "safari"}]`)

	_, err := NewFileStore(path).Load()
	assert.ErrorIs(t, err, ErrMalformedConfig)
}

func TestCodecFor(t *testing.T) {
	assert.Equal(t, "yaml", CodecFor("a/b.YAML").Name())
	assert.Equal(t, "yaml", CodecFor("b.yml").Name())
	assert.Equal(t, "json", CodecFor("b.json").Name())
	assert.Equal(t, "json", CodecFor("bot_configs").Name())
}
