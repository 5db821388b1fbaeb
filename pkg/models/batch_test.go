package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchAdd_GeneratesNames(t *testing.T) {
	var b Batch
	b.Add("https://example.com/a", time.Minute, "", nil, "")
	b.Add("https://example.com/b", time.Minute, DriverProfileA, nil, "Custom")
	third := b.Add("https://example.com/c", time.Minute, DriverProfileB, nil, "")

	assert.Equal(t, []string{"Bot_1", "Custom", "Bot_3"}, b.Names())
	assert.Equal(t, DriverDefault, b[0].DriverKind)
	assert.Equal(t, "Bot_3", third.Name)
	require.NoError(t, b.Validate())
}

func TestBatchValidate(t *testing.T) {
	var b Batch
	b.Add("https://example.com/a", time.Minute, DriverDefault, nil, "dup")
	b.Add("https://example.com/b", time.Minute, DriverDefault, nil, "dup")
	b.Add("", 30*time.Second, DriverDefault, nil, "short")
	b.Add("https://example.com/d", time.Minute, DriverDefault, &Credentials{Password: "x"}, "nouser")

	err := b.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `name "dup" already used by session 1`)
	assert.Contains(t, err.Error(), "short: target is required")
	assert.Contains(t, err.Error(), "nouser: auth requires a username")
}

func TestSessionConfigValidate(t *testing.T) {
	ok := SessionConfig{Name: "a", Target: "t", Duration: 2 * time.Minute, DriverKind: DriverDefault}
	require.NoError(t, ok.Validate())
	assert.Equal(t, 2, ok.DurationMinutes())

	bad := ok
	bad.Duration = 59 * time.Second
	assert.Error(t, bad.Validate())

	bad = ok
	bad.DriverKind = "firefox"
	assert.Error(t, bad.Validate())

	bad = ok
	bad.Name = ""
	assert.Error(t, bad.Validate())
}

func TestParseDriverKind(t *testing.T) {
	for _, k := range DriverKinds {
		got, err := ParseDriverKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
		assert.True(t, k.Valid())
	}

	got, err := ParseDriverKind("")
	require.NoError(t, err)
	assert.Equal(t, DriverDefault, got)

	_, err = ParseDriverKind("chromium")
	assert.Error(t, err)
	assert.False(t, DriverKind("").Valid())
}

func TestOutcomeDuration(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, 5*time.Minute, SessionOutcome{StartedAt: start, EndedAt: start.Add(5 * time.Minute)}.Duration())
	assert.Zero(t, SessionOutcome{EndedAt: start}.Duration())
}

func TestBatchReportCounts(t *testing.T) {
	r := BatchReport{Outcomes: []SessionOutcome{
		{Status: OutcomeCompleted}, {Status: OutcomeCompleted}, {Status: OutcomeCancelled}, {Status: OutcomeDriverError},
	}}

	counts := r.Counts()
	assert.Equal(t, 2, counts[OutcomeCompleted])
	assert.Equal(t, 1, counts[OutcomeCancelled])
	assert.Equal(t, 1, counts[OutcomeDriverError])
	assert.Equal(t, 0, counts[OutcomeAuthFailed])
}

func TestNewBatch(t *testing.T) {
	b := NewBatch(
		SessionConfig{Target: "a", Duration: time.Minute},
		SessionConfig{Name: "keep", Target: "b", Duration: time.Minute, DriverKind: DriverProfileB},
	)

	assert.Equal(t, []string{"Bot_1", "keep"}, b.Names())
	assert.Equal(t, DriverDefault, b[0].DriverKind)
	assert.Equal(t, DriverProfileB, b[1].DriverKind)
}
