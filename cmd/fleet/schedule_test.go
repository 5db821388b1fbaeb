package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDailyTimes(t *testing.T) {
	clocks, err := parseDailyTimes([]string{"21:00", "08:15"})
	require.NoError(t, err)
	assert.Equal(t, []clock{8*60 + 15, 21 * 60}, clocks)

	for _, bad := range []string{"25:00", "8pm", "12:60", ""} {
		_, err := parseDailyTimes([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestNextDaily(t *testing.T) {
	daily := []clock{8*60 + 15, 21 * 60}
	day := func(d, h, m int) time.Time { return time.Date(2026, 3, d, h, m, 0, 0, time.UTC) }

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before first", day(1, 6, 0), day(1, 8, 15)},
		{"between", day(1, 12, 0), day(1, 21, 0)},
		{"exactly on a time", day(1, 21, 0), day(2, 8, 15)},
		{"after last", day(1, 23, 30), day(2, 8, 15)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextDaily(tt.now, daily))
		})
	}
}
