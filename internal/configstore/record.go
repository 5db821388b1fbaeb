package configstore

import (
	"fmt"
	"time"

	"github.com/shehryarbajwa/browserbase-fleet/pkg/models"
)

// record is one persisted session. Pointer fields distinguish missing from zero. The
// snake_case fields are the layout written by the earlier bot manager.
type record struct {
	Name            *string             `json:"name" yaml:"name"`
	Target          *string             `json:"target" yaml:"target"`
	DurationMinutes *int                `json:"durationMinutes" yaml:"durationMinutes"`
	DriverKind      *string             `json:"driverKind" yaml:"driverKind"`
	Auth            *models.Credentials `json:"auth" yaml:"auth"`

	BotName        *string `json:"bot_name" yaml:"bot_name"`
	StreamURL      *string `json:"stream_url" yaml:"stream_url"`
	LegacyDuration *int    `json:"duration_minutes" yaml:"duration_minutes"`
	BrowserType    *string `json:"browser_type" yaml:"browser_type"`
	UseAccount     *bool   `json:"use_account" yaml:"use_account"`
	LegacyUsername *string `json:"username" yaml:"username"`
	LegacyPassword *string `json:"password" yaml:"password"`
}

// outRecord is what Save writes
type outRecord struct {
	Name            string              `json:"name" yaml:"name"`
	Target          string              `json:"target" yaml:"target"`
	DurationMinutes int                 `json:"durationMinutes" yaml:"durationMinutes"`
	DriverKind      string              `json:"driverKind" yaml:"driverKind"`
	Auth            *models.Credentials `json:"auth,omitempty" yaml:"auth,omitempty"`
}

// legacyBrowsers maps the old browser_type values onto driver kinds
var legacyBrowsers = map[string]models.DriverKind{
	"chromium": models.DriverDefault,
	"brave":    models.DriverProfileA,
	"chrome":   models.DriverProfileB,
}

func (r record) legacy() bool {
	return r.Target == nil && (r.StreamURL != nil || r.BotName != nil)
}

func checkMinutes(i int, field string, minutes int) error {
	if minutes < 1 {
		return malformed(i, field, fmt.Sprintf("must be at least 1, got %d", minutes))
	}
	if minutes > models.MaxDurationMinutes {
		return malformed(i, field, fmt.Sprintf("must be at most %d, got %d", models.MaxDurationMinutes, minutes))
	}
	return nil
}

func (r record) toConfig(i int) (models.SessionConfig, error) {
	if r.legacy() {
		return r.legacyConfig(i)
	}

	if r.Name == nil || *r.Name == "" {
		return models.SessionConfig{}, malformed(i, "name", "missing")
	}
	if r.Target == nil || *r.Target == "" {
		return models.SessionConfig{}, malformed(i, "target", "missing")
	}
	if r.DurationMinutes == nil {
		return models.SessionConfig{}, malformed(i, "durationMinutes", "missing")
	}
	if err := checkMinutes(i, "durationMinutes", *r.DurationMinutes); err != nil {
		return models.SessionConfig{}, err
	}

	kind := models.DriverDefault
	if r.DriverKind != nil {
		k, err := models.ParseDriverKind(*r.DriverKind)
		if err != nil {
			return models.SessionConfig{}, malformed(i, "driverKind", err.Error())
		}
		kind = k
	}

	var auth *models.Credentials
	if r.Auth != nil {
		if r.Auth.Username == "" {
			return models.SessionConfig{}, malformed(i, "auth.username", "missing")
		}
		creds := *r.Auth
		auth = &creds
	}

	return models.SessionConfig{
		Name:       *r.Name,
		Target:     *r.Target,
		Duration:   time.Duration(*r.DurationMinutes) * time.Minute,
		DriverKind: kind,
		Auth:       auth,
	}, nil
}

func (r record) legacyConfig(i int) (models.SessionConfig, error) {
	if r.StreamURL == nil || *r.StreamURL == "" {
		return models.SessionConfig{}, malformed(i, "target", "missing")
	}

	name := models.DefaultName(i + 1)
	if r.BotName != nil && *r.BotName != "" {
		name = *r.BotName
	}

	minutes := 30
	if r.LegacyDuration != nil {
		minutes = *r.LegacyDuration
	}
	if err := checkMinutes(i, "duration_minutes", minutes); err != nil {
		return models.SessionConfig{}, err
	}

	kind := models.DriverDefault
	if r.BrowserType != nil && *r.BrowserType != "" {
		k, ok := legacyBrowsers[*r.BrowserType]
		if !ok {
			return models.SessionConfig{}, malformed(i, "browser_type", fmt.Sprintf("unknown browser %q", *r.BrowserType))
		}
		kind = k
	}

	var auth *models.Credentials
	if r.UseAccount != nil && *r.UseAccount && r.LegacyUsername != nil && *r.LegacyUsername != "" {
		auth = &models.Credentials{Username: *r.LegacyUsername}
		if r.LegacyPassword != nil {
			auth.Password = *r.LegacyPassword
		}
	}

	return models.SessionConfig{
		Name:       name,
		Target:     *r.StreamURL,
		Duration:   time.Duration(minutes) * time.Minute,
		DriverKind: kind,
		Auth:       auth,
	}, nil
}

func fromConfig(i int, cfg models.SessionConfig) (outRecord, error) {
	if err := cfg.Validate(); err != nil {
		return outRecord{}, fmt.Errorf("session %d: %w", i+1, err)
	}
	if cfg.Duration%time.Minute != 0 {
		return outRecord{}, fmt.Errorf("session %d: duration %s is not a whole number of minutes", i+1, cfg.Duration)
	}

	out := outRecord{
		Name:            cfg.Name,
		Target:          cfg.Target,
		DurationMinutes: cfg.DurationMinutes(),
		DriverKind:      string(cfg.DriverKind),
	}
	if cfg.Auth != nil {
		creds := *cfg.Auth
		out.Auth = &creds
	}
	return out, nil
}

func toBatch(records []record) (models.Batch, error) {
	batch := make(models.Batch, 0, len(records))
	for i, r := range records {
		cfg, err := r.toConfig(i)
		if err != nil {
			return nil, err
		}
		batch = append(batch, cfg)
	}
	return batch, nil
}

func fromBatch(batch models.Batch) ([]outRecord, error) {
	records := make([]outRecord, 0, len(batch))
	for i, cfg := range batch {
		r, err := fromConfig(i, cfg)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}
