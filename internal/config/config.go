// Package config loads fleet settings from defaults, an optional config file, FLEET_*
// environment variables, and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/shehryarbajwa/browserbase-fleet/pkg/models"
)

const EnvPrefix = "FLEET"

// Config represents the complete fleet configuration
type Config struct {
	// Capacity is the maximum number of browsers open at once
	Capacity int `mapstructure:"capacity"`
	// PollInterval is how often a watching session checks the target is still loaded
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// CloseTimeout bounds how long a browser teardown may take
	CloseTimeout time.Duration `mapstructure:"close_timeout"`

	Launch  LaunchConfig  `mapstructure:"launch"`
	Browser BrowserConfig `mapstructure:"browser"`
	Target  TargetConfig  `mapstructure:"target"`
	API     APIConfig     `mapstructure:"api"`
	History HistoryConfig `mapstructure:"history"`
	Auth    AuthConfig    `mapstructure:"auth"`
}

// LaunchConfig paces session starts. PerMinute 0 disables pacing.
type LaunchConfig struct {
	PerMinute int `mapstructure:"per_minute"`
	Burst     int `mapstructure:"burst"`
}

type BrowserConfig struct {
	// Image is used for every driver kind without an entry in Images
	Image  string            `mapstructure:"image"`
	Images map[string]string `mapstructure:"images"`
	// Host is where published container ports are reachable
	Host         string        `mapstructure:"host"`
	StartTimeout time.Duration `mapstructure:"start_timeout"`
}

type TargetConfig struct {
	// BaseURL resolves targets given as a bare channel name
	BaseURL string `mapstructure:"base_url"`
	// AuthURL is probed with session credentials before watching. Empty skips the probe.
	AuthURL string `mapstructure:"auth_url"`
}

type APIConfig struct {
	// Listen enables the status API on this address, e.g. ":8080"
	Listen string `mapstructure:"listen"`
}

type HistoryConfig struct {
	// Path of the sqlite database. Empty disables history.
	Path string `mapstructure:"path"`
}

// AuthConfig holds credentials for sessions created from flags
type AuthConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Capacity:     3,
		PollInterval: 30 * time.Second,
		CloseTimeout: 30 * time.Second,
		Launch: LaunchConfig{
			PerMinute: 0,
			Burst:     1,
		},
		Browser: BrowserConfig{
			Image:        "browserless/chrome:latest",
			Images:       map[string]string{},
			Host:         "localhost",
			StartTimeout: 30 * time.Second,
		},
		Target: TargetConfig{
			BaseURL: "https://kick.com/",
		},
		History: HistoryConfig{
			Path: "./storage/history.db",
		},
	}
}

// Loader resolves a Config from its sources
type Loader struct {
	v *viper.Viper
}

func NewLoader() *Loader {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("capacity", d.Capacity)
	v.SetDefault("poll_interval", d.PollInterval)
	v.SetDefault("close_timeout", d.CloseTimeout)

	v.SetDefault("launch.per_minute", d.Launch.PerMinute)
	v.SetDefault("launch.burst", d.Launch.Burst)

	v.SetDefault("browser.image", d.Browser.Image)
	v.SetDefault("browser.images", d.Browser.Images)
	v.SetDefault("browser.host", d.Browser.Host)
	v.SetDefault("browser.start_timeout", d.Browser.StartTimeout)

	v.SetDefault("target.base_url", d.Target.BaseURL)
	v.SetDefault("target.auth_url", d.Target.AuthURL)

	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("history.path", d.History.Path)

	v.SetDefault("auth.username", "")
	v.SetDefault("auth.password", "")
}

// BindFlag makes a command-line flag override key when the flag is set
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("no flag for %s", key)
	}
	return l.v.BindPFlag(key, flag)
}

// Load reads path when given, otherwise fleet.yaml from the working directory if present
func (l *Loader) Load(path string) (*Config, error) {
	if path != "" {
		l.v.SetConfigFile(path)
	} else {
		l.v.SetConfigName("fleet")
		l.v.AddConfigPath(".")
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Capacity < 1 {
		errs = append(errs, fmt.Errorf("capacity must be at least 1, got %d", c.Capacity))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval))
	}
	if c.Launch.PerMinute < 0 {
		errs = append(errs, fmt.Errorf("launch.per_minute must not be negative"))
	}
	for kind := range c.Browser.Images {
		if _, err := models.ParseDriverKind(kind); err != nil {
			errs = append(errs, fmt.Errorf("browser.images: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Images resolves the container image of every driver kind
func (c *Config) Images() map[models.DriverKind]string {
	images := make(map[models.DriverKind]string, len(models.DriverKinds))
	for _, kind := range models.DriverKinds {
		image := c.Browser.Images[string(kind)]
		if image == "" {
			image = c.Browser.Image
		}
		images[kind] = image
	}
	return images
}

// Credentials returns the configured account, or nil when no username is set
func (c *Config) Credentials() *models.Credentials {
	if c.Auth.Username == "" {
		return nil
	}
	return &models.Credentials{Username: c.Auth.Username, Password: c.Auth.Password}
}
