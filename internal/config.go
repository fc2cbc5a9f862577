package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/geoplan/internal/snap"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Plans  PlansConfig       `yaml:"plans"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
	Editor EditorConfig      `yaml:"editor"`
	SSE    SSEConfig         `yaml:"sse"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.Plans, &c.SQLite, &c.Auth, &c.Editor, &c.SSE} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// PlansConfig holds the path to the plan library directory.
type PlansConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the plans configuration.
func (c *PlansConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// EditorConfig holds the defaults of server-hosted editor sessions.
type EditorConfig struct {
	GridSize      float64       `yaml:"grid_size"`
	SnapGrid      bool          `yaml:"snap_grid"`
	SnapObjects   bool          `yaml:"snap_objects"`
	SnapThreshold float64       `yaml:"snap_threshold"`
	HistoryLimit  int           `yaml:"history_limit"`
	SaveTimeout   time.Duration `yaml:"save_timeout"`
	MarkerSize    float64       `yaml:"marker_size"`
	// SessionIdle closes API sessions nobody touched for this long. Zero
	// keeps them until they are deleted or the server stops.
	SessionIdle time.Duration `yaml:"session_idle"`
	// MultiInstance allows several positions of one geo code per plan. It
	// also changes the store schema, so it must not flip on an existing database.
	MultiInstance bool `yaml:"multi_instance"`
}

// Validate validates the editor configuration.
func (c *EditorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.GridSize, validation.Required, validation.Min(1.0)),
		validation.Field(&c.SnapThreshold, validation.Required, validation.Min(0.5)),
		validation.Field(&c.HistoryLimit, validation.Required, validation.Min(1), validation.Max(1000)),
		validation.Field(&c.SaveTimeout, validation.Required, validation.Min(100*time.Millisecond)),
		validation.Field(&c.MarkerSize, validation.Required, validation.Min(1.0)),
		validation.Field(&c.SessionIdle, validation.Min(time.Duration(0))),
	)
}

// Snap returns the initial snapping mode of new sessions.
func (c *EditorConfig) Snap() snap.Config {
	return snap.Config{Grid: c.SnapGrid, GridSize: c.GridSize, Objects: c.SnapObjects, Threshold: c.SnapThreshold}
}

// SSEConfig holds live update configuration.
type SSEConfig struct {
	// PlanThrottle bounds how often library.updated is broadcast while plan
	// files change.
	PlanThrottle time.Duration `yaml:"plan_throttle"`
}

// Validate validates the SSE configuration.
func (c *SSEConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PlanThrottle, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Plans: PlansConfig{
			Path: "./plans",
		},
		SQLite: SQLiteConfig{
			Path: "./geoplan.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Editor: EditorConfig{
			GridSize:      20,
			SnapObjects:   true,
			SnapThreshold: 8,
			HistoryLimit:  100,
			SaveTimeout:   10 * time.Second,
			MarkerSize:    24,
			SessionIdle:   30 * time.Minute,
		},
		SSE: SSEConfig{
			PlanThrottle: 2 * time.Second,
		},
	}
}
