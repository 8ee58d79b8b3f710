// Package config loads the scene description: screen, tick rate, the central
// body and the satellites. Embedded defaults are merged with an optional YAML
// file.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"image/color"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/star-system-simulator/model"
	"github.com/signalsfoundry/star-system-simulator/timectrl"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds all simulation configuration parameters.
type Config struct {
	Screen        ScreenConfig        `yaml:"screen"`
	Physics       PhysicsConfig       `yaml:"physics"`
	CentralBody   CentralBodyConfig   `yaml:"central_body"`
	Satellites    []SatelliteConfig   `yaml:"satellites"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ScreenConfig holds display settings. The scene origin is the screen centre.
type ScreenConfig struct {
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	TargetFPS  int    `yaml:"target_fps"`
	Background string `yaml:"background"`
	Title      string `yaml:"title"`
}

// PhysicsConfig holds the entity tick settings.
type PhysicsConfig struct {
	TickHz    float64 `yaml:"tick_hz"`    // nominal ticks per second for every entity
	TimeScale float64 `yaml:"time_scale"` // simulated seconds per wall second
	Mode      string  `yaml:"mode"`       // realtime or accelerated
}

// CentralBodyConfig describes the steerable body.
type CentralBodyConfig struct {
	ID     string  `yaml:"id"`
	Speed  float64 `yaml:"speed"` // px/s per held axis
	Radius float64 `yaml:"radius"`
	Color  string  `yaml:"color"`
}

// Point is a 2D offset in pixels.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// SatelliteConfig describes one orbiting body.
type SatelliteConfig struct {
	ID           string  `yaml:"id"`
	Placement    Point   `yaml:"placement"` // shown until the first tick
	Amplitude    float64 `yaml:"amplitude"`
	AngularSpeed float64 `yaml:"angular_speed"` // rad/s
	Phase        float64 `yaml:"phase"`
	Radius       float64 `yaml:"radius"`
	Color        string  `yaml:"color"`
}

// ObservabilityConfig holds listen addresses and tracing. An empty address
// disables its listener.
type ObservabilityConfig struct {
	MetricsAddr string        `yaml:"metrics_addr"`
	GRPCAddr    string        `yaml:"grpc_addr"`
	Tracing     TracingConfig `yaml:"tracing"`
}

// TracingConfig selects the span exporter. STARSYSTEM_TRACING_* and
// STARSYSTEM_OTLP_ENDPOINT override it at start-up.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"` // stdout or otlp
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"` // otlp collector, host:port
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Default returns the embedded defaults.
func Default() (*Config, error) {
	return Load("")
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used. A satellites list in the
// file replaces the default list.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := Merge(cfg, data); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Merge overlays YAML data onto cfg. Only fields present in data change.
func Merge(cfg *Config, data []byte) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// Validate checks ranges and colors.
func (c *Config) Validate() error {
	if c.Physics.TickHz <= 0 {
		return fmt.Errorf("%w: physics.tick_hz must be positive, got %v", ErrInvalid, c.Physics.TickHz)
	}
	if c.Physics.TimeScale <= 0 {
		return fmt.Errorf("%w: physics.time_scale must be positive, got %v", ErrInvalid, c.Physics.TimeScale)
	}
	if _, err := timectrl.ParseMode(c.Physics.Mode); err != nil {
		return fmt.Errorf("%w: physics.mode: %v", ErrInvalid, err)
	}
	if c.Screen.Width <= 0 || c.Screen.Height <= 0 {
		return fmt.Errorf("%w: screen size %dx%d", ErrInvalid, c.Screen.Width, c.Screen.Height)
	}
	if c.Screen.TargetFPS <= 0 {
		return fmt.Errorf("%w: screen.target_fps must be positive, got %d", ErrInvalid, c.Screen.TargetFPS)
	}
	if _, err := model.ParseColor(c.Screen.Background); err != nil {
		return fmt.Errorf("%w: screen.background: %v", ErrInvalid, err)
	}

	if c.CentralBody.ID == "" {
		return fmt.Errorf("%w: central_body.id is required", ErrInvalid)
	}
	if c.CentralBody.Radius < 0 || c.CentralBody.Speed < 0 {
		return fmt.Errorf("%w: central_body radius and speed must be non-negative", ErrInvalid)
	}
	if _, err := model.ParseColor(c.CentralBody.Color); err != nil {
		return fmt.Errorf("%w: central_body.color: %v", ErrInvalid, err)
	}

	switch c.Observability.Tracing.Exporter {
	case "", "stdout", "otlp":
	default:
		return fmt.Errorf("%w: observability.tracing.exporter %q", ErrInvalid, c.Observability.Tracing.Exporter)
	}
	if r := c.Observability.Tracing.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("%w: observability.tracing.sample_ratio must be in [0,1], got %v", ErrInvalid, r)
	}

	seen := map[string]bool{c.CentralBody.ID: true}
	for i, s := range c.Satellites {
		if s.ID == "" {
			return fmt.Errorf("%w: satellites[%d].id is required", ErrInvalid, i)
		}
		if seen[s.ID] {
			return fmt.Errorf("%w: duplicate entity id %q", ErrInvalid, s.ID)
		}
		seen[s.ID] = true
		if s.Amplitude < 0 || s.Radius < 0 {
			return fmt.Errorf("%w: satellites[%d] amplitude and radius must be non-negative", ErrInvalid, i)
		}
		if _, err := model.ParseColor(s.Color); err != nil {
			return fmt.Errorf("%w: satellites[%d].color: %v", ErrInvalid, i, err)
		}
	}
	return nil
}

// ClockMode returns the parsed physics.mode. Validate has already checked it.
func (c *Config) ClockMode() timectrl.Mode {
	m, _ := timectrl.ParseMode(c.Physics.Mode)
	return m
}

// TickPeriod converts tick_hz to a period.
func (c *Config) TickPeriod() time.Duration {
	return time.Duration(float64(time.Second) / c.Physics.TickHz)
}

// Origin is the screen centre, where the central body starts.
func (c *Config) Origin() model.Vec2 {
	return model.V(float64(c.Screen.Width)/2, float64(c.Screen.Height)/2)
}

// BackgroundColor returns the parsed background color. Validate guarantees it
// parses.
func (c *Config) BackgroundColor() color.RGBA {
	bg, _ := model.ParseColor(c.Screen.Background)
	return bg
}

// WriteYAML saves the effective configuration.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
