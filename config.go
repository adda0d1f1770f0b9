package arbor

import (
	"encoding/json"
	"fmt"
)

// DefaultCapacity is the row count a scene starts with when none is given.
const DefaultCapacity = 8192

// Config configures a new Scene. The JSON-tagged fields can come from a
// config file through ParseConfig; collaborators are set in code.
type Config struct {
	Name string `json:"name,omitempty"`
	// Capacity is the initial row count. Zero means DefaultCapacity.
	Capacity int `json:"capacity,omitempty"`
	// FixedStep, if non-zero, is the dt passed to physics in place of the
	// frame delta.
	FixedStep float32 `json:"fixedStep,omitempty"`
	// ProjectDir is stripped from file references on save and prefixed on load.
	ProjectDir string `json:"projectDir,omitempty"`
	Debug      bool   `json:"debug,omitempty"`
	Paused     bool   `json:"paused,omitempty"`

	Physics     Physics        `json:"-"`
	Renderer    Renderer       `json:"-"`
	Resources   Resources      `json:"-"`
	Animator    Animator       `json:"-"`
	Logger      Logger         `json:"-"`
	Diagnostics DiagnosticSink `json:"-"`
}

// ParseConfig decodes a JSON scene configuration.
func ParseConfig(jsonData []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Capacity < 0 {
		return Config{}, fmt.Errorf("parse config: negative capacity %d", cfg.Capacity)
	}
	if cfg.FixedStep < 0 {
		return Config{}, fmt.Errorf("parse config: negative fixedStep %g", cfg.FixedStep)
	}
	return cfg, nil
}

// withDefaults fills zero values.
func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.Physics == nil {
		c.Physics = noopPhysics{}
	}
	if c.Renderer == nil {
		c.Renderer = &noopRenderer{}
	}
	if c.Resources == nil {
		c.Resources = noopResources{}
	}
	if c.Logger == nil {
		c.Logger = defaultLogger
	}
	return c
}
