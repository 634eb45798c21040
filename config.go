// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package saga

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the file form of runtime options.
type Config struct {
	Name        string        `json:"name,omitempty" yaml:"name,omitempty"`
	BufferLimit int           `json:"bufferLimit,omitempty" yaml:"bufferLimit,omitempty"`
	LogLevel    string        `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	Idle        time.Duration `json:"idle,omitempty" yaml:"idle,omitempty"`
}

// LoadConfig decodes a YAML Config.
func LoadConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("saga: decode config: %w", err)
	}
	if cfg.BufferLimit < 0 {
		return nil, fmt.Errorf("saga: decode config: negative bufferLimit %d", cfg.BufferLimit)
	}
	if _, err := cfg.Level(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ReadConfig loads a YAML Config from path.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("saga: read config: %w", err)
	}
	return LoadConfig(data)
}

// Level parses LogLevel; empty means info.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("saga: decode config: %w", err)
	}
	return l, nil
}

// Options converts the Config to runtime options. Zero fields are skipped.
func (c *Config) Options() []Option {
	var opts []Option
	if c.Name != "" {
		opts = append(opts, WithName(c.Name))
	}
	if c.BufferLimit > 0 {
		opts = append(opts, WithBufferLimit(c.BufferLimit))
	}
	return opts
}
