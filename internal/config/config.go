// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config loads the YAML configuration of the epaper command.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/GermanBionicSystems/epd/epaper"
	"gopkg.in/yaml.v3"
)

// Backends accepted in Config.Backend.
const (
	BackendPeriph = "periph"
	BackendRPIO   = "rpio"
)

// Pins names the control lines. With the periph backend they are gpioreg
// names; with the rpio backend they must be "GPIO<n>".
type Pins struct {
	DC   string `yaml:"dc"`
	CS   string `yaml:"cs"`
	RST  string `yaml:"rst"`
	Busy string `yaml:"busy"`
}

// Clock configures the clock mode.
type Clock struct {
	// Schedule is a cron expression with an optional leading seconds field.
	Schedule string `yaml:"schedule"`
	// Layout is a time.Format layout.
	Layout string `yaml:"layout"`
}

// Config is the top-level configuration.
type Config struct {
	// Model is one of epaper.Models(), matched case-insensitively.
	Model string `yaml:"model"`
	// Rotation in degrees clockwise: 0, 90, 180 or 270.
	Rotation int  `yaml:"rotation"`
	Paged    bool `yaml:"paged"`

	Backend string `yaml:"backend"`
	// SPI is the spireg port name; empty selects the first port.
	SPI  string `yaml:"spi"`
	Pins Pins   `yaml:"pins"`

	Title string `yaml:"title"`
	Clock Clock  `yaml:"clock"`

	// Preview renders on the terminal instead of the panel.
	Preview bool `yaml:"preview"`
	// Diagnostics logs busy waits and refresh timings.
	Diagnostics bool `yaml:"diagnostics"`
}

// DefaultConfig returns the configuration of a Waveshare style HAT.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in zero values.
func (c *Config) Normalize() {
	if c.Model == "" {
		c.Model = string(epaper.GDEW029T5D.Model)
	}
	if c.Backend == "" {
		c.Backend = BackendPeriph
	}
	if c.Pins.DC == "" {
		c.Pins.DC = "GPIO25"
	}
	if c.Pins.CS == "" {
		c.Pins.CS = "GPIO8"
	}
	if c.Pins.RST == "" {
		c.Pins.RST = "GPIO17"
	}
	if c.Pins.Busy == "" {
		c.Pins.Busy = "GPIO24"
	}
	if c.Title == "" {
		c.Title = "periph"
	}
	if c.Clock.Schedule == "" {
		c.Clock.Schedule = "0 * * * * *"
	}
	if c.Clock.Layout == "" {
		c.Clock.Layout = "15:04"
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	var m epaper.Model
	if err := m.Set(c.Model); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	var r epaper.Rotation
	if err := r.Set(strconv.Itoa(c.Rotation)); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Backend {
	case BackendPeriph:
	case BackendRPIO:
		for _, name := range []string{c.Pins.DC, c.Pins.CS, c.Pins.RST, c.Pins.Busy} {
			if _, err := BCM(name); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("config: unknown backend %q: expected %s or %s", c.Backend, BackendPeriph, BackendRPIO)
	}
	return nil
}

// Opts returns the panel options selected by the configuration.
func (c *Config) Opts() (*epaper.Opts, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	var m epaper.Model
	_ = m.Set(c.Model)
	opts, err := m.Opts()
	if err != nil {
		return nil, err
	}
	_ = opts.Rotation.Set(strconv.Itoa(c.Rotation))
	opts.Paged = c.Paged
	return opts, nil
}

// BCM parses a "GPIO<n>" pin name.
func BCM(name string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(name, "GPIO%d", &n); err != nil || n < 0 || n > 53 || name != "GPIO"+strconv.Itoa(n) {
		return 0, fmt.Errorf("config: pin %q is not a BCM GPIO name", name)
	}
	return n, nil
}

// Load reads the YAML file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically, readable by the owner only.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config: path is empty")
	}
	if cfg == nil {
		return errors.New("config: nil config")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".epaper-config-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
