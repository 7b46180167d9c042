// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package config loads render node configuration from TOML.
//
//	[gpu]
//	backend = "software"
//	adapter = "nvidia"
//	format = "bgra8unorm"
//	fence_timeout = "2s"
//
//	[render]
//	clear_every = 1
//	clear_color = "#00000000"
//	fit = "contain"
//
//	[asset]
//	path = "scenes/bounce.yaml"
//	width = 1280
//	height = 720
//
//	[ports]
//	"vm:Ball.size" = 80
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gogpu/animnode/asset"
	"github.com/gogpu/gg"
	"github.com/gogpu/gputypes"
	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid is returned by Validate and Load for unusable settings.
var ErrInvalid = errors.New("config: invalid")

// Duration is a time.Duration written as a Go duration string.
type Duration time.Duration

// UnmarshalText parses a duration such as "250ms".
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// GPU selects the device.
type GPU struct {
	// Backend names a registered backend. Empty picks the default.
	Backend string `toml:"backend"`
	// Adapter is a case-insensitive substring of the adapter name.
	Adapter string `toml:"adapter"`
	// Format is the exported texture format: rgba8unorm or bgra8unorm.
	// Empty uses the device's preferred format.
	Format string `toml:"format"`
	// FenceTimeout bounds the end-of-frame GPU wait. Zero waits forever.
	FenceTimeout Duration `toml:"fence_timeout"`
}

// Render controls how frames are drawn.
type Render struct {
	ClearEvery int    `toml:"clear_every"`
	ClearColor string `toml:"clear_color"`
	Fit        string `toml:"fit"`
}

// Asset is the initial content of the AssetPath and Resolution ports.
type Asset struct {
	Path   string `toml:"path"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

// Config is the node configuration.
type Config struct {
	GPU    GPU    `toml:"gpu"`
	Render Render `toml:"render"`
	Asset  Asset  `toml:"asset"`

	// Ports holds initial values of dynamic ports keyed by port name.
	Ports map[string]any `toml:"ports"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Render: Render{ClearEvery: 1, ClearColor: "#00000000", Fit: "contain"},
	}
}

// Load reads the TOML file at path over the defaults and validates it.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every setting.
func (c *Config) Validate() error {
	if _, err := c.TextureFormat(); err != nil {
		return err
	}
	if c.GPU.FenceTimeout < 0 {
		return fmt.Errorf("%w: negative fence_timeout", ErrInvalid)
	}
	if c.Render.ClearEvery < 0 {
		return fmt.Errorf("%w: negative clear_every", ErrInvalid)
	}
	if _, err := c.ClearColor(); err != nil {
		return err
	}
	if _, err := c.Fit(); err != nil {
		return err
	}
	if (c.Asset.Width == 0) != (c.Asset.Height == 0) {
		return fmt.Errorf("%w: asset width and height must both be set", ErrInvalid)
	}
	return nil
}

// TextureFormat returns the configured format, or TextureFormatUndefined
// when the device should choose.
func (c *Config) TextureFormat() (gputypes.TextureFormat, error) {
	switch strings.ToLower(c.GPU.Format) {
	case "":
		return gputypes.TextureFormatUndefined, nil
	case "rgba8unorm":
		return gputypes.TextureFormatRGBA8Unorm, nil
	case "bgra8unorm":
		return gputypes.TextureFormatBGRA8Unorm, nil
	}
	return gputypes.TextureFormatUndefined, fmt.Errorf("%w: texture format %q", ErrInvalid, c.GPU.Format)
}

// ClearColor parses the clear color.
func (c *Config) ClearColor() (gg.RGBA, error) {
	s := strings.TrimPrefix(c.Render.ClearColor, "#")
	switch len(s) {
	case 0:
		return gg.Transparent, nil
	case 3, 4, 6, 8:
	default:
		return gg.RGBA{}, fmt.Errorf("%w: clear_color %q", ErrInvalid, c.Render.ClearColor)
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return gg.RGBA{}, fmt.Errorf("%w: clear_color %q", ErrInvalid, c.Render.ClearColor)
		}
	}
	return gg.Hex(s), nil
}

// Fit parses the fit mode.
func (c *Config) Fit() (asset.Fit, error) {
	if c.Render.Fit == "" {
		return asset.FitContain, nil
	}
	f, ok := asset.ParseFit(c.Render.Fit)
	if !ok {
		return 0, fmt.Errorf("%w: fit %q", ErrInvalid, c.Render.Fit)
	}
	return f, nil
}

// Marshal encodes c as TOML.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
