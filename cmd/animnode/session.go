package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/gogpu/animnode/binding"
	"github.com/gogpu/animnode/config"
	"github.com/gogpu/animnode/export"
	"github.com/gogpu/animnode/gpu/software"
	"github.com/gogpu/animnode/host/memhost"
	"github.com/gogpu/animnode/metrics"
	"github.com/gogpu/animnode/node"
	"github.com/gogpu/gputypes"
	"github.com/spf13/cobra"
)

// session is a node hosted in memory.
type session struct {
	cfg  config.Config
	path string
	host *memhost.Host
	node *node.Node
}

// loadConfig reads --config and applies the --set and --size overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	if cfg.GPU.Backend == "" {
		cfg.GPU.Backend = software.Name
	}

	sets, _ := cmd.Flags().GetStringArray("set")
	for _, s := range sets {
		name, value, ok := strings.Cut(s, "=")
		if !ok || name == "" {
			return cfg, fmt.Errorf("invalid --set %q, want name=value", s)
		}
		if cfg.Ports == nil {
			cfg.Ports = make(map[string]any)
		}
		cfg.Ports[name] = value
	}

	if size, _ := cmd.Flags().GetString("size"); size != "" {
		w, h, err := parseSize(size)
		if err != nil {
			return cfg, err
		}
		cfg.Asset.Width, cfg.Asset.Height = w, h
	}
	return cfg, cfg.Validate()
}

func parseSize(s string) (width, height uint32, err error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid size %q, want WIDTHxHEIGHT", s)
	}
	w, err1 := strconv.ParseUint(ws, 10, 32)
	h, err2 := strconv.ParseUint(hs, 10, 32)
	if err := errors.Join(err1, err2); err != nil || w == 0 || h == 0 {
		return 0, 0, fmt.Errorf("invalid size %q, want WIDTHxHEIGHT", s)
	}
	return uint32(w), uint32(h), nil
}

// assetArg returns the asset named on the command line or in the config.
func assetArg(cfg config.Config, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg.Asset.Path != "" {
		return cfg.Asset.Path, nil
	}
	return "", errors.New("no asset: pass a path or set asset.path in the config")
}

func openSession(ctx context.Context, cfg config.Config, path string, col *metrics.Collector) (*session, error) {
	h := memhost.New()
	n := node.New(h, node.WithConfig(cfg), node.WithMetrics(col))
	if err := n.Create(ctx); err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, path: path, host: h, node: n}
	if err := s.load(); err != nil {
		_ = n.Destroy()
		return nil, err
	}
	return s, nil
}

// load (re)loads the asset and negotiates the render size.
func (s *session) load() error {
	if err := s.host.Set(binding.PortAssetPath, binding.EncodeString(s.path)); err != nil {
		return err
	}
	if err := s.host.Pump(); err != nil {
		return err
	}
	if s.cfg.Asset.Width > 0 {
		res := node.EncodeResolution(s.cfg.Asset.Width, s.cfg.Asset.Height)
		if err := s.host.Set(binding.PortResolution, res); err != nil {
			return err
		}
		if err := s.host.Pump(); err != nil {
			return err
		}
	}
	if st := s.node.State(); st != node.StateReady {
		return fmt.Errorf("node is %s after loading %s", st, s.path)
	}
	return nil
}

func (s *session) frame(ctx context.Context, dt float64) error {
	return s.node.Execute(ctx, node.ExecuteParams{DeltaTime: dt, Values: s.host.Tick()})
}

// snapshot copies the exported texture into an image.
func (s *session) snapshot() (*image.RGBA, error) {
	out, ok := s.host.Value(binding.PortOutput)
	if !ok {
		return nil, errors.New("no output texture")
	}
	info, err := export.Unpack(out)
	if err != nil {
		return nil, err
	}
	mem, ok := s.host.Memory(info.Memory.Handle)
	if !ok {
		return nil, fmt.Errorf("output resource %d is not readable", info.Memory.Handle)
	}

	w, h := mem.Size()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	mem.Read(func(pix []byte) {
		copy(img.Pix, pix)
	})
	if info.Texture.Format == gputypes.TextureFormatBGRA8Unorm {
		for i := 0; i+3 < len(img.Pix); i += 4 {
			img.Pix[i], img.Pix[i+2] = img.Pix[i+2], img.Pix[i]
		}
	}
	return img, nil
}

func (s *session) close() error {
	return s.node.Destroy()
}
