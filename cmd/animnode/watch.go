package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gogpu/animnode"
	"github.com/gogpu/animnode/metrics"
	"github.com/gogpu/animnode/node"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [asset]",
	Short: "Render continuously and reload the asset when it changes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path, err := assetArg(cfg, args)
		if err != nil {
			return err
		}
		fps, _ := cmd.Flags().GetFloat64("fps")
		addr, _ := cmd.Flags().GetString("metrics")
		if fps <= 0 {
			return errors.New("--fps must be positive")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var col *metrics.Collector
		if addr != "" {
			if col, err = metrics.New(prometheus.DefaultRegisterer); err != nil {
				return err
			}
			go serveMetrics(addr)
		}

		s, err := openSession(ctx, cfg, path, col)
		if err != nil {
			return err
		}
		defer s.close()
		return watch(ctx, s, fps)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Float64("fps", 60, "frames per second")
	watchCmd.Flags().String("metrics", "", "serve Prometheus metrics on this address, e.g. :9090")
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	animnode.Logger().Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil { //nolint:gosec // local debugging endpoint
		animnode.Logger().Error("metrics server stopped", "err", err)
	}
}

// watch renders at fps and reloads the asset whenever its file is
// written. Editors often replace files, so the directory is watched.
func watch(ctx context.Context, s *session, fps float64) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(s.path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	log := animnode.Logger()
	log.Info("watching", "asset", abs, "fps", fps)

	period := time.Duration(float64(time.Second) / fps)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := s.load(); err != nil {
				log.Warn("reload failed", "asset", abs, "err", err)
				continue
			}
			log.Info("reloaded", "asset", abs, "bindings", s.node.Bindings().Len())

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", "err", err)

		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			err := s.frame(ctx, dt)
			switch {
			case errors.Is(err, node.ErrNotReady):
			case err != nil:
				log.Warn("frame failed", "err", err)
			}
		}
	}
}
