// Command animnode drives a render node from the command line.
//
// It hosts the node in memory on the software backend, which makes it
// useful for previewing assets, listing the ports an asset exposes and
// iterating on an asset with hot reload.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gogpu/animnode"
	_ "github.com/gogpu/animnode/gpu/software"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "animnode",
	Short: "Render vector animations into shared textures",
	Long: `animnode loads a scene asset into a render node, synchronizes the node's
ports with the asset's view model and state machine, and renders frames
into an exported texture.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setupLogging(cmd)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "node configuration file (TOML)")
	rootCmd.PersistentFlags().StringArray("set", nil, "initial port value as name=value, repeatable")
	rootCmd.PersistentFlags().String("size", "", "render size as WIDTHxHEIGHT, default is the artboard size")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")
}

func setupLogging(cmd *cobra.Command) error {
	levelName, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")

	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return fmt.Errorf("invalid --log-level %q", levelName)
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(format) {
	case "text":
		h = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		h = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid --log-format %q", format)
	}
	animnode.SetLogger(slog.New(h))
	return nil
}
