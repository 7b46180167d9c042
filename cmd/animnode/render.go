package main

import (
	"errors"
	"image"
	"image/png"
	"os"

	"github.com/gogpu/animnode"
	"github.com/spf13/cobra"
	xdraw "golang.org/x/image/draw"
)

var renderCmd = &cobra.Command{
	Use:   "render [asset]",
	Short: "Render frames of an asset and save the last one as PNG",
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
		out, _ := cmd.Flags().GetString("out")
		frames, _ := cmd.Flags().GetInt("frames")
		fps, _ := cmd.Flags().GetFloat64("fps")
		thumb, _ := cmd.Flags().GetInt("thumb")
		if frames < 1 || fps <= 0 {
			return errors.New("--frames must be at least 1 and --fps positive")
		}

		ctx := cmd.Context()
		s, err := openSession(ctx, cfg, path, nil)
		if err != nil {
			return err
		}
		defer s.close()

		for range frames {
			if err := s.frame(ctx, 1/fps); err != nil {
				return err
			}
		}
		img, err := s.snapshot()
		if err != nil {
			return err
		}
		var dst image.Image = img
		if thumb > 0 && thumb < img.Bounds().Dx() {
			dst = thumbnail(img, thumb)
		}
		if err := savePNG(out, dst); err != nil {
			return err
		}
		animnode.Logger().Info("rendered", "asset", path, "frames", frames,
			"out", out, "width", dst.Bounds().Dx(), "height", dst.Bounds().Dy())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringP("out", "o", "frame.png", "output PNG file")
	renderCmd.Flags().IntP("frames", "n", 1, "number of frames to render")
	renderCmd.Flags().Float64("fps", 60, "frame rate used for the animation clock")
	renderCmd.Flags().Int("thumb", 0, "scale the output down to this width")
}

// thumbnail scales img to width, keeping the aspect ratio.
func thumbnail(img image.Image, width int) *image.RGBA {
	b := img.Bounds()
	height := max(b.Dy()*width/b.Dx(), 1)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
