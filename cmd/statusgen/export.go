package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"statusgen/internal/config"
	"statusgen/internal/export"
	"statusgen/internal/logx"
	"statusgen/internal/status"
	"statusgen/internal/viewmodel"
	"statusgen/views"
)

type exportOptions struct {
	format     string
	statusFile string
	outDir     string
	scale      float64
	quality    float64
}

func newExportCmd(root *rootOptions) *cobra.Command {
	opts := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render a status to a PNG capture or a standalone HTML file",
		Example: `  statusgen export --format html --status status.yaml --out ./exports
  statusgen export --format png --scale 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, ctx, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("scale") {
				opts.scale = cfg.Export.Scale
			}
			if !cmd.Flags().Changed("quality") {
				opts.quality = cfg.Export.Quality
			}
			name, err := runExport(ctx, cfg, opts)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), name)
			return err
		},
	}
	cmd.Flags().StringVar(&opts.format, "format", string(export.KindPNG), "png or html")
	cmd.Flags().StringVar(&opts.statusFile, "status", "", "YAML file describing the status (defaults to the sample status)")
	cmd.Flags().StringVar(&opts.outDir, "out", ".", "directory to write the export to")
	cmd.Flags().Float64Var(&opts.scale, "scale", export.DefaultScale, "PNG pixel ratio")
	cmd.Flags().Float64Var(&opts.quality, "quality", export.DefaultQuality, "encoder quality in (0,1]")
	return cmd
}

// loadState reads a status from YAML. Fields the file omits keep their
// defaults.
func loadState(path string) (status.State, error) {
	state := status.DefaultState()
	if path == "" {
		return state, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return status.State{}, err
	}
	if err := yaml.Unmarshal(raw, &state); err != nil {
		return status.State{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := state.Config.Validate(); err != nil {
		return status.State{}, fmt.Errorf("%s: %w", path, err)
	}
	return state, nil
}

func runExport(ctx context.Context, cfg *config.Config, opts *exportOptions) (string, error) {
	kind := export.Kind(opts.format)
	if kind != export.KindPNG && kind != export.KindHTML {
		return "", fmt.Errorf("--format must be png or html, got %q", opts.format)
	}
	state, err := loadState(opts.statusFile)
	if err != nil {
		return "", err
	}

	preview := viewmodel.PreviewPage{
		Title:     "WhatsApp Status",
		Simulator: viewmodel.BuildSimulator(state, viewmodel.NewCountFormatter(cfg.Locale)),
	}
	var page bytes.Buffer
	if err := views.PreviewPage(preview).Render(ctx, &page); err != nil {
		return "", err
	}

	pipeline, err := newPipeline(cfg)
	if err != nil {
		return "", err
	}
	saver := export.DirSaver{Dir: opts.outDir}
	log := logx.Ctx(ctx)

	var name string
	if kind == export.KindHTML {
		name, err = pipeline.ExportHTML(ctx, page.Bytes(), saver)
	} else {
		name, err = pipeline.Capture(ctx, page.Bytes(), saver, export.CaptureOptions{
			Scale:   opts.scale,
			Quality: opts.quality,
			Progress: func(p int) {
				log.Debug().Int("progress", p).Msg("capture")
			},
		})
	}
	if err != nil {
		return "", err
	}
	log.Info().Str(logx.FieldExport, string(kind)).Str("filename", name).Msg("export written")
	return name, nil
}
