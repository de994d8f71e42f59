package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/docrelay/markerd/internal/config"
	"github.com/docrelay/markerd/internal/engine"
	"github.com/docrelay/markerd/internal/render"
	"github.com/spf13/cobra"
)

func newConvertCmd() *cobra.Command {
	var (
		outputDir string
		format    string
		noImages  bool
		maxPages  int
	)

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a single document from the command line",
		Long: `Runs one document through the Marker engine without starting the server.

Output artifacts are written to the directory given with --output, or to a
marker_output directory next to the input file.`,
		Example: `  # Convert a PDF to markdown
  markerd convert report.pdf

  # Convert to HTML into a specific directory, first 10 pages only
  markerd convert report.pdf --format html --output ./out --max-pages 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			inputPath := args[0]
			if _, err := os.Stat(inputPath); err != nil {
				return fmt.Errorf("input file not found: %w", err)
			}

			if !engine.ValidFormat(format) {
				return fmt.Errorf("invalid format %q; must be markdown, json, html or pdf", format)
			}

			if outputDir == "" {
				outputDir = filepath.Join(filepath.Dir(inputPath), "marker_output")
			}

			renderer := render.NewRenderer(cfg.Engine.WKHTMLToPDF)
			marker := engine.NewMarker(cfg.Engine.Binary, cfg.EngineTimeout(), renderer)

			result := marker.Convert(cmd.Context(), engine.Request{
				InputPath:     inputPath,
				OutputDir:     outputDir,
				Format:        format,
				ExtractImages: !noImages,
				MaxPages:      maxPages,
			})
			if !result.Success {
				return fmt.Errorf("conversion failed: %s", result.Error)
			}

			fmt.Printf("Converted %s (%d characters extracted)\n", filepath.Base(inputPath), len(result.Text))
			kinds := make([]string, 0, len(result.OutputFiles))
			for kind := range result.OutputFiles {
				kinds = append(kinds, kind)
			}
			sort.Strings(kinds)
			for _, kind := range kinds {
				fmt.Printf("  %-8s %s\n", strings.ToUpper(kind), result.OutputFiles[kind])
			}
			if len(result.Images) > 0 {
				fmt.Printf("  %-8s %d extracted\n", "IMAGES", len(result.Images))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory")
	cmd.Flags().StringVar(&format, "format", "markdown", "Output format (markdown, json, html, pdf)")
	cmd.Flags().BoolVar(&noImages, "no-images", false, "Don't extract images")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "Maximum pages to process (0 for all)")

	return cmd
}
