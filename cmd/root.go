package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgFile string

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "markerd",
		Short: "Document conversion server built around the Marker OCR engine",
		Long: `Markerd wraps the Marker OCR command-line tool behind an HTTP API.

Uploaded documents are converted to markdown, JSON, HTML or PDF in background
batches; results are exposed through session-scoped directories for polling
and download. Conversions can optionally be enhanced with a vision-capable
LLM (Ollama or Google Gemini).`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to YAML config file")

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConvertCmd())

	return cmd
}
