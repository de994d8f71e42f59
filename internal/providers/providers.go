package providers

import (
	"context"
)

// Config represents one transcription request to a vision LLM provider.
type Config struct {
	Model       string
	Temperature float64
	Prompt      string
	Image       []byte
	ImageFormat string // e.g. "png", "jpeg"
	APIKey      string
	BaseURL     string
}

// Provider defines the interface for a vision-capable LLM provider.
type Provider interface {
	Transcribe(ctx context.Context, config Config) (string, error)
}
