package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tunable settings for the server and the conversion engines.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	OutputDir string `yaml:"output_dir"`

	Engine struct {
		Binary         string `yaml:"binary"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		WKHTMLToPDF    string `yaml:"wkhtmltopdf"`
	} `yaml:"engine"`

	Retention struct {
		KeepRecent     int  `yaml:"keep_recent"`
		SweepOnStartup bool `yaml:"sweep_on_startup"`
	} `yaml:"retention"`

	LLM struct {
		Provider    string `yaml:"provider"`
		OllamaURL   string `yaml:"ollama_url"`
		OllamaModel string `yaml:"ollama_model"`
		GeminiModel string `yaml:"gemini_model"`
	} `yaml:"llm"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8100"
	cfg.OutputDir = "outputs"
	cfg.Engine.Binary = "marker_single"
	cfg.Engine.TimeoutSeconds = 300
	cfg.Retention.KeepRecent = 5
	cfg.Retention.SweepOnStartup = true
	cfg.LLM.Provider = "ollama"
	cfg.LLM.OllamaURL = "http://localhost:11434"
	cfg.LLM.OllamaModel = "gemma3:12b"
	cfg.LLM.GeminiModel = "gemini-1.5-flash"
	return cfg
}

// Load reads the YAML config at path on top of the defaults, then applies
// environment variable overrides. An empty path skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if cfg.Retention.KeepRecent < 0 {
		return nil, fmt.Errorf("retention.keep_recent must not be negative: %d", cfg.Retention.KeepRecent)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MARKERD_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("MARKERD_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("MARKERD_BINARY"); v != "" {
		c.Engine.Binary = v
	}
	if v := os.Getenv("MARKERD_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Engine.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("MARKERD_KEEP_RECENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Retention.KeepRecent = n
		}
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		c.LLM.OllamaURL = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		c.LLM.OllamaModel = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		c.LLM.GeminiModel = v
	}
}

// EngineTimeout returns the engine invocation timeout as a duration.
func (c *Config) EngineTimeout() time.Duration {
	return time.Duration(c.Engine.TimeoutSeconds) * time.Second
}
