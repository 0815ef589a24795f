// Package config provides configuration loading for the cloudforge pipeline.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the diagram generation pipeline.
type Config struct {
	Generation GenerationConfig `koanf:"generation"`
	Analyzer   AnalyzerConfig   `koanf:"analyzer"`
	Pipeline   PipelineConfig   `koanf:"pipeline"`
	Render     RenderConfig     `koanf:"render"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// GenerationConfig configures the outbound text-generation client.
type GenerationConfig struct {
	// BaseURL is the API endpoint of the generation service.
	BaseURL string `koanf:"base_url"`

	// Model names the generation model.
	Model string `koanf:"model"`

	// APIKey authenticates against the generation service.
	APIKey Secret `koanf:"api_key"`

	// MaxOutputTokens bounds the response size of a single call.
	MaxOutputTokens int `koanf:"max_output_tokens"`

	// Temperature controls sampling randomness (low for analytical precision).
	Temperature float64 `koanf:"temperature"`

	// Timeout bounds a single HTTP request.
	Timeout Duration `koanf:"timeout"`

	// MaxAttempts bounds retries per logical generation call.
	MaxAttempts int `koanf:"max_attempts"`

	// RateLimit is the sustained request rate (requests per second).
	RateLimit float64 `koanf:"rate_limit"`

	// Burst allows short request bursts above RateLimit.
	Burst int `koanf:"burst"`
}

// AnalyzerConfig configures the pattern-analysis agents.
type AnalyzerConfig struct {
	// Enabled toggles the enrichment stage entirely.
	Enabled bool `koanf:"enabled"`

	// AgentTimeout bounds each parallel sub-agent call.
	AgentTimeout Duration `koanf:"agent_timeout"`

	// MaxOutputTokens bounds each sub-agent response.
	MaxOutputTokens int `koanf:"max_output_tokens"`
}

// PipelineConfig configures the orchestrator.
type PipelineConfig struct {
	// MaxRetries is the per-stage retry budget (attempts = MaxRetries + 1).
	MaxRetries int `koanf:"max_retries"`

	// Formats are the requested output formats for the render stage.
	Formats []string `koanf:"formats"`
}

// RenderConfig configures the external render toolchain.
type RenderConfig struct {
	// Interpreter is the executable that runs synthesized scripts.
	Interpreter string `koanf:"interpreter"`

	// OutputDir is where rendered artifacts are written.
	OutputDir string `koanf:"output_dir"`

	// Timeout is the wall-clock bound for one render execution.
	Timeout Duration `koanf:"timeout"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// knownFormats are the render formats the toolchain can produce.
var knownFormats = map[string]bool{
	"png": true,
	"pdf": true,
	"svg": true,
	"dot": true,
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Generation.BaseURL == "" {
		return fmt.Errorf("generation.base_url is required")
	}
	if c.Generation.Model == "" {
		return fmt.Errorf("generation.model is required")
	}
	if c.Generation.MaxOutputTokens <= 0 {
		return fmt.Errorf("generation.max_output_tokens must be > 0, got %d", c.Generation.MaxOutputTokens)
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return fmt.Errorf("generation.temperature must be in [0, 2], got %v", c.Generation.Temperature)
	}
	if c.Generation.MaxAttempts < 1 {
		return fmt.Errorf("generation.max_attempts must be >= 1, got %d", c.Generation.MaxAttempts)
	}
	if c.Analyzer.Enabled && c.Analyzer.AgentTimeout.Duration() <= 0 {
		return fmt.Errorf("analyzer.agent_timeout must be > 0 when analyzer enabled")
	}
	if c.Pipeline.MaxRetries < 0 {
		return fmt.Errorf("pipeline.max_retries must be >= 0, got %d", c.Pipeline.MaxRetries)
	}
	if len(c.Pipeline.Formats) == 0 {
		return fmt.Errorf("pipeline.formats must list at least one output format")
	}
	for _, f := range c.Pipeline.Formats {
		if !knownFormats[f] {
			return fmt.Errorf("pipeline.formats contains unknown format %q", f)
		}
	}
	if c.Render.Timeout.Duration() <= 0 {
		return fmt.Errorf("render.timeout must be > 0")
	}
	if _, err := levelNames(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// levelNames validates the logging level string.
func levelNames(level string) (string, error) {
	switch level {
	case "trace", "debug", "info", "warn", "error":
		return level, nil
	default:
		return "", fmt.Errorf("logging.level must be one of trace/debug/info/warn/error, got %q", level)
	}
}

// applyDefaults populates the baseline configuration. Load calls it on
// a zero Config before unmarshalling, so keys present in the loaded
// config overwrite these values, including explicit zeroes.
func applyDefaults(cfg *Config) {
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gemini-2.5-flash"
	}
	if cfg.Generation.MaxOutputTokens == 0 {
		cfg.Generation.MaxOutputTokens = 5000
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = Duration(60 * time.Second)
	}
	if cfg.Generation.MaxAttempts == 0 {
		cfg.Generation.MaxAttempts = 3
	}
	if cfg.Generation.RateLimit == 0 {
		cfg.Generation.RateLimit = 50.0 / 60.0 // 50 requests per minute
	}
	if cfg.Generation.Burst == 0 {
		cfg.Generation.Burst = 5
	}
	if cfg.Analyzer.AgentTimeout == 0 {
		cfg.Analyzer.AgentTimeout = Duration(45 * time.Second)
	}
	if cfg.Analyzer.MaxOutputTokens == 0 {
		cfg.Analyzer.MaxOutputTokens = 1200
	}
	if cfg.Pipeline.MaxRetries == 0 {
		cfg.Pipeline.MaxRetries = 3
	}
	if len(cfg.Pipeline.Formats) == 0 {
		cfg.Pipeline.Formats = []string{"png", "pdf", "svg"}
	}
	if cfg.Render.Interpreter == "" {
		cfg.Render.Interpreter = "python3"
	}
	if cfg.Render.OutputDir == "" {
		cfg.Render.OutputDir = "output"
	}
	if cfg.Render.Timeout == 0 {
		cfg.Render.Timeout = Duration(30 * time.Second)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
