package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateEndpoint validates an http(s) endpoint. Empty means the built-in default.
func (v *Validator) ValidateEndpoint(name, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: scheme must be http or https, got %q", name, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: host is required", name)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 32768 {
		return fmt.Errorf("max tokens too large (max 32768), got %d", tokens)
	}
	return nil
}

// ValidateDecide checks that every threshold is positive
func (v *Validator) ValidateDecide(d DecideConfig) error {
	values := map[string]float64{
		"refute_min":     d.RefuteMin,
		"refute_margin":  d.RefuteMargin,
		"refute_high":    d.RefuteHigh,
		"support_min":    d.SupportMin,
		"support_margin": d.SupportMargin,
		"support_high":   d.SupportHigh,
	}
	for _, key := range []string{"refute_min", "refute_margin", "refute_high", "support_min", "support_margin", "support_high"} {
		if values[key] < 0 {
			return fmt.Errorf("tools.decide.%s must be >= 0", key)
		}
	}
	if d.RefuteHigh != 0 && d.RefuteHigh < d.RefuteMin {
		return fmt.Errorf("tools.decide.refute_high must be >= refute_min")
	}
	if d.SupportHigh != 0 && d.SupportHigh < d.SupportMin {
		return fmt.Errorf("tools.decide.support_high must be >= support_min")
	}
	return nil
}

// ValidateSampleRatio validates the trace sampling ratio
func (v *Validator) ValidateSampleRatio(ratio float64) error {
	if ratio < 0 || ratio > 1 {
		return fmt.Errorf("sample ratio must be between 0 and 1, got %f", ratio)
	}
	return nil
}

// ValidateConfig performs comprehensive validation and returns every problem found
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := cfg.Validate(); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	for _, pattern := range cfg.Logging.RedactPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			errors = append(errors, fmt.Errorf("logging.redact_patterns: %w", err))
		}
	}

	if err := v.ValidateEndpoint("tools.llm.base_url", cfg.Tools.LLM.BaseURL); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateEndpoint("tools.search.wiki_endpoint", cfg.Tools.Search.WikiEndpoint); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateEndpoint("tools.search.wiki_page_base", cfg.Tools.Search.WikiPageBase); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateEndpoint("tools.search.duckduckgo_endpoint", cfg.Tools.Search.DuckDuckGoEndpoint); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateEndpoint("tools.search.serpapi_endpoint", cfg.Tools.Search.SerpAPIEndpoint); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateEndpoint("tools.search.tavily_endpoint", cfg.Tools.Search.TavilyEndpoint); err != nil {
		errors = append(errors, err)
	}
	switch cfg.Tools.Search.Provider {
	case "", "serpapi", "tavily":
	default:
		errors = append(errors, fmt.Errorf("tools.search.provider must be serpapi or tavily, got %q", cfg.Tools.Search.Provider))
	}

	if err := v.ValidateMaxTokens(cfg.Tools.LLM.MaxTokens); err != nil {
		errors = append(errors, fmt.Errorf("tools.llm: %w", err))
	}
	if cfg.Tools.LLM.MaxRetries < 0 {
		errors = append(errors, fmt.Errorf("tools.llm.max_retries must be >= 0"))
	}

	if err := v.ValidateDecide(cfg.Tools.Decide); err != nil {
		errors = append(errors, err)
	}

	if cfg.Server.ShutdownTimeout < 0 {
		errors = append(errors, fmt.Errorf("server.shutdown_timeout must be >= 0"))
	}
	if cfg.Server.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Errorf("server.rate_limit_per_minute must be >= 0"))
	}
	if cfg.Server.MaxBodyBytes < 0 {
		errors = append(errors, fmt.Errorf("server.max_body_bytes must be >= 0"))
	}

	if cfg.Tracing.Enabled {
		if err := v.ValidateEndpoint("tracing.endpoint", cfg.Tracing.Endpoint); err != nil {
			errors = append(errors, err)
		}
		if err := v.ValidateSampleRatio(cfg.Tracing.SampleRatio); err != nil {
			errors = append(errors, fmt.Errorf("tracing: %w", err))
		}
	}

	return errors
}
