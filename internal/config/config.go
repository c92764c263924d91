package config

import (
	"encoding/json"
	"fmt"

	"github.com/harun/factkit/pkg/tool"
)

// Config represents the main factkit configuration
type Config struct {
	// Tools
	Tools ToolsConfig `json:"tools" mapstructure:"tools" yaml:"tools"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging" yaml:"logging"`

	// HTTP adapter
	Server ServerConfig `json:"server" mapstructure:"server" yaml:"server"`

	// Tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing" yaml:"tracing"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir" yaml:"data_dir"`
}

// ToolsConfig holds tool configuration
type ToolsConfig struct {
	Policy             ToolPolicyConfig `json:"policy" mapstructure:"policy" yaml:"policy"`
	KBPath             string           `json:"kb_path" mapstructure:"kb_path" yaml:"kb_path"`
	RecordEvidence     bool             `json:"record_evidence" mapstructure:"record_evidence" yaml:"record_evidence"`
	HTTPTimeoutSeconds int              `json:"http_timeout_seconds" mapstructure:"http_timeout_seconds" yaml:"http_timeout_seconds"`
	UserAgent          string           `json:"user_agent" mapstructure:"user_agent" yaml:"user_agent"`
	TopN               int              `json:"top_n" mapstructure:"top_n" yaml:"top_n"`
	Decide             DecideConfig     `json:"decide" mapstructure:"decide" yaml:"decide"`
	LLM                LLMConfig        `json:"llm" mapstructure:"llm" yaml:"llm"`
	Search             SearchConfig     `json:"search" mapstructure:"search" yaml:"search"`
}

// ToolPolicyConfig defines tool access policies
type ToolPolicyConfig struct {
	Allow []string `json:"allow" mapstructure:"allow" yaml:"allow"`
	Deny  []string `json:"deny" mapstructure:"deny" yaml:"deny"`
}

// Policy converts the configured lists into a registry policy.
func (p ToolPolicyConfig) Policy() *tool.Policy {
	return &tool.Policy{Allow: p.Allow, Deny: p.Deny}
}

// DecideConfig holds the verdict thresholds
type DecideConfig struct {
	RefuteMin     float64 `json:"refute_min" mapstructure:"refute_min" yaml:"refute_min"`
	RefuteMargin  float64 `json:"refute_margin" mapstructure:"refute_margin" yaml:"refute_margin"`
	RefuteHigh    float64 `json:"refute_high" mapstructure:"refute_high" yaml:"refute_high"`
	SupportMin    float64 `json:"support_min" mapstructure:"support_min" yaml:"support_min"`
	SupportMargin float64 `json:"support_margin" mapstructure:"support_margin" yaml:"support_margin"`
	SupportHigh   float64 `json:"support_high" mapstructure:"support_high" yaml:"support_high"`
}

// LLMConfig holds the OpenAI-compatible endpoint used by llm_verify
type LLMConfig struct {
	BaseURL    string `json:"base_url" mapstructure:"base_url" yaml:"base_url"`
	APIKey     string `json:"api_key" mapstructure:"api_key" yaml:"api_key"`
	Model      string `json:"model" mapstructure:"model" yaml:"model"`
	MaxTokens  int    `json:"max_tokens" mapstructure:"max_tokens" yaml:"max_tokens"`
	MaxRetries int    `json:"max_retries" mapstructure:"max_retries" yaml:"max_retries"`
}

// SearchConfig overrides the search backends
type SearchConfig struct {
	WikiEndpoint       string `json:"wiki_endpoint" mapstructure:"wiki_endpoint" yaml:"wiki_endpoint"`
	WikiPageBase       string `json:"wiki_page_base" mapstructure:"wiki_page_base" yaml:"wiki_page_base"`
	DuckDuckGoEndpoint string `json:"duckduckgo_endpoint" mapstructure:"duckduckgo_endpoint" yaml:"duckduckgo_endpoint"`

	// Provider is the web_search backend used when a call names none.
	Provider        string `json:"provider" mapstructure:"provider" yaml:"provider"`
	SerpAPIEndpoint string `json:"serpapi_endpoint" mapstructure:"serpapi_endpoint" yaml:"serpapi_endpoint"`
	SerpAPIKey      string `json:"serpapi_key" mapstructure:"serpapi_key" yaml:"serpapi_key"`
	TavilyEndpoint  string `json:"tavily_endpoint" mapstructure:"tavily_endpoint" yaml:"tavily_endpoint"`
	TavilyKey       string `json:"tavily_key" mapstructure:"tavily_key" yaml:"tavily_key"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level" yaml:"level"`
	File      string `json:"file" mapstructure:"file" yaml:"file"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty" yaml:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction" yaml:"redaction"`
	AuditFile string `json:"audit_file" mapstructure:"audit_file" yaml:"audit_file"`

	// RedactPatterns extends the built-in credential patterns.
	RedactPatterns []string `json:"redact_patterns,omitempty" mapstructure:"redact_patterns" yaml:"redact_patterns,omitempty"`
}

// ServerConfig holds HTTP adapter configuration
type ServerConfig struct {
	Host               string `json:"host" mapstructure:"host" yaml:"host"`
	Port               int    `json:"port" mapstructure:"port" yaml:"port"`
	ShutdownTimeout    int    `json:"shutdown_timeout" mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"` // seconds
	RateLimitPerMinute int    `json:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	MaxBodyBytes       int64  `json:"max_body_bytes" mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	Secret             string `json:"secret,omitempty" mapstructure:"secret" yaml:"secret,omitempty"` // HMAC key for signed invokes
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled" yaml:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name" yaml:"service_name"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio" yaml:"sample_ratio"`
	Endpoint    string  `json:"endpoint" mapstructure:"endpoint" yaml:"endpoint"` // OTLP/HTTP collector
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Tools: ToolsConfig{
			Policy: ToolPolicyConfig{
				Allow: []string{"*"},
				Deny:  []string{},
			},
			HTTPTimeoutSeconds: 10,
			UserAgent:          "factkit/1.0",
			TopN:               3,
			Decide: DecideConfig{
				RefuteMin:     1.5,
				RefuteMargin:  0.5,
				RefuteHigh:    2.5,
				SupportMin:    1.8,
				SupportMargin: 0.7,
				SupportHigh:   3.0,
			},
			LLM: LLMConfig{
				BaseURL:    "http://localhost:8000/v1/",
				Model:      "qwen",
				MaxTokens:  256,
				MaxRetries: 2,
			},
		},
		Logging: LoggingConfig{
			Level:     "info",
			Redaction: true,
		},
		Server: ServerConfig{
			Host:               "127.0.0.1",
			Port:               8080,
			ShutdownTimeout:    10,
			RateLimitPerMinute: 600,
			MaxBodyBytes:       1 << 20,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "factkit",
			SampleRatio: 1,
		},
	}
}

// Address returns the host:port the HTTP adapter listens on
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	masked := *c
	if masked.Tools.LLM.APIKey != "" {
		masked.Tools.LLM.APIKey = "***"
	}
	if masked.Tools.Search.SerpAPIKey != "" {
		masked.Tools.Search.SerpAPIKey = "***"
	}
	if masked.Tools.Search.TavilyKey != "" {
		masked.Tools.Search.TavilyKey = "***"
	}
	if masked.Server.Secret != "" {
		masked.Server.Secret = "***"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d is out of range", c.Server.Port)
	}
	if c.Tools.HTTPTimeoutSeconds < 0 {
		return fmt.Errorf("tools.http_timeout_seconds must be >= 0")
	}
	if c.Tools.TopN < 0 || c.Tools.TopN > 10 {
		return fmt.Errorf("tools.top_n must be between 0 and 10, got %d", c.Tools.TopN)
	}
	if err := c.Tools.Policy.Policy().Validate(); err != nil {
		return fmt.Errorf("tools.policy: %w", err)
	}
	if c.Tools.RecordEvidence && c.Tools.KBPath == "" {
		return fmt.Errorf("tools.kb_path is required when tools.record_evidence is enabled")
	}
	if c.Tracing.Enabled && c.Tracing.ServiceName == "" {
		return fmt.Errorf("tracing.service_name is required when tracing is enabled")
	}

	return nil
}
