package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/harun/factkit/internal/config"
	"github.com/harun/factkit/internal/logger"
	"github.com/harun/factkit/internal/metrics"
	"github.com/harun/factkit/internal/observability"
	"github.com/harun/factkit/internal/tracing"
	"github.com/harun/factkit/pkg/tool"
	"github.com/harun/factkit/pkg/tools"
)

// app is everything a command needs once configuration is loaded
type app struct {
	cfg      *config.Config
	logger   *logger.Logger
	registry *tool.Registry
	metrics  *metrics.Metrics
	audit    *observability.AuditLogger
	tracing  bool
}

// loadConfig loads and validates configuration, applying the --log-level override
func loadConfig(opts *globalOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.cfgFile)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	if errs := config.NewValidator().ValidateConfig(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// newApp wires logging, tracing, metrics, auditing and the tool registry.
// Logs go to the command's stderr so stdout carries only results.
func newApp(ctx context.Context, cmd *cobra.Command, opts *globalOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		Output:    cmd.ErrOrStderr(),

		RedactPatterns: cfg.Logging.RedactPatterns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{cfg: cfg, logger: lg}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(ctx, tracing.Options{
			ServiceName: cfg.Tracing.ServiceName,
			SampleRatio: cfg.Tracing.SampleRatio,
			Endpoint:    cfg.Tracing.Endpoint,
		}); err != nil {
			a.close()
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
		a.tracing = true
	}

	reg := tool.NewRegistry()
	if err := tools.RegisterDefaults(reg, toolOptions(cfg)); err != nil {
		a.close()
		return nil, err
	}
	reg.SetPolicy(cfg.Tools.Policy.Policy())

	a.metrics = metrics.NewMetrics()
	a.metrics.TrackRegistry(reg)

	if cfg.Logging.AuditFile != "" {
		audit, err := observability.OpenAuditLog(cfg.Logging.AuditFile)
		if err != nil {
			a.close()
			return nil, err
		}
		a.audit = audit
		reg.AddObserver(audit)
	}

	a.registry = reg

	log.Debug().
		Int("tools", reg.Count()).
		Str("kb_path", cfg.Tools.KBPath).
		Bool("tracing", a.tracing).
		Msg("factkit initialized")

	return a, nil
}

// close flushes tracing and closes the audit and log files
func (a *app) close() {
	if a.tracing {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to flush traces")
		}
		cancel()
	}
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close audit log")
		}
	}
	if a.logger != nil {
		_ = a.logger.Close()
	}
}

// toolOptions maps configuration onto tool registration options
func toolOptions(cfg *config.Config) tools.Options {
	t := cfg.Tools
	return tools.Options{
		KBPath:         t.KBPath,
		RecordEvidence: t.RecordEvidence,
		HTTPTimeout:    time.Duration(t.HTTPTimeoutSeconds) * time.Second,
		UserAgent:      t.UserAgent,
		TopN:           t.TopN,
		Decide: tools.DecideThresholds{
			RefuteMin:     t.Decide.RefuteMin,
			RefuteMargin:  t.Decide.RefuteMargin,
			RefuteHigh:    t.Decide.RefuteHigh,
			SupportMin:    t.Decide.SupportMin,
			SupportMargin: t.Decide.SupportMargin,
			SupportHigh:   t.Decide.SupportHigh,
		},
		LLM: tools.LLMOptions{
			BaseURL:    t.LLM.BaseURL,
			APIKey:     t.LLM.APIKey,
			Model:      t.LLM.Model,
			MaxTokens:  t.LLM.MaxTokens,
			MaxRetries: t.LLM.MaxRetries,
		},
		Search: tools.SearchOptions{
			WikiEndpoint:       t.Search.WikiEndpoint,
			WikiPageBase:       t.Search.WikiPageBase,
			DuckDuckGoEndpoint: t.Search.DuckDuckGoEndpoint,
			Provider:           t.Search.Provider,
			SerpAPIEndpoint:    t.Search.SerpAPIEndpoint,
			SerpAPIKey:         t.Search.SerpAPIKey,
			TavilyEndpoint:     t.Search.TavilyEndpoint,
			TavilyKey:          t.Search.TavilyKey,
		},
	}
}
