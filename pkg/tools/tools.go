// Package tools provides the built-in fact-checking toolset.
//
// Every tool embeds tool.Base, rejects malformed input from ValidateArgs with
// a tool.ArgError and builds its result only through the toolresult
// constructors, so all of them behave identically under tool.Invoke.
package tools

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/harun/factkit/pkg/tool"
)

const (
	defaultTopN        = 3
	defaultHTTPTimeout = 10 * time.Second
	defaultUserAgent   = "factkit/1.0"
)

// DecideThresholds tunes verdict_aggregate. Zero fields take the defaults.
type DecideThresholds struct {
	RefuteMin     float64
	RefuteMargin  float64
	RefuteHigh    float64
	SupportMin    float64
	SupportMargin float64
	SupportHigh   float64
}

// DefaultDecideThresholds favours refutation over support.
func DefaultDecideThresholds() DecideThresholds {
	return DecideThresholds{
		RefuteMin:     1.5,
		RefuteMargin:  0.5,
		RefuteHigh:    2.5,
		SupportMin:    1.8,
		SupportMargin: 0.7,
		SupportHigh:   3.0,
	}
}

func (d DecideThresholds) withDefaults() DecideThresholds {
	def := DefaultDecideThresholds()
	if d.RefuteMin == 0 {
		d.RefuteMin = def.RefuteMin
	}
	if d.RefuteMargin == 0 {
		d.RefuteMargin = def.RefuteMargin
	}
	if d.RefuteHigh == 0 {
		d.RefuteHigh = def.RefuteHigh
	}
	if d.SupportMin == 0 {
		d.SupportMin = def.SupportMin
	}
	if d.SupportMargin == 0 {
		d.SupportMargin = def.SupportMargin
	}
	if d.SupportHigh == 0 {
		d.SupportHigh = def.SupportHigh
	}
	return d
}

// LLMOptions configures the OpenAI-compatible endpoint used by llm_verify.
type LLMOptions struct {
	BaseURL    string
	APIKey     string
	Model      string
	MaxTokens  int
	MaxRetries int
}

// SearchOptions overrides the search backends, mostly for tests.
type SearchOptions struct {
	WikiEndpoint       string
	WikiPageBase       string
	DuckDuckGoEndpoint string

	// Provider is the web_search backend when a call names none.
	Provider        string
	SerpAPIEndpoint string
	SerpAPIKey      string
	TavilyEndpoint  string
	TavilyKey       string
}

// Options configures default tool registration.
type Options struct {
	// KBPath is the JSONL knowledge base read by kb_lookup.
	KBPath string
	// RecordEvidence appends search hits to KBPath.
	RecordEvidence bool

	HTTPClient  *http.Client
	HTTPTimeout time.Duration
	UserAgent   string

	// TopN is the sentence_extract default when top_n is omitted.
	TopN int

	Decide DecideThresholds
	LLM    LLMOptions
	Search SearchOptions
}

func (o Options) withDefaults() Options {
	if o.HTTPTimeout <= 0 {
		o.HTTPTimeout = defaultHTTPTimeout
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.HTTPTimeout}
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	if o.TopN < 1 || o.TopN > 10 {
		o.TopN = defaultTopN
	}
	o.Decide = o.Decide.withDefaults()
	return o
}

// RegisterDefaults registers every built-in tool.
func RegisterDefaults(reg *tool.Registry, opts Options) error {
	if reg == nil {
		return errors.New("tool registry is required")
	}
	opts = opts.withDefaults()

	registrations := []struct {
		name     string
		register func() error
	}{
		{"echo", func() error { return tool.Register[EchoResult](reg, NewEcho()) }},
		{"claim_normalize", func() error { return tool.Register[NormalizedClaim](reg, NewClaimNormalize()) }},
		{"claim_decompose", func() error { return tool.Register[Decomposition](reg, NewClaimDecompose()) }},
		{"evidence_query_plan", func() error { return tool.Register[QueryPlan](reg, NewEvidenceQueryPlan()) }},
		{"tool_request_compose", func() error { return tool.Register[RequestBatch](reg, NewToolRequestCompose()) }},
		{"sentence_extract", func() error { return tool.Register[Extraction](reg, NewSentenceExtract(opts.TopN)) }},
		{"nli_score", func() error { return tool.Register[StanceScores](reg, NewNLIScore()) }},
		{"verdict_aggregate", func() error { return tool.Register[Verdicts](reg, NewVerdictAggregate(opts.Decide)) }},
		{"response_compose", func() error { return tool.Register[Response](reg, NewResponseCompose()) }},
		{"output_verify", func() error { return tool.Register[Verification](reg, NewOutputVerify()) }},
		{"kb_lookup", func() error { return tool.Register[KBResult](reg, NewKBLookup(opts.KBPath)) }},
		{"search", func() error { return tool.Register[SearchResult](reg, NewSearch(opts)) }},
		{"web_search", func() error { return tool.Register[SearchResult](reg, NewWebSearch(opts)) }},
		{"page_fetch", func() error { return tool.Register[Page](reg, NewPageFetch(opts)) }},
		{"llm_verify", func() error { return tool.Register[Label](reg, NewLLMVerify(opts.LLM)) }},
	}

	for _, r := range registrations {
		if err := r.register(); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", r.name, err)
		}
	}
	return nil
}

// Progress is the pipeline bookkeeping returned as "sp" by the planning tools.
// Callers pass the previous one back as "st".
type Progress struct {
	Rev   int    `json:"rev"`
	Stage string `json:"fsm"`
}

func nextProgress(args tool.Args, stage string) Progress {
	rev := 0
	if st, ok := args.Map("st"); ok {
		rev, _ = tool.Args(st).Int("rev")
	}
	return Progress{Rev: rev + 1, Stage: stage}
}
