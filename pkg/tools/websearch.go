package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/harun/factkit/pkg/tool"
	"github.com/harun/factkit/pkg/toolresult"
)

const (
	defaultSerpAPIEndpoint = "https://serpapi.com/search.json"
	defaultTavilyEndpoint  = "https://api.tavily.com/search"
)

// Web search providers.
const (
	ProviderSerpAPI = "serpapi"
	ProviderTavily  = "tavily"
)

// WebSearch queries a keyed web search API (SerpAPI or Tavily).
type WebSearch struct {
	tool.Base
	fetch    *fetcher
	provider string
	serpURL  string
	serpKey  string
	tavURL   string
	tavKey   string
	evidence *evidenceLog
}

var webSearchSchema = tool.MustSchema(false,
	tool.Parameter{Name: "q", Type: "string", Description: "Query", Required: true},
	tool.Parameter{Name: "lim", Type: "integer", Description: "Maximum results", Minimum: tool.Bound(1), Maximum: tool.Bound(10), Default: defaultReqLimit},
	tool.Parameter{Name: "provider", Type: "string", Description: "Backend; defaults to the configured one", Enum: []interface{}{ProviderSerpAPI, ProviderTavily}},
)

// NewWebSearch returns the web_search tool. Like search, it stops being retry
// safe once hits are recorded into the knowledge base.
func NewWebSearch(opts Options) *WebSearch {
	s := &WebSearch{
		Base: tool.Base{
			ToolName:     "web_search",
			Description:  "Search the web through SerpAPI or Tavily.",
			NotRetrySafe: opts.RecordEvidence && opts.KBPath != "",
		},
		fetch:    newFetcher(opts),
		provider: opts.Search.Provider,
		serpURL:  firstNonEmpty(opts.Search.SerpAPIEndpoint, defaultSerpAPIEndpoint),
		serpKey:  opts.Search.SerpAPIKey,
		tavURL:   firstNonEmpty(opts.Search.TavilyEndpoint, defaultTavilyEndpoint),
		tavKey:   opts.Search.TavilyKey,
	}
	if s.NotRetrySafe {
		s.evidence = &evidenceLog{path: opts.KBPath}
	}
	return s
}

func (t *WebSearch) Schema() *tool.Schema { return webSearchSchema }

func (t *WebSearch) ValidateArgs(args tool.Args) (tool.Args, error) {
	q := args.TrimmedString("q")
	if q == "" {
		return nil, tool.NewArgError("q is required")
	}
	lim := defaultReqLimit
	if args.Has("lim") && args["lim"] != nil {
		n, ok := args.Int("lim")
		if !ok || n < 1 || n > 10 {
			return nil, tool.NewArgError("lim must be 1..10")
		}
		lim = n
	}
	out := tool.Args{"q": q, "lim": lim}
	if args.Has("provider") && args["provider"] != nil {
		p, _ := args.String("provider")
		if p != ProviderSerpAPI && p != ProviderTavily {
			return nil, tool.NewArgError("provider must be serpapi|tavily")
		}
		out["provider"] = p
	}
	return out, nil
}

func (t *WebSearch) Execute(ctx context.Context, args tool.Args) (toolresult.Envelope[SearchResult], error) {
	q, _ := args.String("q")
	lim, _ := args.Int("lim")
	provider, _ := args.String("provider")

	provider = t.pickProvider(provider)
	var (
		hits []SearchHit
		err  error
	)
	switch provider {
	case ProviderSerpAPI:
		if t.serpKey == "" {
			return toolresult.Failure[SearchResult]("NO_KEY", "serpapi key is not configured"), nil
		}
		hits, err = t.searchSerpAPI(ctx, q, lim)
	case ProviderTavily:
		if t.tavKey == "" {
			return toolresult.Failure[SearchResult]("NO_KEY", "tavily key is not configured"), nil
		}
		hits, err = t.searchTavily(ctx, q, lim)
	default:
		return toolresult.Failure[SearchResult]("NO_PROVIDER", "set provider or configure an API key"), nil
	}
	if err != nil {
		return fetchFailure[SearchResult](err), nil
	}

	if err := t.evidence.append(hits); err != nil {
		log.Warn().Err(err).Str("tool", t.Name()).Msg("Failed to record search evidence")
	}
	return toolresult.Success(SearchResult{Results: hits}), nil
}

// pickProvider prefers the requested provider, then the configured one, then
// whichever provider has a key.
func (t *WebSearch) pickProvider(requested string) string {
	switch {
	case requested != "":
		return requested
	case t.provider != "":
		return t.provider
	case t.serpKey != "":
		return ProviderSerpAPI
	case t.tavKey != "":
		return ProviderTavily
	}
	return ""
}

type serpAPIResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"organic_results"`
}

func (t *WebSearch) searchSerpAPI(ctx context.Context, q string, lim int) ([]SearchHit, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("api_key", t.serpKey)
	params.Set("num", fmt.Sprint(lim))

	var resp serpAPIResponse
	if err := t.fetch.getJSON(ctx, "serpapi", t.serpURL+"?"+params.Encode(), &resp); err != nil {
		// keep the api key out of the error message
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = t.serpURL
		}
		return nil, err
	}

	hits := []SearchHit{}
	for _, r := range resp.OrganicResults {
		hits = append(hits, SearchHit{
			RID:     fmt.Sprintf("r%d", len(hits)+1),
			Title:   r.Title,
			Snippet: r.Snippet,
			URL:     r.Link,
			Src:     SourceWeb,
		})
		if len(hits) >= lim {
			break
		}
	}
	return hits, nil
}

type tavilyRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		URL     string `json:"url"`
	} `json:"results"`
}

func (t *WebSearch) searchTavily(ctx context.Context, q string, lim int) ([]SearchHit, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+t.tavKey)

	var resp tavilyResponse
	if err := t.fetch.postJSON(ctx, "tavily", t.tavURL, header, tavilyRequest{Query: q, MaxResults: lim}, &resp); err != nil {
		return nil, err
	}

	hits := []SearchHit{}
	for _, r := range resp.Results {
		hits = append(hits, SearchHit{
			RID:     fmt.Sprintf("r%d", len(hits)+1),
			Title:   r.Title,
			Snippet: r.Content,
			URL:     r.URL,
			Src:     SourceWeb,
		})
		if len(hits) >= lim {
			break
		}
	}
	return hits, nil
}
