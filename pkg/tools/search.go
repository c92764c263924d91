package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/harun/factkit/pkg/tool"
	"github.com/harun/factkit/pkg/toolresult"
)

const (
	defaultWikiEndpoint = "https://en.wikipedia.org/w/api.php"
	defaultWikiPageBase = "https://en.wikipedia.org/wiki/"
	defaultDDGEndpoint  = "https://api.duckduckgo.com/"
)

// Search sources.
const (
	SourceWiki = "wiki"
	SourceWeb  = "web"
	SourceNews = "news"
	SourceKB   = "kb"
)

// SearchHit is one search result.
type SearchHit struct {
	RID     string  `json:"rid"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	URL     string  `json:"url"`
	Src     string  `json:"src"`
	Date    *string `json:"d"`
}

// SearchResult is the search payload.
type SearchResult struct {
	Results []SearchHit `json:"results"`
}

// Search queries the Wikipedia search API or DuckDuckGo instant answers.
type Search struct {
	tool.Base
	fetch    *fetcher
	wiki     string
	pageBase string
	ddg      string
	evidence *evidenceLog
}

var searchSchema = tool.MustSchema(false,
	tool.Parameter{Name: "q", Type: "string", Description: "Query", Required: true},
	tool.Parameter{Name: "lim", Type: "integer", Description: "Maximum results", Minimum: tool.Bound(1), Maximum: tool.Bound(10), Default: defaultReqLimit},
	tool.Parameter{Name: "src", Type: "string", Description: "Backend", Enum: []interface{}{SourceWiki, SourceWeb, SourceNews, SourceKB}, Default: SourceWiki},
)

// NewSearch returns the search tool. With RecordEvidence set, hits are
// appended to the knowledge base, so repeated calls are no longer retry safe.
func NewSearch(opts Options) *Search {
	s := &Search{
		Base: tool.Base{
			ToolName:     "search",
			Description:  "Search Wikipedia (src=wiki) or DuckDuckGo (src=web|news).",
			NotRetrySafe: opts.RecordEvidence && opts.KBPath != "",
		},
		fetch:    newFetcher(opts),
		wiki:     firstNonEmpty(opts.Search.WikiEndpoint, defaultWikiEndpoint),
		pageBase: firstNonEmpty(opts.Search.WikiPageBase, defaultWikiPageBase),
		ddg:      firstNonEmpty(opts.Search.DuckDuckGoEndpoint, defaultDDGEndpoint),
	}
	if s.NotRetrySafe {
		s.evidence = &evidenceLog{path: opts.KBPath}
	}
	return s
}

func (t *Search) Schema() *tool.Schema { return searchSchema }

func (t *Search) ValidateArgs(args tool.Args) (tool.Args, error) {
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
	src := SourceWiki
	if args.Has("src") && args["src"] != nil {
		s, _ := args.String("src")
		switch s {
		case SourceWiki, SourceWeb, SourceNews, SourceKB:
			src = s
		default:
			return nil, tool.NewArgError("src must be wiki|web|news|kb")
		}
	}
	return tool.Args{"q": q, "lim": lim, "src": src}, nil
}

func (t *Search) Execute(ctx context.Context, args tool.Args) (toolresult.Envelope[SearchResult], error) {
	q, _ := args.String("q")
	lim, _ := args.Int("lim")
	src, _ := args.String("src")

	if src == SourceKB {
		return toolresult.Failure[SearchResult]("WRONG_TOOL", "use kb_lookup for src=kb"), nil
	}

	var (
		hits []SearchHit
		err  error
	)
	if src == SourceWiki {
		hits, err = t.searchWiki(ctx, q, lim)
	} else {
		hits, err = t.searchDuckDuckGo(ctx, q, lim, src)
	}
	if err != nil {
		return fetchFailure[SearchResult](err), nil
	}

	if err := t.evidence.append(hits); err != nil {
		log.Warn().Err(err).Str("tool", t.Name()).Msg("Failed to record search evidence")
	}
	return toolresult.Success(SearchResult{Results: hits}), nil
}

type wikiResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

func (t *Search) searchWiki(ctx context.Context, q string, lim int) ([]SearchHit, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", q)
	params.Set("format", "json")
	params.Set("utf8", "1")
	params.Set("srlimit", fmt.Sprint(lim))

	var resp wikiResponse
	if err := t.fetch.getJSON(ctx, "wikipedia", t.wiki+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	hits := []SearchHit{}
	for i, h := range resp.Query.Search {
		hits = append(hits, SearchHit{
			RID:     fmt.Sprintf("r%d", i+1),
			Title:   h.Title,
			Snippet: htmlToText(h.Snippet),
			URL:     t.pageBase + url.PathEscape(strings.ReplaceAll(h.Title, " ", "_")),
			Src:     SourceWiki,
		})
	}
	return hits, nil
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Topics   []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	Results       []ddgTopic `json:"Results"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

func (t *Search) searchDuckDuckGo(ctx context.Context, q string, lim int, src string) ([]SearchHit, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("format", "json")
	params.Set("no_redirect", "1")
	params.Set("no_html", "1")

	var resp ddgResponse
	if err := t.fetch.getJSON(ctx, "duckduckgo", t.ddg+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	pool := append([]ddgTopic{}, resp.Results...)
	for _, topic := range resp.RelatedTopics {
		if len(topic.Topics) > 0 {
			pool = append(pool, topic.Topics...)
			continue
		}
		pool = append(pool, topic)
	}

	hits := []SearchHit{}
	for _, item := range pool {
		if item.Text == "" || item.FirstURL == "" {
			continue
		}
		title, _, _ := strings.Cut(item.Text, " - ")
		hits = append(hits, SearchHit{
			RID:     fmt.Sprintf("r%d", len(hits)+1),
			Title:   htmlToText(title),
			Snippet: htmlToText(item.Text),
			URL:     item.FirstURL,
			Src:     src,
		})
		if len(hits) >= lim {
			break
		}
	}
	return hits, nil
}

// fetchFailure maps a network error to FETCH_TIMEOUT (retryable) or FETCH_FAIL.
func fetchFailure[T any](err error) toolresult.Envelope[T] {
	if tool.Transient(err) {
		return toolresult.Retryable[T]("FETCH_TIMEOUT", err.Error())
	}
	return toolresult.Failure[T]("FETCH_FAIL", err.Error())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
