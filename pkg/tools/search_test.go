package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/factkit/pkg/tool"
	"github.com/harun/factkit/pkg/toolresult"
)

func newSearchServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/w/api.php", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "query", r.URL.Query().Get("action"))
		assert.Equal(t, "Apollo 11", r.URL.Query().Get("srsearch"))
		assert.Equal(t, "2", r.URL.Query().Get("srlimit"))
		assert.Equal(t, "factkit-test", r.Header.Get("User-Agent"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"query": map[string]interface{}{
				"search": []interface{}{
					map[string]interface{}{"title": "Apollo 11", "snippet": `<span class="searchmatch">Apollo</span> 11 was the first crewed landing`},
					map[string]interface{}{"title": "Apollo program", "snippet": "NASA program"},
				},
			},
		})
	})
	mux.HandleFunc("/ddg", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"Results": []interface{}{},
			"RelatedTopics": []interface{}{
				map[string]interface{}{"Text": "Apollo 11 - first crewed landing", "FirstURL": "https://ddg.test/a"},
				map[string]interface{}{"Topics": []interface{}{
					map[string]interface{}{"Text": "Apollo 12 - second landing", "FirstURL": "https://ddg.test/b"},
					map[string]interface{}{"Text": "Apollo 13 - aborted", "FirstURL": "https://ddg.test/c"},
				}},
				map[string]interface{}{"Text": "", "FirstURL": "https://ddg.test/empty"},
			},
		})
	})
	mux.HandleFunc("/unavailable", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func searchOptions(srv *httptest.Server) Options {
	return Options{
		UserAgent: "factkit-test",
		Search: SearchOptions{
			WikiEndpoint:       srv.URL + "/w/api.php",
			WikiPageBase:       "https://wiki.test/wiki/",
			DuckDuckGoEndpoint: srv.URL + "/ddg",
		},
	}
}

func TestSearch_Wiki(t *testing.T) {
	srv := newSearchServer(t)

	env := tool.Invoke[SearchResult](context.Background(), NewSearch(searchOptions(srv)), tool.Args{"q": " Apollo 11 ", "lim": float64(2)})
	data := requireOK(t, env)

	require.Len(t, data.Results, 2)
	assert.Equal(t, SearchHit{
		RID:     "r1",
		Title:   "Apollo 11",
		Snippet: "Apollo 11 was the first crewed landing",
		URL:     "https://wiki.test/wiki/Apollo_11",
		Src:     SourceWiki,
	}, data.Results[0])
	assert.Equal(t, "r2", data.Results[1].RID)
}

func TestSearch_DuckDuckGo(t *testing.T) {
	srv := newSearchServer(t)

	env := tool.Invoke[SearchResult](context.Background(), NewSearch(searchOptions(srv)), tool.Args{"q": "apollo", "lim": float64(2), "src": SourceNews})
	data := requireOK(t, env)

	require.Len(t, data.Results, 2)
	assert.Equal(t, "Apollo 11", data.Results[0].Title)
	assert.Equal(t, "Apollo 11 - first crewed landing", data.Results[0].Snippet)
	assert.Equal(t, SourceNews, data.Results[0].Src)
	assert.Equal(t, "https://ddg.test/b", data.Results[1].URL)
}

func TestSearch_ArgumentsAndRouting(t *testing.T) {
	srv := newSearchServer(t)
	search := NewSearch(searchOptions(srv))

	tests := []struct {
		name   string
		args   tool.Args
		status toolresult.Status
		code   string
	}{
		{"missing query", tool.Args{"lim": float64(2)}, toolresult.StatusError, toolresult.CodeBadArgs},
		{"limit too big", tool.Args{"q": "x", "lim": float64(11)}, toolresult.StatusError, toolresult.CodeBadArgs},
		{"unknown source", tool.Args{"q": "x", "src": "books"}, toolresult.StatusError, toolresult.CodeBadArgs},
		{"kb source", tool.Args{"q": "x", "src": SourceKB}, toolresult.StatusError, "WRONG_TOOL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := tool.Invoke[SearchResult](context.Background(), search, tt.args)
			assert.Equal(t, tt.status, env.Status())
			assert.Equal(t, tt.code, env.Code())
		})
	}
}

func TestSearch_UpstreamFailures(t *testing.T) {
	srv := newSearchServer(t)

	opts := searchOptions(srv)
	opts.Search.WikiEndpoint = srv.URL + "/unavailable"
	env := tool.Invoke[SearchResult](context.Background(), NewSearch(opts), tool.Args{"q": "x"})
	assert.Equal(t, toolresult.StatusRetry, env.Status())
	assert.Equal(t, "FETCH_TIMEOUT", env.Code())
	assert.Equal(t, toolresult.RollbackState, env.RollbackHint())

	opts.Search.WikiEndpoint = srv.URL + "/missing"
	env = tool.Invoke[SearchResult](context.Background(), NewSearch(opts), tool.Args{"q": "x"})
	assert.Equal(t, toolresult.StatusError, env.Status())
	assert.Equal(t, "FETCH_FAIL", env.Code())
	assert.Contains(t, env.Error().Message, "404")
}

func TestSearch_RecordsEvidence(t *testing.T) {
	srv := newSearchServer(t)
	opts := searchOptions(srv)
	opts.KBPath = filepath.Join(t.TempDir(), "evidence.jsonl")
	opts.RecordEvidence = true

	search := NewSearch(opts)
	assert.False(t, search.RetrySafe())

	requireOK(t, tool.Invoke[SearchResult](context.Background(), search, tool.Args{"q": "Apollo 11", "lim": float64(2)}))

	lookup := NewKBLookup(opts.KBPath)
	data := requireOK(t, tool.Invoke[KBResult](context.Background(), lookup, tool.Args{"q": "crewed"}))
	require.Len(t, data.Items, 1)
	assert.Equal(t, "wiki:r1", data.Items[0].KID)
}
