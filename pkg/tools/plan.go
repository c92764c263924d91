package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/harun/factkit/pkg/tool"
	"github.com/harun/factkit/pkg/toolresult"
)

const (
	maxQueryTokens  = 6
	queriesPerClaim = 2
	planLimit       = 4
	defaultReqLimit = 3
)

var (
	titleSpanRe = regexp.MustCompile(`\b[A-Z][a-z]+\b(?:\s+\b[A-Z][a-z]+\b){0,3}`)
	mixedCaseRe = regexp.MustCompile(`\b[A-Za-z]*[A-Z][A-Za-z]*\b`)
)

var planSources = []string{"wiki", "kb", "web"}

// Plan lists the search queries for one claim.
type Plan struct {
	ID      string   `json:"id"`
	Queries []string `json:"q"`
	Sources []string `json:"src"`
	Limit   int      `json:"lim"`
}

// QueryPlan is the evidence_query_plan payload.
type QueryPlan struct {
	Plans    []Plan   `json:"plans"`
	Progress Progress `json:"sp"`
}

// EvidenceQueryPlan derives short search queries from claim entities and predicates.
type EvidenceQueryPlan struct{ tool.Base }

var evidenceQueryPlanSchema = tool.MustSchema(false,
	tool.Parameter{Name: "claims", Type: "array", Description: "Claims as objects with id and c", Required: true},
	tool.Parameter{Name: "st", Type: "object", Description: "Previous pipeline progress"},
)

func NewEvidenceQueryPlan() *EvidenceQueryPlan {
	return &EvidenceQueryPlan{tool.Base{
		ToolName:    "evidence_query_plan",
		Description: "Plan up to two short search queries per claim.",
	}}
}

func (t *EvidenceQueryPlan) Schema() *tool.Schema { return evidenceQueryPlanSchema }

func (t *EvidenceQueryPlan) ValidateArgs(args tool.Args) (tool.Args, error) {
	claims, ok := objectList(args["claims"])
	if !ok {
		return nil, tool.NewArgError("claims must be a list")
	}
	if len(claims) == 0 {
		return nil, tool.NewArgError("claims is empty")
	}
	out := args.Clone()
	out["claims"] = claims
	return out, nil
}

func (t *EvidenceQueryPlan) Execute(_ context.Context, args tool.Args) (toolresult.Envelope[QueryPlan], error) {
	claims, _ := objectList(args["claims"])

	plans := []Plan{}
	for _, c := range claims {
		queries := planQueries(stringField(c, "c", ""))
		if len(queries) == 0 {
			continue
		}
		plans = append(plans, Plan{
			ID:      stringField(c, "id", "s1"),
			Queries: queries,
			Sources: append([]string(nil), planSources...),
			Limit:   planLimit,
		})
	}

	if len(plans) == 0 {
		return toolresult.Failure[QueryPlan]("NO_QUERIES", "no valid query"), nil
	}
	return toolresult.Success(QueryPlan{Plans: plans, Progress: nextProgress(args, "RETRIEVAL")}), nil
}

func planQueries(claim string) []string {
	var queries []string
	if ents := entityPhrases(claim); len(ents) > 0 {
		ent := strings.TrimSpace(ents[0])
		if ent != "" {
			queries = append(queries, ent)
			if preds := predicateTerms(claim); len(preds) > 0 {
				n := min(2, len(preds))
				queries = append(queries, strings.Join(append([]string{ent}, preds[:n]...), " "))
			}
		}
	} else if toks := contentWords(claim); len(toks) > 0 {
		queries = append(queries, strings.Join(toks[:min(maxQueryTokens, len(toks))], " "))
	}

	out := []string{}
	seen := map[string]bool{}
	for _, q := range queries {
		q = limitTokens(q, maxQueryTokens)
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	if len(out) > queriesPerClaim {
		out = out[:queriesPerClaim]
	}
	return out
}

// entityPhrases returns Title Case spans followed by mixed-case tokens such as
// "iPhone", without duplicates.
func entityPhrases(text string) []string {
	phrases := []string{}
	seen := map[string]bool{}
	for _, s := range titleSpanRe.FindAllString(text, -1) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			phrases = append(phrases, s)
		}
	}
	for _, m := range mixedCaseRe.FindAllString(text, -1) {
		if len(m) >= 2 && !seen[m] {
			seen[m] = true
			phrases = append(phrases, m)
		}
	}
	return phrases
}

// predicateTerms are the content words that are not whole entity phrases.
func predicateTerms(text string) []string {
	ents := map[string]bool{}
	for _, e := range entityPhrases(text) {
		ents[strings.ToLower(e)] = true
	}
	terms := []string{}
	for _, w := range contentWords(text) {
		if !ents[w] {
			terms = append(terms, w)
		}
	}
	return terms
}

func limitTokens(q string, n int) string {
	parts := strings.Fields(q)
	if len(parts) <= n {
		return q
	}
	return strings.Join(parts[:n], " ")
}

// SearchRequest is a search call prepared for the orchestrator.
type SearchRequest struct {
	ID   string                 `json:"id"`
	Tool string                 `json:"tool"`
	Args map[string]interface{} `json:"args"`
	For  string                 `json:"for"`
}

// RequestBatch is the tool_request_compose payload.
type RequestBatch struct {
	Requests []SearchRequest `json:"tr"`
	Progress Progress        `json:"sp"`
}

// ToolRequestCompose expands query plans into search requests.
type ToolRequestCompose struct{ tool.Base }

var toolRequestComposeSchema = tool.MustSchema(false,
	tool.Parameter{Name: "plans", Type: "array", Description: "Plans from evidence_query_plan", Required: true},
	tool.Parameter{Name: "st", Type: "object", Description: "Previous pipeline progress"},
)

func NewToolRequestCompose() *ToolRequestCompose {
	return &ToolRequestCompose{tool.Base{
		ToolName:    "tool_request_compose",
		Description: "Turn query plans into search tool requests.",
	}}
}

func (t *ToolRequestCompose) Schema() *tool.Schema { return toolRequestComposeSchema }

func (t *ToolRequestCompose) ValidateArgs(args tool.Args) (tool.Args, error) {
	plans, ok := objectList(args["plans"])
	if !ok {
		return nil, tool.NewArgError("plans must be a list")
	}
	if len(plans) == 0 {
		return nil, tool.NewArgError("plans is empty")
	}
	out := args.Clone()
	out["plans"] = plans
	return out, nil
}

func (t *ToolRequestCompose) Execute(_ context.Context, args tool.Args) (toolresult.Envelope[RequestBatch], error) {
	plans, _ := objectList(args["plans"])

	requests := []SearchRequest{}
	for _, p := range plans {
		queries, ok := stringList(p["q"])
		if !ok {
			continue
		}
		limit := defaultReqLimit
		if n, ok := tool.Args(p).Int("lim"); ok {
			limit = n
		}
		for _, q := range queries {
			if strings.TrimSpace(q) == "" {
				continue
			}
			requests = append(requests, SearchRequest{
				ID:   fmt.Sprintf("t%d", len(requests)+1),
				Tool: "search",
				Args: map[string]interface{}{"q": strings.TrimSpace(q), "lim": limit, "src": "wiki"},
				For:  stringField(p, "id", "s1"),
			})
		}
	}

	if len(requests) == 0 {
		return toolresult.Failure[RequestBatch]("NO_QUERIES", "no valid queries"), nil
	}
	return toolresult.Success(RequestBatch{Requests: requests, Progress: nextProgress(args, "RETRIEVAL")}), nil
}
