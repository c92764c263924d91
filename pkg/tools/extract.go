package tools

import (
	"context"
	"math"
	"sort"

	"github.com/harun/factkit/pkg/tool"
	"github.com/harun/factkit/pkg/toolresult"
)

// BM25 parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Sentence is one ranked sentence; I is its position in the source text.
type Sentence struct {
	I     int     `json:"i"`
	S     string  `json:"s"`
	Score float64 `json:"score"`
}

// Extraction is the sentence_extract payload.
type Extraction struct {
	Sentences []Sentence `json:"sentences"`
}

// SentenceExtract ranks the sentences of a passage against a query with BM25.
type SentenceExtract struct {
	tool.Base
	defaultTopN int
}

var sentenceExtractSchema = tool.MustSchema(false,
	tool.Parameter{Name: "text", Type: "string", Description: "Passage, plain text or HTML", Required: true},
	tool.Parameter{Name: "query", Type: "string", Description: "Ranking query; without it sentences keep source order"},
	tool.Parameter{Name: "top_n", Type: "integer", Description: "Sentences to return", Minimum: tool.Bound(1), Maximum: tool.Bound(10)},
)

// NewSentenceExtract returns sentence_extract with topN used when top_n is omitted.
func NewSentenceExtract(topN int) *SentenceExtract {
	if topN < 1 || topN > 10 {
		topN = defaultTopN
	}
	return &SentenceExtract{
		Base: tool.Base{
			ToolName:    "sentence_extract",
			Description: "Return the sentences of a passage most relevant to a query.",
		},
		defaultTopN: topN,
	}
}

func (t *SentenceExtract) Schema() *tool.Schema { return sentenceExtractSchema }

func (t *SentenceExtract) ValidateArgs(args tool.Args) (tool.Args, error) {
	topN := t.defaultTopN
	if args.Has("top_n") && args["top_n"] != nil {
		n, ok := args.Int("top_n")
		if !ok || n < 1 || n > 10 {
			return nil, tool.NewArgError("top_n must be 1..10")
		}
		topN = n
	}
	text := args.TrimmedString("text")
	if text == "" {
		return nil, tool.NewArgError("text is required")
	}
	return tool.Args{"text": text, "query": args.TrimmedString("query"), "top_n": topN}, nil
}

func (t *SentenceExtract) Execute(_ context.Context, args tool.Args) (toolresult.Envelope[Extraction], error) {
	text, _ := args.String("text")
	query, _ := args.String("query")
	topN, _ := args.Int("top_n")

	sents := splitSentences(cleanPassage(text))
	if len(sents) == 0 {
		return toolresult.Failure[Extraction]("NO_SENTENCES", "no sentences found"), nil
	}

	scores := make([]float64, len(sents))
	if query != "" {
		scores = bm25(sents, words(query))
	}

	ranked := make([]Sentence, len(sents))
	for i, s := range sents {
		ranked[i] = Sentence{I: i, S: s, Score: scores[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return toolresult.Success(Extraction{Sentences: ranked}), nil
}

// cleanPassage strips markup and bracketed citation markers.
func cleanPassage(text string) string {
	return collapseSpace(citationRe.ReplaceAllString(htmlToText(text), " "))
}

func bm25(sentences []string, query []string) []float64 {
	scores := make([]float64, len(sentences))
	if len(sentences) == 0 || len(query) == 0 {
		return scores
	}

	docs := make([][]string, len(sentences))
	total := 0
	for i, s := range sentences {
		docs[i] = words(s)
		total += len(docs[i])
	}
	avgdl := float64(total) / float64(len(docs))
	if avgdl == 0 {
		return scores
	}

	idf := map[string]float64{}
	for _, term := range query {
		if _, done := idf[term]; done {
			continue
		}
		df := 0
		for _, d := range docs {
			if containsWord(d, term) {
				df++
			}
		}
		idf[term] = math.Log(1 + (float64(len(docs)-df)+0.5)/(float64(df)+0.5))
	}

	for i, d := range docs {
		dl := float64(len(d))
		score := 0.0
		for _, term := range query {
			tf := float64(countWord(d, term))
			if tf == 0 {
				continue
			}
			denom := tf + bm25K1*(1-bm25B+bm25B*(dl/avgdl))
			score += idf[term] * (tf * (bm25K1 + 1) / denom)
		}
		scores[i] = score
	}
	return scores
}

func containsWord(doc []string, w string) bool {
	return countWord(doc, w) > 0
}

func countWord(doc []string, w string) int {
	n := 0
	for _, d := range doc {
		if d == w {
			n++
		}
	}
	return n
}
