package tools

import (
	"context"
	"regexp"
	"strings"

	"github.com/harun/factkit/pkg/tool"
	"github.com/harun/factkit/pkg/toolresult"
)

// Stances and confidence levels shared by nli_score and verdict_aggregate.
const (
	StanceSupport = "support"
	StanceRefute  = "refute"
	StanceNeutral = "neutral"

	ConfHigh = "high"
	ConfMed  = "med"
	ConfLow  = "low"
)

var yearRe = regexp.MustCompile(`\b(1[5-9]\d{2}|20\d{2}|2100)\b`)

var negations = []string{" not ", " never ", " no ", " none ", "n't", "without "}

// StanceScore rates one piece of evidence against its claim.
type StanceScore struct {
	EID    string `json:"eid"`
	For    string `json:"for"`
	Stance string `json:"st"`
	Conf   string `json:"conf"`
}

// StanceScores is the nli_score payload.
type StanceScores struct {
	Scores   []StanceScore `json:"scores"`
	Progress Progress      `json:"sp"`
}

// NLIScore is a lexical stand-in for an entailment model: word overlap,
// conflicting years and negation mismatch.
type NLIScore struct{ tool.Base }

var nliScoreSchema = tool.MustSchema(false,
	tool.Parameter{Name: "claims", Type: "array", Description: "Claims as objects with id and c", Required: true},
	tool.Parameter{Name: "sel", Type: "array", Description: "Selected evidence as objects with eid, for and s", Required: true},
	tool.Parameter{Name: "st", Type: "object", Description: "Previous pipeline progress"},
)

func NewNLIScore() *NLIScore {
	return &NLIScore{tool.Base{
		ToolName:    "nli_score",
		Description: "Score each evidence sentence as support, refute or neutral for its claim.",
	}}
}

func (t *NLIScore) Schema() *tool.Schema { return nliScoreSchema }

func (t *NLIScore) ValidateArgs(args tool.Args) (tool.Args, error) {
	claims, okClaims := objectList(args["claims"])
	sel, okSel := objectList(args["sel"])
	if !okClaims || !okSel {
		return nil, tool.NewArgError("claims and sel must be lists")
	}
	out := args.Clone()
	out["claims"] = claims
	out["sel"] = sel
	return out, nil
}

func (t *NLIScore) Execute(_ context.Context, args tool.Args) (toolresult.Envelope[StanceScores], error) {
	claims, _ := objectList(args["claims"])
	sel, _ := objectList(args["sel"])
	if len(sel) == 0 {
		return toolresult.Failure[StanceScores]("NO_SELECTED", "sel is empty"), nil
	}

	byID := make(map[string]string, len(claims))
	for _, c := range claims {
		byID[stringField(c, "id", "")] = stringField(c, "c", "")
	}

	scores := make([]StanceScore, 0, len(sel))
	for _, item := range sel {
		cid := stringField(item, "for", "")
		stance, conf := scorePair(byID[cid], stringField(item, "s", ""))
		scores = append(scores, StanceScore{
			EID:    stringField(item, "eid", ""),
			For:    cid,
			Stance: stance,
			Conf:   conf,
		})
	}
	return toolresult.Success(StanceScores{Scores: scores, Progress: nextProgress(args, "NLI_VERIFY")}), nil
}

func scorePair(claim, sentence string) (string, string) {
	c := wordSet(claim)
	s := wordSet(sentence)
	if len(c) == 0 || len(s) == 0 {
		return StanceNeutral, ConfLow
	}

	overlap := 0
	for w := range c {
		if s[w] {
			overlap++
		}
	}
	ratio := float64(overlap) / float64(max(1, min(len(c), len(s))))

	cy, sy := years(claim), years(sentence)
	if len(cy) > 0 && len(sy) > 0 && disjoint(cy, sy) {
		return StanceRefute, ConfMed
	}
	if hasNegation(claim) != hasNegation(sentence) && ratio >= 0.35 {
		return StanceRefute, ConfMed
	}

	switch {
	case ratio >= 0.5:
		return StanceSupport, ConfHigh
	case ratio >= 0.3:
		return StanceSupport, ConfMed
	}
	return StanceNeutral, ConfLow
}

func wordSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, w := range words(text) {
		set[w] = true
	}
	return set
}

func years(text string) map[string]bool {
	set := map[string]bool{}
	for _, y := range yearRe.FindAllString(text, -1) {
		set[y] = true
	}
	return set
}

func disjoint(a, b map[string]bool) bool {
	for k := range a {
		if b[k] {
			return false
		}
	}
	return true
}

func hasNegation(text string) bool {
	padded := " " + strings.ToLower(text) + " "
	for _, n := range negations {
		if strings.Contains(padded, n) {
			return true
		}
	}
	return false
}
