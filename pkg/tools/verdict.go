package tools

import (
	"context"

	"github.com/harun/factkit/pkg/tool"
	"github.com/harun/factkit/pkg/toolresult"
)

// Verdict labels.
const (
	VerdictSupported    = "supported"
	VerdictRefuted      = "refuted"
	VerdictMixed        = "mixed"
	VerdictInsufficient = "insufficient"
)

// Verdict is the decision for one claim.
type Verdict struct {
	ID      string `json:"id"`
	Verdict string `json:"v"`
	Conf    string `json:"conf"`
}

// Verdicts is the verdict_aggregate payload.
type Verdicts struct {
	Verdicts []Verdict `json:"ver"`
	Progress Progress  `json:"sp"`
}

// VerdictAggregate combines stance scores per claim. Refutation is checked
// first and support has to clear a higher bar.
type VerdictAggregate struct {
	tool.Base
	thresholds DecideThresholds
}

var verdictAggregateSchema = tool.MustSchema(false,
	tool.Parameter{Name: "claims", Type: "array", Description: "Claims as objects with id", Required: true},
	tool.Parameter{Name: "scores", Type: "array", Description: "Stance scores from nli_score", Required: true},
	tool.Parameter{Name: "st", Type: "object", Description: "Previous pipeline progress"},
)

func NewVerdictAggregate(thresholds DecideThresholds) *VerdictAggregate {
	return &VerdictAggregate{
		Base: tool.Base{
			ToolName:    "verdict_aggregate",
			Description: "Aggregate stance scores into a verdict per claim.",
		},
		thresholds: thresholds.withDefaults(),
	}
}

func (t *VerdictAggregate) Schema() *tool.Schema { return verdictAggregateSchema }

func (t *VerdictAggregate) ValidateArgs(args tool.Args) (tool.Args, error) {
	claims, okClaims := objectList(args["claims"])
	scores, okScores := objectList(args["scores"])
	if !okClaims || !okScores {
		return nil, tool.NewArgError("claims and scores must be lists")
	}
	out := args.Clone()
	out["claims"] = claims
	out["scores"] = scores
	return out, nil
}

func (t *VerdictAggregate) Execute(_ context.Context, args tool.Args) (toolresult.Envelope[Verdicts], error) {
	claims, _ := objectList(args["claims"])
	scores, _ := objectList(args["scores"])

	byClaim := map[string][]map[string]interface{}{}
	for _, sc := range scores {
		cid := stringField(sc, "for", "")
		byClaim[cid] = append(byClaim[cid], sc)
	}

	out := make([]Verdict, 0, len(claims))
	for _, c := range claims {
		cid := stringField(c, "id", "s1")
		v, conf := t.decide(byClaim[cid])
		out = append(out, Verdict{ID: cid, Verdict: v, Conf: conf})
	}
	return toolresult.Success(Verdicts{Verdicts: out, Progress: nextProgress(args, "DECIDE")}), nil
}

func (t *VerdictAggregate) decide(group []map[string]interface{}) (string, string) {
	var support, refute float64
	for _, sc := range group {
		switch stringField(sc, "st", "") {
		case StanceSupport:
			support += confWeight(stringField(sc, "conf", ""))
		case StanceRefute:
			refute += confWeight(stringField(sc, "conf", ""))
		}
	}

	th := t.thresholds
	if refute >= max(th.RefuteMin, support+th.RefuteMargin) {
		if refute >= th.RefuteHigh {
			return VerdictRefuted, ConfHigh
		}
		return VerdictRefuted, ConfMed
	}
	if support >= max(th.SupportMin, refute+th.SupportMargin) {
		if support >= th.SupportHigh {
			return VerdictSupported, ConfHigh
		}
		return VerdictSupported, ConfMed
	}
	if support > 0 && refute > 0 {
		return VerdictMixed, ConfLow
	}
	return VerdictInsufficient, ConfLow
}

func confWeight(conf string) float64 {
	switch conf {
	case ConfHigh:
		return 2.0
	case ConfMed:
		return 1.0
	}
	return 0.5
}

var verdictReasons = map[string]string{
	VerdictSupported:    "Available evidence supports the claim.",
	VerdictRefuted:      "Available evidence contradicts the claim.",
	VerdictMixed:        "Evidence is mixed and does not fully agree.",
	VerdictInsufficient: "Evidence is insufficient for a reliable judgment.",
}

const maxCitations = 2

// Answer is the final per-claim output.
type Answer struct {
	ID      string   `json:"id"`
	Verdict string   `json:"ver"`
	Conf    string   `json:"conf"`
	Reason  string   `json:"r"`
	Cite    []string `json:"cite"`
}

// Response is the response_compose payload.
type Response struct {
	Out      []Answer `json:"out"`
	Progress Progress `json:"sp"`
}

// ResponseCompose attaches a reason and citations to each verdict.
type ResponseCompose struct{ tool.Base }

var responseComposeSchema = tool.MustSchema(false,
	tool.Parameter{Name: "claims", Type: "array", Description: "Claims as objects with id", Required: true},
	tool.Parameter{Name: "ver", Type: "array", Description: "Verdicts from verdict_aggregate", Required: true},
	tool.Parameter{Name: "use", Type: "array", Description: "Evidence used, as objects with eid and for"},
	tool.Parameter{Name: "st", Type: "object", Description: "Previous pipeline progress"},
)

func NewResponseCompose() *ResponseCompose {
	return &ResponseCompose{tool.Base{
		ToolName:    "response_compose",
		Description: "Compose the final answer per claim with a reason and citations.",
	}}
}

func (t *ResponseCompose) Schema() *tool.Schema { return responseComposeSchema }

func (t *ResponseCompose) ValidateArgs(args tool.Args) (tool.Args, error) {
	claims, okClaims := objectList(args["claims"])
	ver, okVer := objectList(args["ver"])
	if !okClaims || !okVer {
		return nil, tool.NewArgError("claims and ver must be lists")
	}
	use, ok := objectList(args["use"])
	if !ok {
		use = []map[string]interface{}{}
	}
	out := args.Clone()
	out["claims"] = claims
	out["ver"] = ver
	out["use"] = use
	return out, nil
}

func (t *ResponseCompose) Execute(_ context.Context, args tool.Args) (toolresult.Envelope[Response], error) {
	claims, _ := objectList(args["claims"])
	ver, _ := objectList(args["ver"])
	use, _ := objectList(args["use"])

	verdicts := map[string]map[string]interface{}{}
	for _, v := range ver {
		verdicts[stringField(v, "id", "")] = v
	}

	cites := map[string][]string{}
	for _, u := range use {
		cid, eid := stringField(u, "for", ""), stringField(u, "eid", "")
		if cid != "" && eid != "" {
			cites[cid] = append(cites[cid], eid)
		}
	}

	out := make([]Answer, 0, len(claims))
	for _, c := range claims {
		cid := stringField(c, "id", "")
		v, ok := verdicts[cid]
		if !ok {
			out = append(out, Answer{
				ID:      cid,
				Verdict: VerdictInsufficient,
				Conf:    ConfLow,
				Reason:  verdictReasons[VerdictInsufficient],
				Cite:    []string{},
			})
			continue
		}

		label := stringField(v, "v", VerdictInsufficient)
		reason, known := verdictReasons[label]
		if !known {
			reason = verdictReasons[VerdictInsufficient]
		}
		cite := cites[cid]
		if len(cite) > maxCitations {
			cite = cite[:maxCitations]
		}
		if cite == nil {
			cite = []string{}
		}
		out = append(out, Answer{
			ID:      cid,
			Verdict: label,
			Conf:    stringField(v, "conf", ConfLow),
			Reason:  truncate(reason, 200),
			Cite:    cite,
		})
	}
	return toolresult.Success(Response{Out: out, Progress: nextProgress(args, "OUTPUT")}), nil
}
