package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/harun/factkit/pkg/tool"
	"github.com/harun/factkit/pkg/toolresult"
)

// Claim types reported by claim_normalize.
const (
	ClaimAtomic   = "atomic"
	ClaimQuestion = "question"
	ClaimMulti    = "multi"
)

const (
	maxNormalizedClaim = 240
	maxSubClaim        = 200
)

var (
	alnumRe       = regexp.MustCompile(`[A-Za-z0-9]`)
	conjunctionRe = regexp.MustCompile(`(?i)\s+(?:and|or)\s+`)
)

// NormalizedClaim is the claim_normalize payload.
type NormalizedClaim struct {
	Claim     string   `json:"nc"`
	Type      string   `json:"ct"`
	Decompose bool     `json:"sd"`
	Progress  Progress `json:"sp"`
}

// ClaimNormalize cleans a raw claim and classifies it.
type ClaimNormalize struct{ tool.Base }

var claimNormalizeSchema = tool.MustSchema(false,
	tool.Parameter{Name: "c", Type: "string", Description: "Raw claim text", Required: true},
	tool.Parameter{Name: "st", Type: "object", Description: "Previous pipeline progress"},
)

func NewClaimNormalize() *ClaimNormalize {
	return &ClaimNormalize{tool.Base{
		ToolName:    "claim_normalize",
		Description: "Clean a claim, classify it as atomic, question or multi, and restate it as a sentence.",
	}}
}

func (t *ClaimNormalize) Schema() *tool.Schema { return claimNormalizeSchema }

func (t *ClaimNormalize) ValidateArgs(args tool.Args) (tool.Args, error) {
	if _, ok := args.String("c"); !ok {
		return nil, tool.NewArgError("c must be a string")
	}
	out := args.Clone()
	c, _ := args.String("c")
	out["c"] = cleanClaim(c)
	return out, nil
}

func (t *ClaimNormalize) Execute(_ context.Context, args tool.Args) (toolresult.Envelope[NormalizedClaim], error) {
	c, _ := args.String("c")
	if utf8.RuneCountInString(c) < 3 {
		return toolresult.Failure[NormalizedClaim]("EMPTY_CLAIM", "claim too short"), nil
	}
	if !alnumRe.MatchString(c) {
		return toolresult.Failure[NormalizedClaim]("NON_TEXT", "claim has no alphanumeric characters"), nil
	}

	ct := classifyClaim(c)
	return toolresult.Success(NormalizedClaim{
		Claim:     truncate(toStatement(c), maxNormalizedClaim),
		Type:      ct,
		Decompose: ct == ClaimMulti,
		Progress:  nextProgress(args, "PARSE_CLAIM"),
	}), nil
}

func cleanClaim(c string) string {
	c = strings.Trim(strings.TrimSpace(c), "\"'`")
	return collapseSpace(c)
}

func classifyClaim(c string) string {
	lowered := strings.ToLower(c)
	switch {
	case strings.HasSuffix(c, "?"):
		return ClaimQuestion
	case strings.Contains(lowered, " and "), strings.Contains(lowered, " or "), strings.Contains(c, ";"):
		return ClaimMulti
	}
	return ClaimAtomic
}

// toStatement turns a question into a statement and ensures terminal punctuation.
func toStatement(text string) string {
	out := text
	if strings.HasSuffix(out, "?") {
		out = strings.TrimSpace(strings.TrimSuffix(out, "?"))
	}
	if out != "" && !strings.ContainsAny(out[len(out)-1:], ".!?") {
		out += "."
	}
	return out
}

// SubClaim is one atomic part of a decomposed claim.
type SubClaim struct {
	ID    string `json:"id"`
	Claim string `json:"c"`
}

// Decomposition is the claim_decompose payload.
type Decomposition struct {
	Subs     []SubClaim `json:"subs"`
	Progress Progress   `json:"sp"`
}

// ClaimDecompose splits a compound claim on and/or.
type ClaimDecompose struct{ tool.Base }

var claimDecomposeSchema = tool.MustSchema(false,
	tool.Parameter{Name: "nc", Type: "string", Description: "Normalized claim", Required: true},
	tool.Parameter{Name: "st", Type: "object", Description: "Previous pipeline progress"},
)

func NewClaimDecompose() *ClaimDecompose {
	return &ClaimDecompose{tool.Base{
		ToolName:    "claim_decompose",
		Description: "Split a compound claim into atomic sub-claims.",
	}}
}

func (t *ClaimDecompose) Schema() *tool.Schema { return claimDecomposeSchema }

func (t *ClaimDecompose) ValidateArgs(args tool.Args) (tool.Args, error) {
	nc, ok := args.String("nc")
	if !ok || utf8.RuneCountInString(strings.TrimSpace(nc)) < 3 {
		return nil, tool.NewArgError("nc must be a non-empty string")
	}
	return args, nil
}

func (t *ClaimDecompose) Execute(_ context.Context, args tool.Args) (toolresult.Envelope[Decomposition], error) {
	nc, _ := args.String("nc")
	parts := splitAtomic(nc)
	if len(parts) < 2 {
		return toolresult.Failure[Decomposition]("NOT_MULTI", "claim is not decomposable"), nil
	}

	subs := make([]SubClaim, 0, len(parts))
	for i, p := range parts {
		subs = append(subs, SubClaim{ID: subClaimID(i), Claim: p})
	}
	return toolresult.Success(Decomposition{Subs: subs, Progress: nextProgress(args, "PARSE_CLAIM")}), nil
}

func splitAtomic(nc string) []string {
	text := strings.TrimRight(strings.TrimSpace(nc), ".")
	out := []string{}
	for _, p := range conjunctionRe.Split(text, -1) {
		p = strings.Trim(collapseSpace(p), " ,;")
		if p == "" {
			continue
		}
		if !strings.ContainsAny(p[len(p)-1:], ".!?") {
			p += "."
		}
		out = append(out, truncate(p, maxSubClaim))
	}
	return out
}

func subClaimID(i int) string {
	return fmt.Sprintf("s%d", i+1)
}
