package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/harun/factkit/pkg/tool"
	"github.com/harun/factkit/pkg/toolresult"
)

// Labels produced by llm_verify.
const (
	LabelSupport = "Support"
	LabelRefute  = "Refute"
	LabelNEI     = "NEI"
)

const (
	defaultLLMModel     = "qwen"
	defaultLLMMaxTokens = 256
	maxEvidenceItems    = 5
	maxEvidenceChars    = 500
)

const verifySystemPrompt = `You are a fact-checker. Reply with exactly one word: Support, Refute, or NEI.

Definitions:
- Support: The evidence clearly states something that backs the claim.
- Refute: The evidence is about the same fact as the claim but states the opposite or a conflicting fact (claim "X is Y", evidence says "X is not Y"). Contradicting evidence is relevant; answer Refute, not NEI.
- NEI: The evidence does not address the claim (different topic, or no real information).

When evidence and claim are about the same thing but conflict, answer Refute. When the evidence is about something else or says nothing about the claim, answer NEI.`

const verifyUserTemplate = `Claim: %s

Evidence:
%s

If the evidence is about the same fact as the claim but says the opposite, answer Refute (do not call it NEI). If the evidence does not address the claim at all, answer NEI.
One word: Support, Refute, or NEI?`

// Label is the llm_verify payload. Called is false when the label was decided
// without contacting the model.
type Label struct {
	Label  string `json:"label"`
	Called bool   `json:"called"`
}

// LLMVerify asks an OpenAI-compatible chat model whether evidence supports a claim.
type LLMVerify struct {
	tool.Base
	client    openai.Client
	model     string
	maxTokens int
}

var llmVerifySchema = tool.MustSchema(false,
	tool.Parameter{Name: "claim", Type: "string", Description: "Claim to verify", Required: true},
	tool.Parameter{Name: "evidence", Type: "array", Description: "Evidence strings or objects with text"},
)

func NewLLMVerify(opts LLMOptions) *LLMVerify {
	apiKey := opts.APIKey
	if apiKey == "" {
		// Local OpenAI-compatible servers ignore the key but the client requires one.
		apiKey = "unused"
	}
	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(max(0, opts.MaxRetries)),
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &LLMVerify{
		Base: tool.Base{
			ToolName:    "llm_verify",
			Description: "Label a claim as Support, Refute or NEI given evidence, using a chat model.",
		},
		client:    openai.NewClient(clientOpts...),
		model:     firstNonEmpty(opts.Model, defaultLLMModel),
		maxTokens: positiveOr(opts.MaxTokens, defaultLLMMaxTokens),
	}
}

func (t *LLMVerify) Schema() *tool.Schema { return llmVerifySchema }

func (t *LLMVerify) ValidateArgs(args tool.Args) (tool.Args, error) {
	claim := args.TrimmedString("claim")
	if claim == "" {
		return nil, tool.NewArgError("claim is required")
	}

	evidence := []string{}
	if args.Has("evidence") && args["evidence"] != nil {
		items, ok := args.List("evidence")
		if !ok {
			return nil, tool.NewArgError("evidence must be a list")
		}
		for _, item := range items {
			var text string
			switch v := item.(type) {
			case string:
				text = v
			case map[string]interface{}:
				text = stringField(v, "text", stringField(v, "s", ""))
			}
			if text = strings.TrimSpace(text); text != "" {
				evidence = append(evidence, text)
			}
		}
	}
	return tool.Args{"claim": claim, "evidence": evidence}, nil
}

func (t *LLMVerify) Execute(ctx context.Context, args tool.Args) (toolresult.Envelope[Label], error) {
	claim, _ := args.String("claim")
	evidence, _ := args["evidence"].([]string)
	if len(evidence) == 0 {
		return toolresult.Success(Label{Label: LabelNEI}), nil
	}

	if len(evidence) > maxEvidenceItems {
		evidence = evidence[:maxEvidenceItems]
	}
	lines := make([]string, len(evidence))
	for i, e := range evidence {
		lines[i] = truncate(e, maxEvidenceChars)
	}

	resp, err := t.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(t.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(verifySystemPrompt),
			openai.UserMessage(fmt.Sprintf(verifyUserTemplate, claim, strings.Join(lines, "\n"))),
		},
		MaxTokens:   openai.Int(int64(t.maxTokens)),
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		err = upstreamFromAPIError(err)
		if tool.Transient(err) {
			return toolresult.Retryable[Label]("LLM_UNAVAILABLE", err.Error()), nil
		}
		return toolresult.Failure[Label]("LLM_FAIL", err.Error()), nil
	}
	if len(resp.Choices) == 0 {
		return toolresult.Failure[Label]("LLM_FAIL", "no response choices returned"), nil
	}

	return toolresult.Success(Label{Label: parseLabel(resp.Choices[0].Message.Content), Called: true}), nil
}

// parseLabel returns the label named by the earliest word of the reply that
// names one ("supports" and "refuted" count), defaulting to NEI.
func parseLabel(reply string) string {
	words := strings.FieldsFunc(strings.ToLower(reply), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		switch {
		case strings.HasPrefix(w, "support"):
			return LabelSupport
		case strings.HasPrefix(w, "refut"):
			return LabelRefute
		case w == "nei":
			return LabelNEI
		}
	}
	return LabelNEI
}

func upstreamFromAPIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %v", &tool.UpstreamError{Service: "llm", StatusCode: apiErr.StatusCode}, err)
	}
	return err
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
