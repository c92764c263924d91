package tools

import (
	"context"

	"github.com/harun/factkit/pkg/tool"
	"github.com/harun/factkit/pkg/toolresult"
)

// EchoResult is the payload of a successful echo.
type EchoResult struct {
	Echo string `json:"echo"`
}

// Echo returns its trimmed text argument.
type Echo struct{ tool.Base }

var echoSchema = tool.MustSchema(false,
	tool.Parameter{Name: "text", Type: "string", Description: "Text to echo back", Required: true},
)

// NewEcho returns the echo tool.
func NewEcho() *Echo {
	return &Echo{tool.Base{ToolName: "echo", Description: "Echo the given text back to the caller."}}
}

func (e *Echo) Schema() *tool.Schema { return echoSchema }

func (e *Echo) ValidateArgs(args tool.Args) (tool.Args, error) {
	text := args.TrimmedString("text")
	if text == "" {
		return nil, tool.NewArgError("text is required")
	}
	return tool.Args{"text": text}, nil
}

func (e *Echo) Execute(_ context.Context, args tool.Args) (toolresult.Envelope[EchoResult], error) {
	text, _ := args.String("text")
	return toolresult.Success(EchoResult{Echo: text}), nil
}
