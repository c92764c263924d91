// Package tool defines the invocation contract for pluggable tools.
//
// Invariants:
// - Invoke never panics and always returns a well-formed envelope.
// - Only an ArgError from ValidateArgs (or nil args) yields BAD_ARGS, always as an error, never a retry.
// - Any other error or panic from a tool yields TOOL_FAIL with the original message.
// - Tool names in a Registry are unique.
//
// Usage:
//
//	type greet struct{ tool.Base }
//
//	func (greet) Execute(ctx context.Context, args tool.Args) (toolresult.Envelope[string], error) {
//		return toolresult.Success("hello " + args.TrimmedString("name")), nil
//	}
//
//	env := tool.Invoke[string](ctx, greet{tool.Base{ToolName: "greet"}}, tool.Args{"name": "ada"})
package tool
