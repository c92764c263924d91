package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/harun/factkit/pkg/toolresult"
)

// Tool is a named unit of work with a validation hook and an execution hook.
// Implementations should be stateless per call so Invoke can run concurrently.
type Tool[T any] interface {
	Name() string
	// RetrySafe declares whether repeating a call with identical arguments is
	// free of duplicated side effects. It is advisory metadata for the caller.
	RetrySafe() bool
	// ValidateArgs normalizes args. It must not have side effects and should
	// report input problems as an ArgError.
	ValidateArgs(args Args) (Args, error)
	// Execute runs the tool on normalized args and builds its own envelope
	// with toolresult.Success, Failure or Retryable.
	Execute(ctx context.Context, args Args) (toolresult.Envelope[T], error)
}

// Base supplies identity and the pass-through ValidateArgs. Embed it and
// override ValidateArgs when the tool needs checks.
type Base struct {
	ToolName     string
	Description  string
	NotRetrySafe bool
}

// Name returns the registered tool name.
func (b Base) Name() string { return b.ToolName }

// Describe returns the human readable description.
func (b Base) Describe() string { return b.Description }

// RetrySafe is true unless NotRetrySafe is set.
func (b Base) RetrySafe() bool { return !b.NotRetrySafe }

// ValidateArgs returns args unchanged.
func (b Base) ValidateArgs(args Args) (Args, error) { return args, nil }

// Invoke runs t on args and always returns a well-formed envelope:
//
//  1. nil args fail with BAD_ARGS;
//  2. an ArgError from ValidateArgs fails with BAD_ARGS;
//  3. any other error or panic from either hook fails with TOOL_FAIL;
//  4. otherwise the envelope built by Execute is returned.
//
// Invoke never panics.
func Invoke[T any](ctx context.Context, t Tool[T], args Args) toolresult.Envelope[T] {
	if t == nil {
		return toolresult.Failure[T](toolresult.CodeToolFail, "tool is nil")
	}
	if args == nil {
		return toolresult.Failure[T](toolresult.CodeBadArgs, "args must be an object")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	name := toolName(t)

	normalized, err := validate(t, args)
	if err != nil {
		if IsArgError(err) {
			log.Debug().Str("tool", name).Err(err).Msg("Tool arguments rejected")
			return toolresult.Failure[T](toolresult.CodeBadArgs, err.Error())
		}
		log.Warn().Str("tool", name).Err(err).Msg("Tool validation failed unexpectedly")
		return toolresult.Failure[T](toolresult.CodeToolFail, err.Error())
	}

	env, err := execute(ctx, t, normalized)
	if err != nil {
		log.Warn().Str("tool", name).Err(err).Msg("Tool execution failed")
		return toolresult.Failure[T](toolresult.CodeToolFail, err.Error())
	}
	if env.IsZero() {
		log.Warn().Str("tool", name).Msg("Tool returned an empty result")
		return toolresult.Failure[T](toolresult.CodeToolFail, "tool returned an empty result")
	}
	return env
}

// toolName tolerates typed-nil tools whose Name dereferences the receiver.
func toolName[T any](t Tool[T]) (name string) {
	defer func() {
		if r := recover(); r != nil {
			name = ""
		}
	}()
	return t.Name()
}

func validate[T any](t Tool[T], args Args) (normalized Args, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	normalized, err = t.ValidateArgs(args)
	if err == nil && normalized == nil {
		normalized = Args{}
	}
	return normalized, err
}

func execute[T any](ctx context.Context, t Tool[T], args Args) (env toolresult.Envelope[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			env = toolresult.Envelope[T]{}
			err = panicError(r)
		}
	}()
	return t.Execute(ctx, args)
}

// panicError turns a recovered value into an error carrying its text. Panics
// are internal faults even when the value is an ArgError.
func panicError(r interface{}) error {
	return errors.New(fmt.Sprint(r))
}
