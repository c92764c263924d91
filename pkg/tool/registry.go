package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/factkit/pkg/toolresult"
)

// Registry-level error codes.
const (
	CodeUnknownTool = "UNKNOWN_TOOL"
	CodeScope       = "SCOPE"
)

const tracerName = "github.com/harun/factkit/pkg/tool"

// Info describes a registered tool.
type Info struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	RetrySafe   bool        `json:"retry_safe" yaml:"retry_safe"`
	Parameters  []Parameter `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Invocation is reported to observers after every registry call.
type Invocation struct {
	ID       string
	Tool     string
	Status   toolresult.Status
	Code     string
	Duration time.Duration
	// TraceID is empty when tracing is disabled.
	TraceID  string
}

// Observer receives one Invocation per completed registry call.
type Observer interface {
	ObserveInvocation(inv Invocation)
}

// entry is a registered tool with its payload type erased.
type entry struct {
	info   Info
	invoke func(ctx context.Context, args Args) toolresult.Envelope[any]
}

// Registry maps tool names to tools and dispatches calls through Invoke.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]*entry
	policy    *Policy
	observers []Observer
}

// NewRegistry returns an empty registry that allows every tool.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*entry)}
}

// Register adds t to r. Names must be non-empty and unique.
func Register[T any](r *Registry, t Tool[T]) error {
	if t == nil {
		return fmt.Errorf("tool must not be nil")
	}
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	info := Info{Name: name, RetrySafe: t.RetrySafe()}
	if d, ok := t.(Described); ok {
		info.Description = d.Describe()
	}
	if p, ok := t.(Parameterized); ok {
		info.Parameters = p.Schema().Parameters()
	}

	e := &entry{
		info: info,
		invoke: func(ctx context.Context, args Args) toolresult.Envelope[any] {
			return Invoke(ctx, t, args).Erase()
		},
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q is already registered", name)
	}
	r.tools[name] = e

	log.Debug().Str("tool", name).Bool("retry_safe", info.RetrySafe).Msg("Tool registered")
	return nil
}

// SetPolicy restricts dispatch. A nil policy allows every tool.
func (r *Registry) SetPolicy(p *Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policy = p
}

// AddObserver registers o for every subsequent invocation.
func (r *Registry) AddObserver(o Observer) {
	if o == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

// Get returns the description of a registered tool.
func (r *Registry) Get(name string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	if !ok {
		return Info{}, false
	}
	return e.info, true
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.tools))
	for _, e := range r.tools {
		out = append(out, e.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Invoke dispatches args to the named tool. Like the per-tool template it
// never fails: unknown or out-of-policy tools come back as error envelopes.
func (r *Registry) Invoke(ctx context.Context, name string, args Args) toolresult.Envelope[any] {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	id := uuid.New().String()
	ctx = ContextWithInvocationID(ctx, id)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "tool.invoke")
	defer span.End()
	span.SetAttributes(
		attribute.String("tool.name", name),
		attribute.String("tool.invocation_id", id),
	)

	r.mu.RLock()
	e := r.tools[name]
	policy := r.policy
	observers := r.observers
	r.mu.RUnlock()

	var env toolresult.Envelope[any]
	switch {
	case e == nil:
		env = toolresult.Failure[any](CodeUnknownTool, fmt.Sprintf("unknown tool: %s", name))
	case !policy.Allows(name):
		log.Warn().Str("tool", name).Msg("Tool invocation blocked by policy")
		env = toolresult.Failure[any](CodeScope, fmt.Sprintf("tool %q is not allowed by policy", name))
	default:
		env = e.invoke(ctx, args)
	}

	duration := time.Since(start)
	span.SetAttributes(attribute.String("tool.status", string(env.Status())))
	if !env.OK() {
		span.SetAttributes(attribute.String("tool.error_code", env.Code()))
		span.SetStatus(codes.Error, env.Code())
	}

	log.Debug().
		Str("tool", name).
		Str("invocation_id", id).
		Str("status", string(env.Status())).
		Str("code", env.Code()).
		Dur("duration", duration).
		Msg("Tool invocation completed")

	inv := Invocation{ID: id, Tool: name, Status: env.Status(), Code: env.Code(), Duration: duration}
	if sc := span.SpanContext(); sc.IsValid() {
		inv.TraceID = sc.TraceID().String()
	}
	for _, o := range observers {
		o.ObserveInvocation(inv)
	}

	return env
}
