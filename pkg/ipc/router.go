package ipc

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HandlerFunc serves one request kind. It must return a non-nil response.
type HandlerFunc func(context.Context, *Request) *Response

// Router maps request kinds to handlers.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	tracer   trace.Tracer
}

func NewRouter() *Router {
	return &Router{
		handlers: make(map[string]HandlerFunc),
		tracer:   otel.Tracer("github.com/rexliu/motoshop/pkg/ipc"),
	}
}

// Register installs h for kind, replacing any previous handler.
func (r *Router) Register(kind string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

// Kinds lists registered kinds in sorted order.
func (r *Router) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func (r *Router) lookup(kind string) HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[kind]
}

// Dispatch runs the handler registered for req.Kind. Unknown kinds and
// handler panics come back as ERROR responses.
func (r *Router) Dispatch(ctx context.Context, req *Request) (resp *Response) {
	ctx, span := r.tracer.Start(ctx, "ipc "+req.Kind,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("ipc.kind", req.Kind)))
	defer func() {
		if p := recover(); p != nil {
			resp = Errorf("Internal error handling %s: %v", req.Kind, p)
		}
		span.SetAttributes(attribute.String("ipc.status", string(resp.Status)))
		if resp.Status != StatusSuccess {
			span.SetStatus(codes.Error, resp.Message)
		}
		span.End()
	}()

	h := r.lookup(req.Kind)
	if h == nil {
		span.RecordError(fmt.Errorf("%w: %s", ErrUnknownKind, req.Kind))
		return Errorf("Unknown action: %s", req.Kind)
	}
	resp = h(ctx, req)
	if resp == nil {
		resp = Errorf("Internal error handling %s: %s", req.Kind, "no response")
	}
	return resp
}
