// Package shop holds the business services: order transactions, inventory,
// catalog maintenance and staff authentication. Every write runs inside one
// storage transaction.
package shop

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rexliu/motoshop/pkg/core"
	"github.com/rexliu/motoshop/pkg/events"
	"github.com/rexliu/motoshop/pkg/storage"
)

// DefaultLowStockThreshold is used when no threshold is configured.
const DefaultLowStockThreshold = 5

// Option configures a service.
type Option func(*base)

// WithLogger sets the logger; the default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithPublisher sets where committed changes are announced.
func WithPublisher(p events.Publisher) Option {
	return func(b *base) {
		if p != nil {
			b.events = p
		}
	}
}

// WithLowStockThreshold sets the default low-stock cutoff.
func WithLowStockThreshold(n int64) Option {
	return func(b *base) {
		if n > 0 {
			b.lowStock = n
		}
	}
}

type base struct {
	repo     storage.Repository
	logger   *zap.Logger
	log      *zap.SugaredLogger
	events   events.Publisher
	tracer   trace.Tracer
	lowStock int64
}

func newBase(repo storage.Repository, component string, opts []Option) base {
	b := base{
		repo:     repo,
		logger:   zap.NewNop(),
		events:   events.Nop{},
		tracer:   otel.Tracer("github.com/rexliu/motoshop/pkg/shop"),
		lowStock: DefaultLowStockThreshold,
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.log = b.logger.Sugar().With("component", component)
	return b
}

// publish announces a committed change. Failures are logged only.
func (b *base) publish(ctx context.Context, ev events.Event) {
	if err := b.events.Publish(ctx, ev); err != nil {
		b.log.Warnw("publish event failed", "type", ev.Type, "error", err)
	}
}

// endSpan records err on span unless it is an expected business outcome.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if !errors.Is(err, core.ErrValidation) && !errors.Is(err, core.ErrNotFound) {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
