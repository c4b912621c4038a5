package events

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestRecorderCopies(t *testing.T) {
	var r Recorder
	ctx := context.Background()
	_ = r.Publish(ctx, Event{Type: OrderCreated, OrderID: 1})
	_ = r.Publish(ctx, Event{Type: StockAdjusted, ProductID: 2})

	got := r.Events()
	if len(got) != 2 || got[0].Type != OrderCreated || got[1].ProductID != 2 {
		t.Fatalf("unexpected events %+v", got)
	}
	got[0].Type = "mutated"
	if r.Events()[0].Type != OrderCreated {
		t.Fatal("Events must return a copy")
	}
}

func TestHeaderCarrierInjectsTraceContext(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := headerCarrier{}
	propagation.TraceContext{}.Inject(ctx, headers)
	if headers.Get("traceparent") == "" {
		t.Fatalf("traceparent not injected: %v", headers)
	}
	if len(headers.Keys()) != 1 {
		t.Fatalf("unexpected keys %v", headers.Keys())
	}

	extracted := propagation.TraceContext{}.Extract(context.Background(), headers)
	if got := trace.SpanContextFromContext(extracted).SpanID(); got != span.SpanContext().SpanID() {
		t.Fatalf("extracted span %s, want %s", got, span.SpanContext().SpanID())
	}
}

func TestAMQPPublish(t *testing.T) {
	url := os.Getenv("MOTOSHOP_TEST_AMQP_URL")
	if url == "" {
		t.Skip("MOTOSHOP_TEST_AMQP_URL not set")
	}
	otel.SetTextMapPropagator(propagation.TraceContext{})
	exchange := "motoshop.test." + time.Now().Format("150405.000000")
	pub, err := DialAMQP(url, exchange)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer pub.Close()

	conn, err := amqp.Dial(url)
	if err != nil {
		t.Fatalf("consumer dial: %v", err)
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		t.Fatalf("channel: %v", err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		t.Fatalf("bind: %v", err)
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	want := Event{Type: OrderCreated, At: time.Now().UTC(), OrderID: 9, OrderCode: "ORD-TEST", Amount: "1500.00"}
	if err := pub.Publish(context.Background(), want); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case d := <-deliveries:
		var got Event
		if err := sonic.ConfigStd.Unmarshal(d.Body, &got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if got.OrderID != 9 || got.Amount != "1500.00" || d.Type != OrderCreated {
			t.Fatalf("unexpected delivery %+v (type %s)", got, d.Type)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no delivery within 5s")
	}

	if err := pub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := pub.Publish(context.Background(), want); err == nil {
		t.Fatal("publish after close should fail")
	}
}
