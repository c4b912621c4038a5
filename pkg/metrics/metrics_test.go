package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rexliu/motoshop/pkg/ipc"
)

func TestCollectorCounts(t *testing.T) {
	c := New()
	c.ConnOpened()
	c.ConnOpened()
	c.ConnClosed()
	c.RequestHandled("CREATE_ORDER", ipc.StatusSuccess, 3*time.Millisecond)
	c.RequestHandled("CREATE_ORDER", ipc.StatusError, time.Millisecond)
	c.RequestHandled("CREATE_ORDER", ipc.StatusSuccess, time.Millisecond)

	if got := testutil.ToFloat64(c.connections); got != 1 {
		t.Fatalf("expected 1 active connection, got %v", got)
	}
	if got := testutil.ToFloat64(c.accepted); got != 2 {
		t.Fatalf("expected 2 accepted, got %v", got)
	}
	if got := testutil.ToFloat64(c.requests.WithLabelValues("CREATE_ORDER", "SUCCESS")); got != 2 {
		t.Fatalf("expected 2 successful requests, got %v", got)
	}

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `motoshop_requests_total{kind="CREATE_ORDER",status="ERROR"} 1`) {
		t.Fatalf("metrics output missing request counter:\n%s", body)
	}
}
