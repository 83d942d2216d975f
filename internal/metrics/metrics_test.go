package metrics

import (
	"testing"
	"time"

	"github.com/huhlig/wyldlands-gw/internal/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Each test uses its own namespace since New registers into the default
// Prometheus registry, which panics on duplicate registration.

func TestMetrics_ObserveSessionEvent(t *testing.T) {
	m := New("test_metrics_session_events")
	m.ObserveSessionEvent("created")
	m.ObserveSessionEvent("created")
	m.ObserveSessionEvent("closed")

	if got := testutil.ToFloat64(m.SessionEvents.WithLabelValues("created")); got != 2 {
		t.Fatalf("created count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SessionEvents.WithLabelValues("closed")); got != 1 {
		t.Fatalf("closed count = %v, want 1", got)
	}
}

func TestMetrics_ObserveDispatchCollectsOneHistogram(t *testing.T) {
	m := New("test_metrics_dispatch_latency")
	m.ObserveDispatch(25 * time.Millisecond)

	if got := testutil.CollectAndCount(m.DispatchLatency); got != 1 {
		t.Fatalf("collected metric count = %d, want 1", got)
	}
}

func TestMetrics_DropCounterIncrementsBySession(t *testing.T) {
	m := New("test_metrics_drop_counter")
	sid := model.NewSessionId()
	m.DropCounter(sid)
	m.DropCounter(sid)

	if got := testutil.ToFloat64(m.MailboxDrops.WithLabelValues(sid.String())); got != 2 {
		t.Fatalf("drop count = %v, want 2", got)
	}
}

func TestMetrics_ActiveSessionsGauge(t *testing.T) {
	m := New("test_metrics_active_sessions")
	m.ActiveSessions.Set(3)
	if got := testutil.ToFloat64(m.ActiveSessions); got != 3 {
		t.Fatalf("active sessions = %v, want 3", got)
	}
}
