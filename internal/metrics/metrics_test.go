package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.Admitted()
	m.Admitted()
	m.Skipped("filetype")
	m.Stalled("max_open_docs")
	m.DidOpen(nil)
	m.DidOpen(errors.New("broken pipe"))
	m.Flushed("written", 4)
	m.Flushed("empty", 0)

	if got := testutil.ToFloat64(m.Admissions); got != 2 {
		t.Errorf("Admissions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.GateSkips.WithLabelValues("filetype")); got != 1 {
		t.Errorf("GateSkips[filetype] = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Stalls.WithLabelValues("max_open_docs")); got != 1 {
		t.Errorf("Stalls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.DidOpenSends.WithLabelValues("error")); got != 1 {
		t.Errorf("DidOpenSends[error] = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.FlushEntries); got != 4 {
		t.Errorf("FlushEntries = %v, want 4 (empty flush keeps last value)", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	m.Admitted()
	m.Skipped("x")
	m.Tick()
	m.RunFinished("done")
	m.Stalled("max_files")
	m.DidOpen(nil)
	m.Flushed("written", 1)
	m.Walked(3)

	if m.Registry() != nil {
		t.Error("Registry() on nil should be nil")
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Tick()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "lspwarm_opener_ticks_total 1") {
		t.Errorf("metrics output missing tick counter:\n%s", body)
	}
}
