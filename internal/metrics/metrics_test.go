package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeBackend struct {
	mu sync.Mutex

	counters   []call
	histograms []call
	flushes    int
}

type call struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, call{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histograms = append(f.histograms, call{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

func swap(t *testing.T) *fakeBackend {
	t.Helper()
	orig := backend
	t.Cleanup(func() { backend = orig })
	fb := &fakeBackend{}
	backend = fb
	return fb
}

func TestRecordStep(t *testing.T) {
	fb := swap(t)

	RecordStep("sync", "splitting", nil, 2*time.Second)
	RecordStep("sync", "schema_check", errors.New("boom"), 1500*time.Millisecond)

	if len(fb.counters) != 2 || len(fb.histograms) != 2 {
		t.Fatalf("calls = %d counters, %d histograms; want 2, 2", len(fb.counters), len(fb.histograms))
	}
	if c := fb.counters[0]; c.name != StepTotal || c.labels["step"] != "splitting" || c.labels["status"] != "success" {
		t.Fatalf("counter[0] = %#v", c)
	}
	if c := fb.counters[1]; c.labels["status"] != "failure" {
		t.Fatalf("counter[1] status = %q; want failure", c.labels["status"])
	}
	if h := fb.histograms[1]; h.name != StepDuration || h.value < 1.499 || h.value > 1.501 {
		t.Fatalf("hist[1] = %#v; want ~1.5s", h)
	}
}

func TestRecordRowAndBatches(t *testing.T) {
	fb := swap(t)

	RecordRow("sync", "new", 3)
	RecordRow("sync", "skipped", 0)
	RecordBatches("sync", "businesses", 2)
	RecordBatches("sync", "categories", -1)

	if len(fb.counters) != 2 {
		t.Fatalf("counter calls = %d; want 2", len(fb.counters))
	}
	if c := fb.counters[0]; c.name != RecordsTotal || c.value != 3 || c.labels["kind"] != "new" {
		t.Fatalf("counter[0] = %#v", c)
	}
	if c := fb.counters[1]; c.name != StatementsTotal || c.value != 2 || c.labels["table"] != "businesses" {
		t.Fatalf("counter[1] = %#v", c)
	}
}

func TestSetBackendAndFlush(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	SetBackend(fb)
	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if fb.flushes != 1 {
		t.Fatalf("flushes = %d; want 1", fb.flushes)
	}

	SetBackend(nil)
	if backend != fb {
		t.Fatal("SetBackend(nil) replaced the backend")
	}
}
