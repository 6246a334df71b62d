package datadog

import (
	"net"
	"strings"
	"testing"
	"time"

	"bizsync/internal/metrics"
)

func TestNewBackend_RequiresAddr(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend(Config{}); err == nil {
		t.Fatal("NewBackend without Addr: want error")
	}
}

func TestLabelsToTags(t *testing.T) {
	t.Parallel()

	got := labelsToTags(metrics.Labels{"table": "businesses", "job": "sync"})
	if strings.Join(got, ",") != "job:sync,table:businesses" {
		t.Fatalf("tags = %v", got)
	}
	if labelsToTags(nil) != nil {
		t.Fatal("nil labels should give nil tags")
	}
}

func TestZeroBackendIsSafe(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter("x", 1, nil)
	b.ObserveHistogram("x", 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func TestBackend_SendsToAgent(t *testing.T) {
	t.Parallel()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("udp listener unavailable: %v", err)
	}
	defer conn.Close()

	b, err := NewBackend(Config{Addr: conn.LocalAddr().String(), Namespace: "bizsync."})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter(metrics.RecordsTotal, 3, metrics.Labels{"kind": "new"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	want := "bizsync." + metrics.RecordsTotal + ":3|c"
	var seen strings.Builder
	buf := make([]byte, 8192)
	for !strings.Contains(seen.String(), want) {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			t.Fatalf("no %q datagram received (got %q): %v", want, seen.String(), err)
		}
		seen.Write(buf[:n])
		seen.WriteByte('\n')
	}
	if !strings.Contains(seen.String(), "kind:new") {
		t.Fatalf("payload %q missing kind tag", seen.String())
	}
}
