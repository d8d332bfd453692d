package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusCollectorConnectDisconnect(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg, 16)

	c.Connect("10.0.0.1", "")
	c.Connect("10.0.0.2", "alice")
	c.Disconnect("10.0.0.1", "")

	events := c.Ring().Snapshot()
	if len(events) != 3 {
		t.Fatalf("expected 3 ring events, got %d", len(events))
	}
	if events[0].Kind != EventConnect || events[0].IP != "10.0.0.1" {
		t.Errorf("unexpected first event: %+v", events[0])
	}
}

func TestPrometheusCollectorBytes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg, 4)

	c.Bytes("10.0.0.1", "alice", Outbound, 2048)

	forAlice := c.Ring().ForUser("alice")
	if len(forAlice) != 1 {
		t.Fatalf("expected 1 event for alice, got %d", len(forAlice))
	}
	if forAlice[0].Bytes != 2048 || forAlice[0].Dir != Outbound {
		t.Errorf("unexpected event: %+v", forAlice[0])
	}
}

func TestRingWrapsAtCapacity(t *testing.T) {
	r := NewRing(2)
	r.Push(Event{IP: "a"})
	r.Push(Event{IP: "b"})
	r.Push(Event{IP: "c"})

	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 entries after wraparound, got %d", len(snap))
	}
	if snap[0].IP != "b" || snap[1].IP != "c" {
		t.Errorf("expected oldest-first [b c], got %+v", snap)
	}
}

func TestNoopCollectorDoesNothing(t *testing.T) {
	var c Collector = &NoopCollector{}
	c.Connect("x", "y")
	c.Disconnect("x", "y")
	c.Bytes("x", "y", Inbound, 10)
}
