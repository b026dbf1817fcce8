package websocket

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestHubPublishReachesAllOperators(t *testing.T) {
	hub := NewHub()
	a := &Client{send: make(chan []byte, 1)}
	b := &Client{send: make(chan []byte, 1)}
	hub.Register("ops-1", a)
	hub.Register("ops-2", b)

	hub.Publish(ProgressEvent{RunID: "run-1", Stage: StageAudited, Critical: 2, Timestamp: time.Now()})

	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.send:
			var ev ProgressEvent
			if err := json.Unmarshal(msg, &ev); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if ev.Stage != StageAudited || ev.Critical != 2 {
				t.Fatalf("unexpected event: %#v", ev)
			}
		default:
			t.Fatalf("expected event")
		}
	}
}

func TestHubPublishDropsWhenFull(t *testing.T) {
	hub := NewHub()
	c := &Client{send: make(chan []byte)}
	hub.Register("ops-1", c)
	hub.Publish(ProgressEvent{Stage: StageStarted})
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub()
	c := &Client{send: make(chan []byte, 1)}
	hub.Register("ops-1", c)
	if hub.Connected() != 1 {
		t.Fatalf("expected 1 client")
	}
	hub.Unregister("ops-1", c)
	hub.Unregister("ops-1", c)
	if hub.Connected() != 0 {
		t.Fatalf("expected no clients")
	}
}

func TestAllowOrigins(t *testing.T) {
	check := AllowOrigins([]string{"https://crm.example.org"})
	if !check("https://crm.example.org") || !check("") {
		t.Fatalf("expected origin to be allowed")
	}
	if check("https://evil.example") {
		t.Fatalf("expected origin to be rejected")
	}
	if !AllowOrigins([]string{"*"})("https://anything") {
		t.Fatalf("expected wildcard to allow")
	}
}
