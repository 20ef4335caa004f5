package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"cyberherd-messaging/internal/event"
)

func TestEncodeEventMessage(t *testing.T) {
	evt := &event.Event{
		ID:        strings.Repeat("ab", 32),
		PubKey:    strings.Repeat("cd", 32),
		CreatedAt: 1700000000,
		Kind:      1,
		Tags:      [][]string{{"p", strings.Repeat("ef", 32)}},
		Content:   "sats & <treats>",
		Sig:       strings.Repeat("01", 64),
	}

	msg, err := encodeEventMessage(evt)
	if err != nil {
		t.Fatalf("encodeEventMessage failed: %v", err)
	}

	var frame []json.RawMessage
	if err := json.Unmarshal(msg, &frame); err != nil {
		t.Fatalf("frame is not a JSON array: %v", err)
	}
	if len(frame) != 2 {
		t.Fatalf("frame has %d elements, want 2", len(frame))
	}

	var msgType string
	if err := json.Unmarshal(frame[0], &msgType); err != nil || msgType != "EVENT" {
		t.Errorf("frame type = %q", msgType)
	}

	var decoded event.Event
	if err := json.Unmarshal(frame[1], &decoded); err != nil {
		t.Fatalf("event element does not decode: %v", err)
	}
	if decoded.Content != evt.Content {
		t.Errorf("content = %q", decoded.Content)
	}

	if strings.Contains(string(msg), "\\u003c") {
		t.Errorf("frame must not HTML-escape content: %s", msg)
	}
	if strings.HasSuffix(string(msg), "\n") {
		t.Error("frame must not carry a trailing newline")
	}
}

func TestPublishNoRelays(t *testing.T) {
	p := NewPublisher(time.Second)
	evt := &event.Event{
		ID:        strings.Repeat("ab", 32),
		PubKey:    strings.Repeat("cd", 32),
		CreatedAt: 1700000000,
		Kind:      1,
		Tags:      [][]string{},
		Content:   "nobody listening",
		Sig:       strings.Repeat("01", 64),
	}
	results := p.Publish(context.Background(), evt, nil)
	if len(results) != 0 {
		t.Errorf("expected no results, got %v", results)
	}
}

func TestHubBroadcastNoClients(t *testing.T) {
	hub := NewHub()
	sent := hub.Broadcast(context.Background(), "overlay", BroadcastMessage{
		Category: "cyber_herd",
		Text:     "a **bold** goat",
	})
	if sent != 0 {
		t.Errorf("sent = %d, want 0", sent)
	}
	if hub.ClientCount("overlay") != 0 {
		t.Errorf("client count = %d", hub.ClientCount("overlay"))
	}
}

func TestHubRenderHTML(t *testing.T) {
	hub := NewHub()
	html := hub.renderHTML("a **bold** goat")
	if !strings.Contains(html, "<strong>bold</strong>") {
		t.Errorf("markdown not rendered: %q", html)
	}
}
