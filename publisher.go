package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"cyberherd-messaging/internal/event"
)

// RelayResult reports one relay's response to a publish.
type RelayResult struct {
	Relay string `json:"relay"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Publisher fans a signed event out to relays over websocket. Each
// publish dials fresh connections; there is no retry, callers see the
// per-relay outcome and decide.
type Publisher struct {
	timeout time.Duration
}

func NewPublisher(timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Publisher{timeout: timeout}
}

// Publish sends evt to every relay concurrently and collects results in
// relay order.
func (p *Publisher) Publish(ctx context.Context, evt *event.Event, relays []string) []RelayResult {
	msg, err := encodeEventMessage(evt)
	if err != nil {
		results := make([]RelayResult, len(relays))
		for i, relay := range relays {
			results[i] = RelayResult{Relay: relay, Error: err.Error()}
		}
		return results
	}

	results := make([]RelayResult, len(relays))
	var wg sync.WaitGroup
	for i, relay := range relays {
		wg.Add(1)
		go func(i int, relayURL string) {
			defer wg.Done()
			results[i] = p.publishOne(ctx, relayURL, evt.ID, msg)
		}(i, relay)
	}
	wg.Wait()

	ok := 0
	for _, r := range results {
		if r.OK {
			ok++
			relayPublishesTotal.Add(1)
		} else {
			relayPublishFailTotal.Add(1)
		}
	}
	if ok > 0 {
		eventsPublishedTotal.Add(1)
	} else {
		publishFailuresTotal.Add(1)
	}

	LoggerFromContext(ctx).Info("event published",
		"event_id", event.ShortID(evt.ID),
		"kind", evt.Kind,
		"relays_ok", ok,
		"relays_total", len(relays),
	)
	return results
}

func (p *Publisher) publishOne(ctx context.Context, relayURL, eventID string, msg []byte) RelayResult {
	result := RelayResult{Relay: relayURL}

	dialCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: p.timeout}
	conn, _, err := dialer.DialContext(dialCtx, relayURL, nil)
	if err != nil {
		result.Error = fmt.Sprintf("connect: %v", err)
		return result
	}
	defer conn.Close()

	deadline := time.Now().Add(p.timeout)
	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		result.Error = fmt.Sprintf("write: %v", err)
		return result
	}

	// Wait for the ["OK", id, accepted, message] ack
	conn.SetReadDeadline(deadline)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			result.Error = fmt.Sprintf("ack: %v", err)
			return result
		}

		var parts []json.RawMessage
		if err := json.Unmarshal(raw, &parts); err != nil || len(parts) < 3 {
			continue
		}
		var msgType, ackID string
		json.Unmarshal(parts[0], &msgType)
		json.Unmarshal(parts[1], &ackID)
		if msgType != "OK" || ackID != eventID {
			continue
		}

		var accepted bool
		json.Unmarshal(parts[2], &accepted)
		if accepted {
			result.OK = true
		} else {
			reason := ""
			if len(parts) >= 4 {
				json.Unmarshal(parts[3], &reason)
			}
			result.Error = "rejected: " + reason
			slog.Debug("relay rejected event", "relay", relayURL, "reason", reason)
		}
		return result
	}
}

// encodeEventMessage builds the ["EVENT", {...}] frame without HTML
// escaping, matching the serialization the ID was computed over.
func encodeEventMessage(evt *event.Event) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]interface{}{"EVENT", evt}); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
