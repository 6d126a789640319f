package api

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nerrad567/gray-logic-irrigation/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-irrigation/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-irrigation/internal/irrigation"
)

func testHub() *Hub {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	return NewHub(config.WebSocketConfig{MaxMessageSize: 4096, PingInterval: 30, PongTimeout: 10}, log)
}

func drain(c *WSClient) []WSMessage {
	var out []WSMessage
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return out
			}
			var msg WSMessage
			if err := json.Unmarshal(data, &msg); err == nil {
				out = append(out, msg)
			}
		default:
			return out
		}
	}
}

func TestHub_BroadcastProgramFilter(t *testing.T) {
	hub := testHub()

	all := newWSClient(hub, nil)
	all.subscribe([]string{irrigation.ChannelProgramState}, nil)
	frontOnly := newWSClient(hub, nil)
	frontOnly.subscribe([]string{irrigation.ChannelProgramState}, []string{"front"})
	other := newWSClient(hub, nil)
	other.subscribe([]string{"something.else"}, nil)

	for _, c := range []*WSClient{all, frontOnly, other} {
		hub.Register(c)
	}

	hub.Broadcast(irrigation.ChannelProgramState, irrigation.Attributes{ID: "front"})
	hub.Broadcast(irrigation.ChannelProgramState, irrigation.Attributes{ID: "back"})

	if got := len(drain(all)); got != 2 {
		t.Errorf("unfiltered client got %d events, want 2", got)
	}
	msgs := drain(frontOnly)
	if len(msgs) != 1 {
		t.Fatalf("filtered client got %d events, want 1", len(msgs))
	}
	if payload := msgs[0].Payload.(map[string]any); payload["id"] != "front" {
		t.Errorf("filtered payload = %v, want front", payload)
	}
	if got := len(drain(other)); got != 0 {
		t.Errorf("unsubscribed client got %d events, want 0", got)
	}
}

func TestHub_UnregisterAndRun(t *testing.T) {
	hub := testHub()
	a := newWSClient(hub, nil)
	b := newWSClient(hub, nil)
	hub.Register(a)
	hub.Register(b)

	hub.Unregister(a)
	hub.Unregister(a)
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	// Sending to an unregistered client must not panic.
	a.trySend([]byte("late"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hub.Run(ctx)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() after Run = %d, want 0", hub.ClientCount())
	}
}

func TestWSClient_HandleMessage(t *testing.T) {
	hub := testHub()
	c := newWSClient(hub, nil)

	c.handleMessage([]byte(`{"type":"subscribe","id":"1","payload":{"channels":["irrigation.program_state"],"programs":["back"]}}`))
	if !c.wants(irrigation.ChannelProgramState, "back") || c.wants(irrigation.ChannelProgramState, "front") {
		t.Error("subscribe did not apply channel and program filter")
	}

	c.handleMessage([]byte(`{"type":"unsubscribe","id":"2","payload":{"channels":["irrigation.program_state"]}}`))
	if c.wants(irrigation.ChannelProgramState, "back") {
		t.Error("unsubscribe did not remove channel")
	}

	c.handleMessage([]byte(`{"type":"dance","id":"3"}`))
	c.handleMessage([]byte(`not json`))

	msgs := drain(c)
	if len(msgs) != 4 {
		t.Fatalf("responses = %d, want 4", len(msgs))
	}
	if msgs[2].Type != WSTypeError || msgs[3].Type != WSTypeError {
		t.Errorf("error responses = %+v, %+v", msgs[2], msgs[3])
	}
}
