package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-irrigation/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-irrigation/internal/irrigation"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256
)

// WSMessage represents a message sent to/from a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
//
// Programs narrows program events to the listed program ids. An empty list
// on subscribe clears the filter.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
	Programs []string `json:"programs,omitempty"`
}

// pumpTiming holds the per-connection limits derived from config.
type pumpTiming struct {
	readLimit    int64
	pingInterval time.Duration
	pongWait     time.Duration
}

func newPumpTiming(cfg config.WebSocketConfig) pumpTiming {
	return pumpTiming{
		readLimit:    int64(cfg.MaxMessageSize),
		pingInterval: time.Duration(cfg.PingInterval) * time.Second,
		pongWait:     time.Duration(cfg.PongTimeout) * time.Second,
	}
}

// readDeadline is the idle limit before a silent client is dropped.
func (t pumpTiming) readDeadline() time.Time {
	return time.Now().Add(t.pingInterval + t.pongWait)
}

// WSClient is one connected WebSocket client.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu       sync.RWMutex // Protects channels and programs
	channels map[string]struct{}
	programs map[string]struct{} // empty: every program
}

func newWSClient(hub *Hub, conn *websocket.Conn) *WSClient {
	return &WSClient{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, wsSendBufferSize),
		channels: make(map[string]struct{}),
		programs: make(map[string]struct{}),
	}
}

// upgrader configures the WebSocket upgrader. Origins are checked by the
// CORS middleware.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleWebSocket upgrades the connection and starts the client pumps.
//
// Query parameters:
//   - channels: comma-separated channels to subscribe immediately
//   - programs: comma-separated program ids to filter program events
//
// A client subscribed to the program state channel receives the current
// attributes of every admitted program on connect.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(s.hub, conn)
	client.subscribe(splitList(r.URL.Query().Get("channels")), splitList(r.URL.Query().Get("programs")))
	s.hub.Register(client)

	for _, p := range s.programs.List() {
		if client.wants(irrigation.ChannelProgramState, p.ID()) {
			if data, err := encodeEvent(irrigation.ChannelProgramState, p.Attributes()); err == nil {
				client.trySend(data)
			}
		}
	}

	go client.writePump()
	go client.readPump()
}

// splitList splits a comma-separated query value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// readPump reads client messages until the connection fails.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	timing := c.hub.timing
	c.conn.SetReadLimit(timing.readLimit)
	c.conn.SetReadDeadline(timing.readDeadline()) //nolint:errcheck // failure surfaces on the next read
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(timing.readDeadline())
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		// Browsers may not answer protocol pings; any message counts as alive.
		c.conn.SetReadDeadline(timing.readDeadline()) //nolint:errcheck // failure surfaces on the next read
		c.handleMessage(message)
	}
}

// writePump drains the send channel and keeps the connection alive with pings.
func (c *WSClient) writePump() {
	timing := c.hub.timing
	ticker := time.NewTicker(timing.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(messageType int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(timing.pongWait)) //nolint:errcheck // failure surfaces on write
		return c.conn.WriteMessage(messageType, data)
	}

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // connection is closing
				return
			}
			if err := write(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes one client message.
func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		sub, err := decodeSubscription(msg.Payload)
		if err != nil {
			c.sendError(msg.ID, "invalid "+msg.Type+" payload")
			return
		}
		if msg.Type == WSTypeSubscribe {
			c.subscribe(sub.Channels, sub.Programs)
			c.sendResponse(msg.ID, WSTypeResponse, map[string]any{"subscribed": sub.Channels, "programs": sub.Programs})
		} else {
			c.unsubscribe(sub.Channels)
			c.sendResponse(msg.ID, WSTypeResponse, map[string]any{"unsubscribed": sub.Channels})
		}
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// decodeSubscription re-decodes a generic payload into WSSubscribePayload.
func decodeSubscription(payload any) (WSSubscribePayload, error) {
	var sub WSSubscribePayload
	raw, err := json.Marshal(payload)
	if err != nil {
		return sub, err
	}
	err = json.Unmarshal(raw, &sub)
	return sub, err
}

// subscribe adds channels and replaces the program filter.
func (c *WSClient) subscribe(channels, programs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		c.channels[ch] = struct{}{}
	}
	c.programs = make(map[string]struct{}, len(programs))
	for _, id := range programs {
		c.programs[id] = struct{}{}
	}
}

func (c *WSClient) unsubscribe(channels []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		delete(c.channels, ch)
	}
}

// wants reports whether an event on channel for programID should reach the client.
func (c *WSClient) wants(channel, programID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.channels[channel]; !ok {
		return false
	}
	if programID == "" || len(c.programs) == 0 {
		return true
	}
	_, ok := c.programs[programID]
	return ok
}

// trySend queues data without blocking. A full buffer drops the message and
// a send racing a disconnect is absorbed.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // send on a channel closed by Unregister
	}()

	select {
	case c.send <- data:
	default:
	}
}

func (c *WSClient) sendResponse(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
