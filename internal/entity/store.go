package entity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-irrigation/internal/irrigation"
)

// Logger defines the logging interface used by the entity package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store holds the latest known value of every entity.
//
// It implements irrigation.ValueSource.
type Store struct {
	mu     sync.RWMutex
	values map[string]irrigation.Value
	now    func() time.Time
	logger Logger
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		values: make(map[string]irrigation.Value),
		now:    time.Now,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for ingest diagnostics.
func (s *Store) SetLogger(logger Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// Read implements irrigation.ValueSource.
func (s *Store) Read(_ context.Context, ref string) (irrigation.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[ref]
	if !ok {
		return irrigation.Value{}, fmt.Errorf("%w: %s", irrigation.ErrValueNotFound, ref)
	}
	return v, nil
}

// Set records raw as the current value of id.
func (s *Store) Set(id, raw string) {
	s.SetAt(id, raw, s.now())
}

// SetAt records raw with an explicit update time.
func (s *Store) SetAt(id, raw string, at time.Time) {
	s.mu.Lock()
	s.values[id] = irrigation.NewValue(raw, at)
	s.mu.Unlock()
}

// Delete forgets id. Subsequent reads return ErrValueNotFound.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.values, id)
	s.mu.Unlock()
}

// Seed records fixed values, typically the values: map of the programs file.
func (s *Store) Seed(values map[string]string) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, raw := range values {
		s.values[id] = irrigation.NewValue(raw, now)
	}
}

// Snapshot returns a copy of every value, keyed by entity id.
func (s *Store) Snapshot() map[string]irrigation.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]irrigation.Value, len(s.values))
	for id, v := range s.values {
		out[id] = v
	}
	return out
}

// IDs returns the known entity ids in sorted order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.values))
	for id := range s.values {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// stateMessage is the canonical entity state payload.
type stateMessage struct {
	State     json.RawMessage `json:"state"`
	Timestamp string          `json:"timestamp"`
}

// Ingest applies one state message for id.
//
// Accepted payloads:
//   - {"state": <scalar|object>, "timestamp": "<RFC3339>"}
//   - a bare JSON scalar: 12, "on", true
//   - plain text: on, 06:30:00
//
// A null state forgets the entity. Objects are reduced to a scalar by
// their "on", "value" or "state" key.
func (s *Store) Ingest(id string, payload []byte) error {
	if id == "" {
		return ErrInvalidEntityID
	}

	trimmed := bytes.TrimSpace(payload)
	at := s.now()

	var raw json.RawMessage
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var msg stateMessage
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidPayload, id, err)
		}
		if msg.State == nil {
			return fmt.Errorf("%w: %s: missing state", ErrInvalidPayload, id)
		}
		if msg.Timestamp != "" {
			if ts, err := time.Parse(time.RFC3339, msg.Timestamp); err == nil {
				at = ts
			}
		}
		raw = msg.State
	} else if json.Valid(trimmed) {
		raw = trimmed
	} else {
		s.SetAt(id, string(trimmed), at)
		return nil
	}

	value, present, err := scalar(raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidPayload, id, err)
	}
	if !present {
		s.Delete(id)
		return nil
	}

	s.SetAt(id, value, at)

	s.mu.RLock()
	logger := s.logger
	s.mu.RUnlock()
	logger.Debug("entity state updated", "entity_id", id, "state", value)

	return nil
}

// scalar flattens a JSON state into the raw string form of irrigation.Value.
// present is false for null.
func scalar(raw json.RawMessage) (value string, present bool, err error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false, err
	}
	return flatten(v)
}

func flatten(v any) (string, bool, error) {
	switch t := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return strings.TrimSpace(t), true, nil
	case bool:
		if t {
			return "on", true, nil
		}
		return "off", true, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true, nil
	case map[string]any:
		for _, key := range []string{"on", "value", "state"} {
			if inner, ok := t[key]; ok {
				return flatten(inner)
			}
		}
		return "", false, fmt.Errorf("object state has no on, value or state key")
	default:
		return "", false, fmt.Errorf("unsupported state type %T", v)
	}
}
