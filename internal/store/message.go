package store

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/reactor/internal/reactive"
	"github.com/roach88/reactor/internal/value"
)

// Message is the wire form of one mutation.
//
// Origin and Seq identify the sending context. They are used only to drop
// deliveries of a context's own messages; echo suppression matches on Key.
type Message struct {
	Store  string          `json:"store"`
	Path   string          `json:"path"`
	Action reactive.Action `json:"action"`
	Value  any             `json:"value"`
	Origin string          `json:"origin,omitempty"`
	Seq    int64           `json:"seq,omitempty"`
}

// Key returns the composite key "store:path:action".
func (m Message) Key() string {
	return compositeKey(m.Store, m.Path, m.Action)
}

func compositeKey(store, path string, action reactive.Action) string {
	return store + ":" + path + ":" + string(action)
}

// EncodeMessage serializes msg as canonical JSON.
func EncodeMessage(msg Message) (string, error) {
	doc := map[string]any{
		"store":  msg.Store,
		"path":   msg.Path,
		"action": string(msg.Action),
		"value":  value.Clone(msg.Value),
	}
	if msg.Origin != "" {
		doc["origin"] = msg.Origin
	}
	if msg.Seq != 0 {
		doc["seq"] = msg.Seq
	}
	data, err := value.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode message for %q: %w", msg.Store, err)
	}
	return string(data), nil
}

// DecodeMessage parses a payload produced by EncodeMessage. Numbers in the
// value decode as int64 when integral.
func DecodeMessage(payload string) (Message, error) {
	var raw struct {
		Store  string          `json:"store"`
		Path   string          `json:"path"`
		Action string          `json:"action"`
		Value  json.RawMessage `json:"value"`
		Origin string          `json:"origin"`
		Seq    int64           `json:"seq"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return Message{}, &SyncError{Code: ErrCodeDecodeFailed, Message: "malformed payload", Err: err}
	}
	if raw.Store == "" {
		return Message{}, &SyncError{Code: ErrCodeDecodeFailed, Message: "payload has no store"}
	}

	msg := Message{
		Store:  raw.Store,
		Path:   raw.Path,
		Action: reactive.Action(raw.Action),
		Origin: raw.Origin,
		Seq:    raw.Seq,
	}
	if len(raw.Value) > 0 {
		v, err := value.Unmarshal(raw.Value)
		if err != nil {
			return Message{}, newSyncError(ErrCodeDecodeFailed, msg, "malformed value", err)
		}
		msg.Value = v
	}
	return msg, nil
}

// pendingList holds the keys of messages being reflected. A key is consumed
// by the first change notification that matches it.
type pendingList struct {
	mu   sync.Mutex
	keys []string
}

func (p *pendingList) push(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
}

// take removes the first occurrence of key and reports whether it was there.
func (p *pendingList) take(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := slices.Index(p.keys, key)
	if i < 0 {
		return false
	}
	p.keys = slices.Delete(p.keys, i, i+1)
	return true
}

func (p *pendingList) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}
