package store

import (
	"fmt"

	"github.com/roach88/reactor/internal/reactive"
	"github.com/roach88/reactor/internal/value"
)

// DefaultKey is the storage key holding the persisted document.
const DefaultKey = "reactor-persistent-data"

// Document is the persisted form of every persistent instance.
type Document struct {
	Version string
	Store   map[string]Entry
}

// Entry is one persisted instance.
type Entry struct {
	Data      any
	Recursive bool
}

// EncodeDocument serializes doc as canonical JSON. Transport metadata at the
// top level of each entry is omitted.
func EncodeDocument(doc Document) (string, error) {
	entries := make(map[string]any, len(doc.Store))
	for name, e := range doc.Store {
		entries[name] = map[string]any{
			"data":      value.Omit(value.Clone(e.Data), reactive.MetaKeys()...),
			"recursive": e.Recursive,
		}
	}
	data, err := value.Marshal(map[string]any{
		"version": doc.Version,
		"store":   entries,
	})
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(data), nil
}

// DecodeDocument parses a persisted document. Entries missing "recursive"
// default to recursive.
func DecodeDocument(data string) (Document, error) {
	raw, err := value.Unmarshal([]byte(data))
	if err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	root, ok := raw.(map[string]any)
	if !ok {
		return Document{}, fmt.Errorf("decode document: expected object, got %s", value.Describe(raw))
	}

	doc := Document{Store: make(map[string]Entry)}
	if v, ok := root["version"].(string); ok {
		doc.Version = v
	}

	entries, _ := root["store"].(map[string]any)
	for name, rawEntry := range entries {
		fields, ok := rawEntry.(map[string]any)
		if !ok {
			return Document{}, fmt.Errorf("decode document: entry %q: expected object, got %s", name, value.Describe(rawEntry))
		}
		e := Entry{Data: fields["data"], Recursive: true}
		if r, ok := fields["recursive"].(bool); ok {
			e.Recursive = r
		}
		doc.Store[name] = e
	}
	return doc, nil
}
