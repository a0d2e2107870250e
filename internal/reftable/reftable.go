// Package reftable maps opaque channel and show identifiers to display names.
package reftable

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

//go:embed channels.json
var embeddedChannels []byte

//go:embed shows.json
var embeddedShows []byte

// Table is an immutable id -> display name lookup.
type Table struct {
	names map[string]string
}

// NewTable copies entries into a new Table. Keys are matched case-insensitively.
func NewTable(entries map[string]string) *Table {
	t := &Table{names: make(map[string]string, len(entries))}
	for id, name := range entries {
		t.names[normalizeKey(id)] = strings.TrimSpace(name)
	}
	return t
}

// Lookup returns the display name for id.
func (t *Table) Lookup(id string) (string, bool) {
	if t == nil {
		return "", false
	}
	name, ok := t.names[normalizeKey(id)]
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// NameOr returns the display name for id, or id itself when unknown.
func (t *Table) NameOr(id string) string {
	if name, ok := t.Lookup(id); ok {
		return name
	}
	return strings.TrimSpace(id)
}

// HasName reports whether any id maps to name.
func (t *Table) HasName(name string) bool {
	if t == nil {
		return false
	}
	name = strings.TrimSpace(name)
	for _, n := range t.names {
		if n == name {
			return true
		}
	}
	return false
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}

func (t *Table) merge(entries map[string]string) *Table {
	out := make(map[string]string, len(t.names)+len(entries))
	for k, v := range t.names {
		out[k] = v
	}
	for k, v := range entries {
		out[normalizeKey(k)] = strings.TrimSpace(v)
	}
	return &Table{names: out}
}

func normalizeKey(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Tables bundles the channel and show lookups.
type Tables struct {
	Channels *Table
	Shows    *Table
}

type overlayFile struct {
	Channels map[string]string `json:"channels"`
	Shows    map[string]string `json:"shows"`
}

// Load returns the embedded tables, merged with the JSON overlay at
// overlayPath when it is non-empty. Overlay entries win.
func Load(overlayPath string) (*Tables, error) {
	var channels, shows map[string]string
	if err := json.Unmarshal(embeddedChannels, &channels); err != nil {
		return nil, fmt.Errorf("reftable: parse embedded channels: %w", err)
	}
	if err := json.Unmarshal(embeddedShows, &shows); err != nil {
		return nil, fmt.Errorf("reftable: parse embedded shows: %w", err)
	}
	tables := &Tables{Channels: NewTable(channels), Shows: NewTable(shows)}

	overlayPath = strings.TrimSpace(overlayPath)
	if overlayPath == "" {
		return tables, nil
	}

	b, err := os.ReadFile(overlayPath)
	if err != nil {
		return nil, fmt.Errorf("reftable: read overlay: %w", err)
	}
	var overlay overlayFile
	if err := json.Unmarshal(b, &overlay); err != nil {
		return nil, fmt.Errorf("reftable: parse overlay %s: %w", overlayPath, err)
	}
	tables.Channels = tables.Channels.merge(overlay.Channels)
	tables.Shows = tables.Shows.merge(overlay.Shows)
	return tables, nil
}
