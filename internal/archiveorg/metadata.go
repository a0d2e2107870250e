package archiveorg

import (
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"unicode"
)

// Metadata is the item metadata written on upload or patched afterwards.
type Metadata struct {
	MediaType   string
	Collection  string
	Title       string
	Date        string
	Description string
	Creator     string
	Language    string
	OriginalURL string
	Subjects    []string
	Extra       map[string]string
}

type field struct {
	key   string
	value string
}

func (m Metadata) scalars() []field {
	fields := []field{
		{"mediatype", m.MediaType},
		{"collection", m.Collection},
		{"title", m.Title},
		{"date", m.Date},
		{"description", m.Description},
		{"creator", m.Creator},
		{"language", m.Language},
		{"originalurl", m.OriginalURL},
	}
	for _, k := range slices.Sorted(maps.Keys(m.Extra)) {
		fields = append(fields, field{strings.ToLower(k), m.Extra[k]})
	}

	out := fields[:0]
	for _, f := range fields {
		if strings.TrimSpace(f.value) != "" {
			out = append(out, f)
		}
	}
	return out
}

func (m Metadata) subjects() []string {
	out := make([]string, 0, len(m.Subjects))
	for _, s := range m.Subjects {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// headers renders IAS3 x-archive-meta-* headers. Repeated subjects use the
// numbered form.
func (m Metadata) headers() http.Header {
	h := http.Header{}
	for _, f := range m.scalars() {
		h.Set("x-archive-meta-"+f.key, headerValue(f.value))
	}
	for i, s := range m.subjects() {
		h.Set(fmt.Sprintf("x-archive-meta%02d-subject", i+1), headerValue(s))
	}
	return h
}

// headerValue wraps values that cannot travel in a raw header in uri().
func headerValue(v string) string {
	for _, r := range v {
		if r > unicode.MaxASCII || r == '\n' || r == '\r' {
			return "uri(" + url.PathEscape(v) + ")"
		}
	}
	return v
}

type patchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

func (m Metadata) patch() []patchOp {
	var ops []patchOp
	for _, f := range m.scalars() {
		// mediatype and collection are fixed once the item exists.
		if f.key == "mediatype" || f.key == "collection" {
			continue
		}
		ops = append(ops, patchOp{Op: "add", Path: "/" + f.key, Value: f.value})
	}
	if subjects := m.subjects(); len(subjects) > 0 {
		ops = append(ops, patchOp{Op: "add", Path: "/subject", Value: subjects})
	}
	return ops
}
