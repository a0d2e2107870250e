// Package verify audits an episode manifest against archive.org and lists the
// episodes whose items are missing.
package verify

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// DefaultChunkSize is how many identifiers go into one search query.
const DefaultChunkSize = 250

// Row is one manifest line.
type Row struct {
	Series    string
	Channel   string
	ArchiveID string
	Link      string
}

var requiredColumns = []string{"series", "channel", "archive_id", "link"}

// LoadCSV reads a manifest with a header row naming at least series, channel,
// archive_id and link. Empty filters match everything.
func LoadCSV(path, showFilter, channelFilter string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("verify: open manifest: %w", err)
	}
	defer f.Close()
	return ReadCSV(f, showFilter, channelFilter)
}

func ReadCSV(r io.Reader, showFilter, channelFilter string) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("verify: read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("verify: manifest is missing column %q", name)
		}
	}

	get := func(rec []string, name string) string {
		i := col[name]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("verify: read row: %w", err)
		}
		row := Row{
			Series:    get(rec, "series"),
			Channel:   get(rec, "channel"),
			ArchiveID: get(rec, "archive_id"),
			Link:      get(rec, "link"),
		}
		if showFilter != "" && row.Series != showFilter {
			continue
		}
		if channelFilter != "" && row.Channel != channelFilter {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Searcher returns which of ids exist remotely.
type Searcher interface {
	SearchIdentifiers(ctx context.Context, ids []string) ([]string, error)
}

// Missing returns the links of rows whose archive identifier was not found,
// in manifest order. Rows are queried chunkSize at a time.
func Missing(ctx context.Context, s Searcher, rows []Row, chunkSize int) ([]string, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var missing []string
	for chunk := range slices.Chunk(rows, chunkSize) {
		ids := make([]string, 0, len(chunk))
		for _, r := range chunk {
			if r.ArchiveID != "" {
				ids = append(ids, r.ArchiveID)
			}
		}

		found, err := s.SearchIdentifiers(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("verify: search %d identifiers: %w", len(ids), err)
		}
		present := make(map[string]struct{}, len(found))
		for _, id := range found {
			present[id] = struct{}{}
		}

		for _, r := range chunk {
			if _, ok := present[r.ArchiveID]; !ok {
				missing = append(missing, r.Link)
			}
		}
	}
	return missing, nil
}

// OutputName is missing[_show][_channel].txt.
func OutputName(showFilter, channelFilter string) string {
	name := "missing"
	if showFilter != "" {
		name += "_" + showFilter
	}
	if channelFilter != "" {
		name += "_" + channelFilter
	}
	return name + ".txt"
}

// WriteLinks writes one link per line to path.
func WriteLinks(path string, links []string) error {
	var b strings.Builder
	for _, l := range links {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
