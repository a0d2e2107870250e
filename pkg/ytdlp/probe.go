package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Info models the fields of yt-dlp's JSON output that episode resolution
// reads. The full JSON is preserved in Raw.
type Info struct {
	ID            string   `json:"id"`
	DisplayID     string   `json:"display_id"`
	Title         string   `json:"title"`
	Episode       string   `json:"episode"`
	Description   string   `json:"description"`
	WebpageURL    string   `json:"webpage_url"`
	Extractor     string   `json:"extractor"`
	ExtractorKey  string   `json:"extractor_key"`
	Series        string   `json:"series"`
	SeriesID      string   `json:"series_id"`
	Season        string   `json:"season"`
	SeasonID      string   `json:"season_id"`
	SeasonNumber  *int     `json:"season_number"`
	EpisodeNumber *int     `json:"episode_number"`
	EpisodeID     string   `json:"episode_id"`
	ChannelID     string   `json:"channel_id"`
	Channel       string   `json:"channel"`
	ReleaseDate   string   `json:"release_date"`
	UploadDate    string   `json:"upload_date"`
	Availability  string   `json:"availability"`
	Thumbnail     string   `json:"thumbnail"`
	Categories    []string `json:"categories"`
	Tags          []string `json:"tags"`
	Duration      float64  `json:"duration"`

	Raw json.RawMessage `json:"-"`
}

// IsEmpty reports whether the probe produced nothing usable.
func (i *Info) IsEmpty() bool {
	return i == nil || (strings.TrimSpace(i.ID) == "" && strings.TrimSpace(i.Title) == "")
}

// Date returns the best known air date as YYYY-MM-DD, or "".
func (i *Info) Date() string {
	for _, d := range []string{i.ReleaseDate, i.UploadDate} {
		d = strings.TrimSpace(d)
		if len(d) == 8 {
			return d[:4] + "-" + d[4:6] + "-" + d[6:]
		}
	}
	return ""
}

// Probe runs yt-dlp in metadata-only mode and parses its JSON output.
// It uses: --dump-single-json --skip-download --no-playlist
func (c *Client) Probe(ctx context.Context, url string, extraArgs ...string) (*Info, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("ytdlp: url is required")
	}

	args := []string{"--dump-single-json", "--skip-download", "--no-playlist"}
	args = append(args, extraArgs...)
	args = append(args, url)

	stdout, err := c.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	raw := bytes.TrimSpace(stdout)
	info := &Info{Raw: append([]byte(nil), raw...)}
	if len(raw) == 0 {
		return info, nil
	}
	if err := json.Unmarshal(raw, info); err != nil {
		return nil, fmt.Errorf("ytdlp: parse json: %w", err)
	}
	return info, nil
}
