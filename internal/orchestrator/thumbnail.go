package orchestrator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"thirdcoast.systems/vodarchive/internal/episode"
	"thirdcoast.systems/vodarchive/internal/httpx"
	"thirdcoast.systems/vodarchive/internal/naming"
)

// HTTPThumbnails downloads cover images over httpx.
type HTTPThumbnails struct {
	HTTP *httpx.Client
}

// Fetch writes the image at url to dest. Anything but a 200 is an error.
func (t *HTTPThumbnails) Fetch(ctx context.Context, url, dest string) error {
	hc := t.HTTP
	if hc == nil {
		hc = httpx.New()
	}
	resp, err := hc.Get(ctx, url, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &httpx.StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create thumbnail dir: %w", err)
	}
	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create thumbnail: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write thumbnail: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

// AcquireThumbnail makes sure the cover image for rec exists at its computed
// path. An existing file is kept without any request. Otherwise the primary
// and then the alternate URL are tried. It returns false when neither worked
// and the fetch step should extract a thumbnail itself.
func (p *Pipeline) AcquireThumbnail(ctx context.Context, rec episode.Record) bool {
	dest := naming.ThumbnailPath(p.Options.BaseDir, rec, p.Options.Mode)
	if fileExists(dest) {
		p.logger().Debug("thumbnail already present", "path", dest)
		return true
	}

	for _, candidate := range []struct{ kind, url string }{
		{"primary", rec.ThumbnailURLPrimary},
		{"alternate", rec.ThumbnailURLAlternate},
	} {
		if candidate.url == "" {
			continue
		}
		err := p.Thumbnails.Fetch(ctx, candidate.url, dest)
		if err == nil {
			p.logger().Info("thumbnail downloaded", "id", rec.NumericID, "source", candidate.kind, "path", dest)
			return true
		}
		p.logger().Warn("thumbnail download failed", "id", rec.NumericID, "source", candidate.kind, "url", candidate.url, "error", err)
	}

	p.logger().Info("falling back to extractor thumbnail", "id", rec.NumericID)
	return false
}
