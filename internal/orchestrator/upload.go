package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"thirdcoast.systems/vodarchive/internal/episode"
	"thirdcoast.systems/vodarchive/internal/naming"
	"thirdcoast.systems/vodarchive/internal/resolver"
)

// UploadReport summarizes one item upload.
type UploadReport struct {
	Identifier string
	OK         int
	Total      int
	VideoOK    bool
	Deleted    bool
}

// Partial reports a successful upload that still lost some files.
func (r UploadReport) Partial() bool {
	return r.VideoOK && r.OK < r.Total
}

// UploadAndCleanup uploads every file in dir to rec's archive item. The upload
// succeeded when at least one file transferred and the primary video was among
// them. A partial upload still counts as success. On success local files are
// deleted unless KeepAfterUpload is set; on failure the episode URL goes to the
// failed-upload log and nothing is deleted.
func (p *Pipeline) UploadAndCleanup(ctx context.Context, url string, rec episode.Record, dir string, existed bool) (UploadReport, error) {
	report := UploadReport{Identifier: naming.ItemIdentifier(rec)}

	paths, err := listFiles(dir)
	if err != nil {
		return report, fmt.Errorf("list %s: %w", dir, err)
	}
	files, primary := uploadOrder(paths)
	report.Total = len(files)

	meta := ArchiveMetadata(rec, p.Options.Collection, p.Options.SiteBase)
	results := p.Archive.Upload(ctx, report.Identifier, files, meta)
	for _, r := range results {
		if !r.OK() {
			continue
		}
		report.OK++
		if primary != "" && r.Name == filepath.Base(primary) {
			report.VideoOK = true
		}
	}

	if report.OK == 0 || !report.VideoOK {
		if err := p.Failed.Append(url); err != nil {
			p.logger().Warn("failed to append failed-upload log", "url", url, "error", err)
		}
		p.logger().Error("upload failed", "identifier", report.Identifier, "uploaded", report.OK, "total", report.Total, "video", report.VideoOK)
		return report, fmt.Errorf("%w: %s: %d of %d files, video uploaded: %t", ErrUploadFailed, report.Identifier, report.OK, report.Total, report.VideoOK)
	}

	p.Status.Uploaded(resolver.SlugFromURL(url), report.Identifier, report.OK, report.Total)
	if report.Partial() {
		p.logger().Warn("partial upload", "identifier", report.Identifier, "uploaded", report.OK, "total", report.Total)
	} else {
		p.logger().Info("upload complete", "identifier", report.Identifier, "files", report.OK)
	}

	if existed {
		if err := p.Archive.ModifyMetadata(ctx, report.Identifier, meta); err != nil {
			p.logger().Warn("metadata update failed", "identifier", report.Identifier, "error", err)
		}
	}

	if p.Options.KeepAfterUpload {
		return report, nil
	}
	if err := os.RemoveAll(dir); err != nil {
		p.logger().Warn("cleanup failed", "dir", dir, "error", err)
		return report, nil
	}
	report.Deleted = true
	p.logger().Info("local files removed", "dir", dir)
	return report, nil
}
