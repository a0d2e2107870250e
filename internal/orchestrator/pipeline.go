// Package orchestrator drives one episode from URL to finished download, and
// optionally on to archive.org: duplicate checks, metadata resolution,
// thumbnail, fetch, completeness check, upload and cleanup.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"thirdcoast.systems/vodarchive/internal/archiveorg"
	"thirdcoast.systems/vodarchive/internal/catalog"
	"thirdcoast.systems/vodarchive/internal/dedup"
	"thirdcoast.systems/vodarchive/internal/episode"
	"thirdcoast.systems/vodarchive/internal/logging"
	"thirdcoast.systems/vodarchive/internal/naming"
	"thirdcoast.systems/vodarchive/internal/resolver"
	"thirdcoast.systems/vodarchive/internal/status"
	"thirdcoast.systems/vodarchive/pkg/ytdlp"
)

var (
	// ErrExtraction wraps extraction tool failures: bad credentials, invalid
	// links and missing content.
	ErrExtraction = errors.New("orchestrator: extraction failed")

	// ErrIncomplete means the fetch returned but left no finished video or left
	// partial files behind.
	ErrIncomplete = errors.New("orchestrator: download incomplete")

	// ErrUploadFailed means no file reached the archive, or the primary video
	// did not.
	ErrUploadFailed = errors.New("orchestrator: upload failed")
)

// IsEpisodeFatal reports whether err came from the extraction tool refusing
// the episode, either while probing metadata or while fetching.
func IsEpisodeFatal(err error) bool {
	return errors.Is(err, ErrExtraction) || resolver.IsFatal(err)
}

type Resolver interface {
	Resolve(ctx context.Context, watchURL string) (resolver.Result, error)
}

type Extractor interface {
	Fetch(ctx context.Context, url string, opts ytdlp.FetchOptions) error
}

type ThumbnailFetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

type Archive interface {
	dedup.ItemLookup
	Upload(ctx context.Context, identifier string, files []string, meta archiveorg.Metadata) []archiveorg.FileResult
	ModifyMetadata(ctx context.Context, identifier string, meta archiveorg.Metadata) error
}

// Options are the per-run settings.
type Options struct {
	Mode    naming.Mode
	BaseDir string

	// Upload enables the archive-upload step.
	Upload          bool
	FastCheck       bool
	KeepAfterUpload bool
	IgnoreExisting  bool

	ConcurrentFragments int
	Retries             int
	FragmentRetries     int
	Resolution          string
	UseAccelerator      bool

	// ExtractorName prefixes lines written to the archive log.
	ExtractorName string
	SiteBase      string
	Collection    string
}

type Pipeline struct {
	Resolver   Resolver
	Extractor  Extractor
	Thumbnails ThumbnailFetcher
	Archive    Archive

	Slugs      *dedup.SlugLog
	ArchiveLog *dedup.ArchiveLog
	Failed     *dedup.FailedUploadLog
	Catalog    catalog.Recorder
	Status     *status.Printer
	Logger     *slog.Logger

	Options Options

	lookPath func(string) (string, error)
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// Result classifies an Outcome.
type Result int

const (
	ResultDone Result = iota
	ResultSkipped
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultDone:
		return "done"
	case ResultSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Outcome is what happened to one episode URL.
type Outcome struct {
	URL    string
	Slug   string
	Result Result
	Reason string

	Record *episode.Record
	Source string
	Upload *UploadReport
}

// Process runs one episode through the pipeline. Failures are returned as
// errors alongside a ResultFailed outcome; skips are not errors.
func (p *Pipeline) Process(ctx context.Context, url string) (Outcome, error) {
	started := time.Now()
	out := Outcome{URL: url, Slug: resolver.SlugFromURL(url)}
	subject := out.Slug
	if subject == "" {
		subject = url
	}

	if p.Options.FastCheck && p.Slugs.Has(out.Slug) {
		out.Result, out.Reason = ResultSkipped, "already downloaded"
		p.Status.Skip(subject, out.Reason)
		p.logger().Info("episode skipped", "url", url, "reason", out.Reason)
		return out, nil
	}

	res, err := p.Resolver.Resolve(ctx, url)
	if err != nil {
		return p.fail(ctx, out, subject, err)
	}
	rec := res.Record
	out.Record, out.Source = &rec, res.Source
	dir := naming.ContainerPath(p.Options.BaseDir, rec, p.Options.Mode)

	existed := false
	if p.Options.Upload {
		exists, identifier, err := (&dedup.RemoteChecker{Archive: p.Archive}).Exists(ctx, rec)
		if err != nil {
			return p.fail(ctx, out, subject, err)
		}
		if exists && !p.Options.IgnoreExisting && !p.unfinishedUpload(url, out.Slug) {
			return p.skip(ctx, out, subject, catalog.StatusSkipped, "already on archive.org as "+identifier)
		}
		existed = exists
	}

	if p.ArchiveLog.Contains(rec) {
		ready, _ := Ready(dir)
		if !p.Options.Upload || !ready {
			return p.skip(ctx, out, subject, catalog.StatusSkipped, "already in archive log")
		}
		p.logger().Info("resuming upload of downloaded episode", "id", rec.NumericID, "dir", dir, "item_exists", existed)
	} else if err := p.download(ctx, url, rec, dir); err != nil {
		return p.fail(ctx, out, subject, err)
	}

	ready, err := Ready(dir)
	if err != nil {
		return p.fail(ctx, out, subject, fmt.Errorf("check %s: %w", dir, err))
	}
	if !ready {
		return p.fail(ctx, out, subject, fmt.Errorf("%w: %s", ErrIncomplete, dir))
	}
	if rec.IsBonus() {
		if err := p.ArchiveLog.Append(p.Options.ExtractorName, rec); err != nil {
			p.logger().Warn("failed to append archive log", "id", rec.NumericID, "error", err)
		}
	} else {
		p.ArchiveLog.Mark(rec)
	}

	// The container may be gone after upload, so look for the cover now.
	covered := hasImage(dir)
	size := dirSize(dir)
	entryStatus := catalog.StatusDownloaded
	if p.Options.Upload {
		report, err := p.UploadAndCleanup(ctx, url, rec, dir, existed)
		out.Upload = &report
		if err != nil {
			return p.fail(ctx, out, subject, err)
		}
		entryStatus = catalog.StatusUploaded
		if report.Partial() {
			entryStatus = catalog.StatusPartial
		}
	}

	if covered {
		if err := p.Slugs.Append(out.Slug); err != nil {
			p.logger().Warn("failed to append downloaded log", "slug", out.Slug, "error", err)
		}
	} else {
		p.logger().Warn("episode has no cover image; not marking it downloaded", "slug", out.Slug, "dir", dir)
	}
	p.record(ctx, out, entryStatus)

	out.Result = ResultDone
	p.Status.Done(subject, size, started)
	p.logger().Info("episode done", "url", url, "id", rec.NumericID, "source", res.Source, "dir", dir, "bytes", size)
	return out, nil
}

// unfinishedUpload reports an earlier upload of url that failed and was never
// completed, so an existing item may still be missing files.
func (p *Pipeline) unfinishedUpload(url, slug string) bool {
	return p.Failed.Contains(url) && !p.Slugs.Has(slug)
}

func (p *Pipeline) download(ctx context.Context, url string, rec episode.Record, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	haveThumb := p.AcquireThumbnail(ctx, rec)
	opts := p.FetchOptions(rec, !haveThumb)

	p.logger().Info("fetching episode", "id", rec.NumericID, "template", opts.OutputTemplate, "accelerator", opts.Accelerator)
	if err := p.Extractor.Fetch(ctx, url, opts); err != nil {
		if ytdlp.IsInvocationFailure(err) {
			return fmt.Errorf("%w: %w", ErrExtraction, err)
		}
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	return nil
}

// FetchOptions builds the extraction tool configuration for rec. An external
// accelerator replaces fragment concurrency only when requested and found on
// PATH. Bonus records are kept out of the tool's own archive log, which would
// record them without their suffix.
func (p *Pipeline) FetchOptions(rec episode.Record, writeThumbnail bool) ytdlp.FetchOptions {
	opts := ytdlp.FetchOptions{
		OutputTemplate:      naming.OutputTemplate(p.Options.BaseDir, rec, p.Options.Mode),
		ConcurrentFragments: p.Options.ConcurrentFragments,
		Retries:             p.Options.Retries,
		FragmentRetries:     p.Options.FragmentRetries,
		Resolution:          p.Options.Resolution,
		WriteThumbnail:      writeThumbnail,
	}
	if p.Options.UseAccelerator && p.hasAccelerator() {
		opts.Accelerator = acceleratorName
	}
	if !rec.IsBonus() && p.ArchiveLog != nil {
		opts.ArchiveLog = p.ArchiveLog.Path()
	}
	return opts
}

const acceleratorName = "aria2c"

func (p *Pipeline) hasAccelerator() bool {
	look := p.lookPath
	if look == nil {
		look = exec.LookPath
	}
	_, err := look(acceleratorName)
	return err == nil
}

func (p *Pipeline) skip(ctx context.Context, out Outcome, subject string, st catalog.Status, reason string) (Outcome, error) {
	out.Result, out.Reason = ResultSkipped, reason
	p.Status.Skip(subject, reason)
	p.logger().Info("episode skipped", "url", out.URL, "reason", reason)
	p.record(ctx, out, st)
	return out, nil
}

func (p *Pipeline) fail(ctx context.Context, out Outcome, subject string, err error) (Outcome, error) {
	out.Result, out.Reason = ResultFailed, err.Error()
	p.Status.Fail(subject, err)

	switch {
	case errors.Is(err, resolver.ErrUnresolved):
		logging.Critical(ctx, p.logger(), "episode metadata unresolvable", "url", out.URL)
	case IsEpisodeFatal(err):
		logging.Critical(ctx, p.logger(), "extraction failed", "url", out.URL, "error", err)
	default:
		p.logger().Error("episode failed", "url", out.URL, "error", err)
	}

	st := catalog.StatusFailed
	if errors.Is(err, ErrIncomplete) {
		st = catalog.StatusIncomplete
	}
	p.record(ctx, out, st)
	return out, err
}

func (p *Pipeline) record(ctx context.Context, out Outcome, st catalog.Status) {
	if p.Catalog == nil || out.Record == nil {
		return
	}
	e := catalog.Entry{Record: *out.Record, Source: out.Source, Status: st}
	if out.Upload != nil {
		e.FilesOK, e.FilesTotal = out.Upload.OK, out.Upload.Total
	}
	if err := p.Catalog.Record(ctx, e); err != nil {
		p.logger().Warn("catalog update failed", "id", out.Record.NumericID, "error", err)
	}
}

// BatchSummary counts outcomes of a batch.
type BatchSummary struct {
	Done    int
	Skipped int
	Failed  int
}

// RunBatch processes urls one at a time in order. Episode failures are
// counted and never stop the batch; only cancellation does.
func (p *Pipeline) RunBatch(ctx context.Context, urls []string) (BatchSummary, error) {
	started := time.Now()
	var sum BatchSummary
	for i, url := range urls {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		p.logger().Info("processing episode", "index", i+1, "total", len(urls), "url", url)

		out, _ := p.Process(ctx, url)
		switch out.Result {
		case ResultDone:
			sum.Done++
		case ResultSkipped:
			sum.Skipped++
		default:
			sum.Failed++
		}
	}
	p.Status.Summary(sum.Done, sum.Skipped, sum.Failed, started)
	return sum, nil
}
