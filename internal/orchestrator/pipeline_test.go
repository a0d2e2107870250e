package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"thirdcoast.systems/vodarchive/internal/archiveorg"
	"thirdcoast.systems/vodarchive/internal/catalog"
	"thirdcoast.systems/vodarchive/internal/dedup"
	"thirdcoast.systems/vodarchive/internal/episode"
	"thirdcoast.systems/vodarchive/internal/httpx"
	"thirdcoast.systems/vodarchive/internal/naming"
	"thirdcoast.systems/vodarchive/internal/resolver"
	"thirdcoast.systems/vodarchive/internal/status"
	"thirdcoast.systems/vodarchive/pkg/ytdlp"
)

const epURL = "https://example.com/watch/show-2020-episode-one"

type fakeResolver struct {
	records map[string]episode.Record
	err     error
	calls   int
}

func (f *fakeResolver) Resolve(ctx context.Context, url string) (resolver.Result, error) {
	f.calls++
	if f.err != nil {
		return resolver.Result{}, f.err
	}
	rec, ok := f.records[url]
	if !ok {
		return resolver.Result{}, fmt.Errorf("%w: %s", resolver.ErrUnresolved, url)
	}
	return resolver.Result{Record: rec, Source: "platform"}, nil
}

type fakeExtractor struct {
	calls []ytdlp.FetchOptions
	err   error
	exts  []string
}

func (f *fakeExtractor) Fetch(ctx context.Context, url string, opts ytdlp.FetchOptions) error {
	f.calls = append(f.calls, opts)
	if f.err != nil {
		return f.err
	}
	exts := f.exts
	if exts == nil {
		exts = []string{"mp4", "info.json"}
	}
	base := strings.TrimSuffix(opts.OutputTemplate, ".%(ext)s")
	for _, ext := range exts {
		if err := os.WriteFile(base+"."+ext, []byte("data-"+ext), 0o644); err != nil {
			return err
		}
	}
	return nil
}

type fakeThumbs struct {
	calls []string
	fail  map[string]bool
}

func (f *fakeThumbs) Fetch(ctx context.Context, url, dest string) error {
	f.calls = append(f.calls, url)
	if f.fail[url] {
		return &httpx.StatusError{URL: url, StatusCode: http.StatusNotFound}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("jpg"), 0o644)
}

type fakeArchive struct {
	exists      bool
	existsErr   error
	failNames   map[string]bool
	uploaded    []string
	modified    int
	existsCalls int
}

func (f *fakeArchive) ItemExists(ctx context.Context, id string) (bool, error) {
	f.existsCalls++
	return f.exists, f.existsErr
}

func (f *fakeArchive) Upload(ctx context.Context, id string, files []string, meta archiveorg.Metadata) []archiveorg.FileResult {
	var out []archiveorg.FileResult
	for _, p := range files {
		name := filepath.Base(p)
		f.uploaded = append(f.uploaded, name)
		r := archiveorg.FileResult{Path: p, Name: name, StatusCode: http.StatusOK}
		if f.failNames[filepath.Ext(name)] {
			r.StatusCode = http.StatusInternalServerError
			r.Err = errors.New("upload failed")
		}
		out = append(out, r)
	}
	return out
}

func (f *fakeArchive) ModifyMetadata(ctx context.Context, id string, meta archiveorg.Metadata) error {
	f.modified++
	return nil
}

type fakeCatalog struct {
	entries []catalog.Entry
}

func (f *fakeCatalog) Record(ctx context.Context, e catalog.Entry) error {
	f.entries = append(f.entries, e)
	return nil
}

type harness struct {
	p        *Pipeline
	res      *fakeResolver
	ext      *fakeExtractor
	thumbs   *fakeThumbs
	archive  *fakeArchive
	cat      *fakeCatalog
	out      *bytes.Buffer
	logDir   string
	baseDir  string
	regular  episode.Record
	bonusRec episode.Record
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	root := t.TempDir()
	logDir := filepath.Join(root, "logs")

	regular, err := episode.New(episode.Fields{
		ID:            "1234",
		Title:         "Episode One",
		ShowTitle:     "Inside Gaming",
		ChannelTitle:  "Funhaus",
		AirDate:       "2020-01-02",
		SeasonNumber:  episode.IntPtr(2),
		EpisodeNumber: episode.IntPtr(5),
		Slug:          "show-2020-episode-one",
		ThumbnailURL:  "https://img/primary.jpg",
		AlternateURL:  "https://img/alternate.jpg",
	})
	require.NoError(t, err)
	bonus, err := episode.New(episode.Fields{ID: "55", Title: "Extra", Kind: episode.Bonus, Slug: "extra"})
	require.NoError(t, err)

	slugs, err := dedup.OpenSlugLog(filepath.Join(logDir, dedup.DownloadedLogName))
	require.NoError(t, err)
	alog, err := dedup.OpenArchiveLog(filepath.Join(logDir, dedup.ArchiveLogName))
	require.NoError(t, err)
	failed, err := dedup.OpenFailedUploadLog(filepath.Join(logDir, dedup.FailedUploadLogName))
	require.NoError(t, err)

	h := &harness{
		res: &fakeResolver{records: map[string]episode.Record{
			epURL:                             regular,
			"https://example.com/watch/extra": bonus,
		}},
		ext:      &fakeExtractor{},
		thumbs:   &fakeThumbs{},
		archive:  &fakeArchive{},
		cat:      &fakeCatalog{},
		out:      &bytes.Buffer{},
		logDir:   logDir,
		baseDir:  filepath.Join(root, "Downloads"),
		regular:  regular,
		bonusRec: bonus,
	}
	opts.BaseDir = h.baseDir
	opts.ExtractorName = "roosterteeth"
	h.p = &Pipeline{
		Resolver:   h.res,
		Extractor:  h.ext,
		Thumbnails: h.thumbs,
		Archive:    h.archive,
		Slugs:      slugs,
		ArchiveLog: alog,
		Failed:     failed,
		Catalog:    h.cat,
		Status:     status.New(h.out),
		Options:    opts,
		lookPath:   func(string) (string, error) { return "", errors.New("not found") },
	}
	return h
}

func TestProcess_FastCheckSkipsWithoutNetwork(t *testing.T) {
	h := newHarness(t, Options{FastCheck: true, Upload: true})
	require.NoError(t, h.p.Slugs.Append("show-2020-episode-one"))

	out, err := h.p.Process(context.Background(), epURL)
	require.NoError(t, err)
	require.Equal(t, ResultSkipped, out.Result)
	require.Zero(t, h.res.calls)
	require.Empty(t, h.ext.calls)
	require.Empty(t, h.thumbs.calls)
	require.Zero(t, h.archive.existsCalls)
	require.Contains(t, h.out.String(), "[skip] show-2020-episode-one: already downloaded")
}

func TestProcess_ShowModeDownload(t *testing.T) {
	h := newHarness(t, Options{Mode: naming.ModeShow, ConcurrentFragments: 8, Retries: 3, FragmentRetries: 4, Resolution: "720p"})

	out, err := h.p.Process(context.Background(), epURL)
	require.NoError(t, err)
	require.Equal(t, ResultDone, out.Result)
	require.Equal(t, "platform", out.Source)

	require.Len(t, h.ext.calls, 1)
	opts := h.ext.calls[0]
	require.Equal(t, naming.OutputTemplate(h.baseDir, h.regular, naming.ModeShow), opts.OutputTemplate)
	require.Equal(t, filepath.Join(h.logDir, dedup.ArchiveLogName), opts.ArchiveLog)
	require.Equal(t, 8, opts.ConcurrentFragments)
	require.Empty(t, opts.Accelerator)
	require.Equal(t, "720p", opts.Resolution)
	require.False(t, opts.WriteThumbnail)

	require.Equal(t, []string{"https://img/primary.jpg"}, h.thumbs.calls)
	require.True(t, h.p.Slugs.Has("show-2020-episode-one"))
	require.Len(t, h.cat.entries, 1)
	require.Equal(t, catalog.StatusDownloaded, h.cat.entries[0].Status)
	require.Contains(t, h.out.String(), "[done] show-2020-episode-one:")

	dir := naming.ContainerPath(h.baseDir, h.regular, naming.ModeShow)
	require.FileExists(t, filepath.Join(dir, naming.FileName(h.regular, naming.ModeShow)+".mp4"))
	require.FileExists(t, naming.ThumbnailPath(h.baseDir, h.regular, naming.ModeShow))
}

func TestProcess_SecondRunDoesNotRefetchThumbnail(t *testing.T) {
	h := newHarness(t, Options{})

	_, err := h.p.Process(context.Background(), epURL)
	require.NoError(t, err)
	require.Len(t, h.thumbs.calls, 1)

	// A later run whose archive log never recorded the episode.
	h.p.ArchiveLog, err = dedup.OpenArchiveLog(filepath.Join(h.logDir, dedup.ArchiveLogName))
	require.NoError(t, err)
	out, err := h.p.Process(context.Background(), epURL)
	require.NoError(t, err)
	require.Equal(t, ResultDone, out.Result)
	require.Len(t, h.ext.calls, 2)
	require.Len(t, h.thumbs.calls, 1)
}

func TestProcess_RepeatedURLInOneRunFetchesOnce(t *testing.T) {
	h := newHarness(t, Options{})

	sum, err := h.p.RunBatch(context.Background(), []string{epURL, epURL})
	require.NoError(t, err)
	require.Equal(t, BatchSummary{Done: 1, Skipped: 1}, sum)
	require.Len(t, h.ext.calls, 1)
	require.True(t, h.p.ArchiveLog.Contains(h.regular))
	require.NoFileExists(t, filepath.Join(h.logDir, dedup.ArchiveLogName))
}

func TestAcquireThumbnail_Fallbacks(t *testing.T) {
	h := newHarness(t, Options{})
	h.thumbs.fail = map[string]bool{"https://img/primary.jpg": true}

	require.True(t, h.p.AcquireThumbnail(context.Background(), h.regular))
	require.Equal(t, []string{"https://img/primary.jpg", "https://img/alternate.jpg"}, h.thumbs.calls)

	h2 := newHarness(t, Options{})
	h2.thumbs.fail = map[string]bool{"https://img/primary.jpg": true, "https://img/alternate.jpg": true}
	require.False(t, h2.p.AcquireThumbnail(context.Background(), h2.regular))

	_, err := h2.p.Process(context.Background(), epURL)
	require.NoError(t, err)
	require.True(t, h2.ext.calls[0].WriteThumbnail)
}

func TestProcess_NoCoverImageIsNotMarkedDownloaded(t *testing.T) {
	h := newHarness(t, Options{})
	h.thumbs.fail = map[string]bool{"https://img/primary.jpg": true, "https://img/alternate.jpg": true}
	h.ext.exts = []string{"mp4"}

	out, err := h.p.Process(context.Background(), epURL)
	require.NoError(t, err)
	require.Equal(t, ResultDone, out.Result)
	require.False(t, h.p.Slugs.Has("show-2020-episode-one"))

	// The extractor's own thumbnail is enough.
	h2 := newHarness(t, Options{})
	h2.thumbs.fail = h.thumbs.fail
	h2.ext.exts = []string{"mp4", "webp"}

	_, err = h2.p.Process(context.Background(), epURL)
	require.NoError(t, err)
	require.True(t, h2.p.Slugs.Has("show-2020-episode-one"))
}

func TestProcess_BonusUsesSuffixedArchiveLine(t *testing.T) {
	h := newHarness(t, Options{Mode: naming.ModeArchivist})

	out, err := h.p.Process(context.Background(), "https://example.com/watch/extra")
	require.NoError(t, err)
	require.Equal(t, ResultDone, out.Result)
	require.Empty(t, h.ext.calls[0].ArchiveLog)
	require.True(t, h.p.ArchiveLog.Contains(h.bonusRec))

	b, err := os.ReadFile(filepath.Join(h.logDir, dedup.ArchiveLogName))
	require.NoError(t, err)
	require.Equal(t, "roosterteeth 55-bonus\n", string(b))

	again, err := h.p.Process(context.Background(), "https://example.com/watch/extra")
	require.NoError(t, err)
	require.Equal(t, ResultSkipped, again.Result)
	require.Len(t, h.ext.calls, 1)
}

func TestProcess_ExtractionFailureDoesNotStopBatch(t *testing.T) {
	h := newHarness(t, Options{})
	h.ext.err = fmt.Errorf("%w: %w", ytdlp.ErrNoContent, errors.New("exit status 1"))

	out, err := h.p.Process(context.Background(), epURL)
	require.Error(t, err)
	require.True(t, IsEpisodeFatal(err))
	require.Equal(t, ResultFailed, out.Result)
	require.False(t, h.p.Slugs.Has("show-2020-episode-one"))

	sum, err := h.p.RunBatch(context.Background(), []string{epURL, "https://example.com/watch/unknown", "https://example.com/watch/extra"})
	require.NoError(t, err)
	require.Equal(t, BatchSummary{Failed: 3}, sum)
	require.Equal(t, 3, h.res.calls-1)
}

func TestProcess_Unresolved(t *testing.T) {
	h := newHarness(t, Options{})

	out, err := h.p.Process(context.Background(), "https://example.com/watch/unknown")
	require.ErrorIs(t, err, resolver.ErrUnresolved)
	require.False(t, IsEpisodeFatal(err))
	require.Equal(t, ResultFailed, out.Result)
	require.Empty(t, h.ext.calls)
	require.Empty(t, h.cat.entries)
}

func TestProcess_ResolverFatalIsEpisodeFatal(t *testing.T) {
	h := newHarness(t, Options{})
	h.res.err = fmt.Errorf("%w: %w", resolver.ErrFatal, ytdlp.ErrAuth)

	_, err := h.p.Process(context.Background(), epURL)
	require.True(t, IsEpisodeFatal(err))
}

func TestProcess_IncompleteDownload(t *testing.T) {
	h := newHarness(t, Options{})
	h.ext.exts = []string{"mp4", "mp4.part-Frag3"}

	out, err := h.p.Process(context.Background(), epURL)
	require.ErrorIs(t, err, ErrIncomplete)
	require.Equal(t, ResultFailed, out.Result)
	require.False(t, h.p.Slugs.Has("show-2020-episode-one"))
	require.Equal(t, catalog.StatusIncomplete, h.cat.entries[0].Status)
}

func TestProcess_UploadAndDelete(t *testing.T) {
	h := newHarness(t, Options{Mode: naming.ModeArchiveTemp, Upload: true})

	out, err := h.p.Process(context.Background(), epURL)
	require.NoError(t, err)
	require.Equal(t, ResultDone, out.Result)
	require.NotNil(t, out.Upload)
	require.Equal(t, 3, out.Upload.Total)
	require.Equal(t, 3, out.Upload.OK)
	require.True(t, out.Upload.Deleted)
	require.False(t, out.Upload.Partial())
	require.Equal(t, "archive-1234", out.Upload.Identifier)

	require.True(t, strings.HasSuffix(h.archive.uploaded[0], ".mp4"))
	require.NoDirExists(t, naming.ContainerPath(h.baseDir, h.regular, naming.ModeArchiveTemp))
	require.Zero(t, h.archive.modified)
	require.Equal(t, catalog.StatusUploaded, h.cat.entries[0].Status)
}

func TestProcess_UploadKeepFlag(t *testing.T) {
	h := newHarness(t, Options{Mode: naming.ModeArchiveTemp, Upload: true, KeepAfterUpload: true})

	out, err := h.p.Process(context.Background(), epURL)
	require.NoError(t, err)
	require.False(t, out.Upload.Deleted)
	require.DirExists(t, naming.ContainerPath(h.baseDir, h.regular, naming.ModeArchiveTemp))
}

func TestProcess_PartialUploadCountsAsSuccess(t *testing.T) {
	h := newHarness(t, Options{Mode: naming.ModeArchiveTemp, Upload: true})
	h.archive.failNames = map[string]bool{".jpg": true}

	out, err := h.p.Process(context.Background(), epURL)
	require.NoError(t, err)
	require.True(t, out.Upload.Partial())
	require.Equal(t, 2, out.Upload.OK)
	require.True(t, out.Upload.Deleted)
	require.Equal(t, catalog.StatusPartial, h.cat.entries[0].Status)
	require.Contains(t, h.out.String(), "[partial] show-2020-episode-one: 2 of 3 files to archive-1234")
}

func TestProcess_FailedUploadKeepsFiles(t *testing.T) {
	h := newHarness(t, Options{Mode: naming.ModeArchiveTemp, Upload: true})
	h.archive.failNames = map[string]bool{".mp4": true, ".jpg": true, ".json": true}

	out, err := h.p.Process(context.Background(), epURL)
	require.ErrorIs(t, err, ErrUploadFailed)
	require.Equal(t, ResultFailed, out.Result)
	require.Zero(t, out.Upload.OK)
	require.DirExists(t, naming.ContainerPath(h.baseDir, h.regular, naming.ModeArchiveTemp))
	require.False(t, h.p.Slugs.Has("show-2020-episode-one"))

	b, err := os.ReadFile(filepath.Join(h.logDir, dedup.FailedUploadLogName))
	require.NoError(t, err)
	require.Equal(t, epURL+"\n", string(b))
}

func TestProcess_VideoNotUploadedIsFailure(t *testing.T) {
	h := newHarness(t, Options{Mode: naming.ModeArchiveTemp, Upload: true})
	h.archive.failNames = map[string]bool{".mp4": true}

	_, err := h.p.Process(context.Background(), epURL)
	require.ErrorIs(t, err, ErrUploadFailed)
	require.DirExists(t, naming.ContainerPath(h.baseDir, h.regular, naming.ModeArchiveTemp))
}

func TestProcess_ExistingRemoteItem(t *testing.T) {
	h := newHarness(t, Options{Mode: naming.ModeArchiveTemp, Upload: true})
	h.archive.exists = true

	out, err := h.p.Process(context.Background(), epURL)
	require.NoError(t, err)
	require.Equal(t, ResultSkipped, out.Result)
	require.Empty(t, h.ext.calls)
	require.Empty(t, h.thumbs.calls)

	h2 := newHarness(t, Options{Mode: naming.ModeArchiveTemp, Upload: true, IgnoreExisting: true})
	h2.archive.exists = true
	out, err = h2.p.Process(context.Background(), epURL)
	require.NoError(t, err)
	require.Equal(t, ResultDone, out.Result)
	require.Equal(t, 1, h2.archive.modified)
}

func TestProcess_RemoteCheckErrorIsNotAbsent(t *testing.T) {
	h := newHarness(t, Options{Mode: naming.ModeArchiveTemp, Upload: true})
	h.archive.existsErr = errors.New("timeout")

	_, err := h.p.Process(context.Background(), epURL)
	var rce *dedup.RemoteCheckError
	require.ErrorAs(t, err, &rce)
	require.Empty(t, h.ext.calls)
}

func TestProcess_ResumesUploadFromArchiveLog(t *testing.T) {
	h := newHarness(t, Options{Mode: naming.ModeArchiveTemp, Upload: true})
	h.archive.failNames = map[string]bool{".mp4": true}
	_, err := h.p.Process(context.Background(), "https://example.com/watch/extra")
	require.ErrorIs(t, err, ErrUploadFailed)
	require.True(t, h.p.ArchiveLog.Contains(h.bonusRec))

	h.archive.failNames = nil
	out, err := h.p.Process(context.Background(), "https://example.com/watch/extra")
	require.NoError(t, err)
	require.Equal(t, ResultDone, out.Result)
	require.Len(t, h.ext.calls, 1)
	require.Equal(t, 2, h.archive.existsCalls)
}

func TestProcess_KeptBundleIsNotReuploadedToExistingItem(t *testing.T) {
	h := newHarness(t, Options{Mode: naming.ModeArchiveTemp, Upload: true, KeepAfterUpload: true})
	const extraURL = "https://example.com/watch/extra"

	out, err := h.p.Process(context.Background(), extraURL)
	require.NoError(t, err)
	require.Equal(t, ResultDone, out.Result)
	uploaded := len(h.archive.uploaded)
	require.Equal(t, 2, uploaded)

	h.archive.exists = true
	out, err = h.p.Process(context.Background(), extraURL)
	require.NoError(t, err)
	require.Equal(t, ResultSkipped, out.Result)
	require.Contains(t, out.Reason, "archive-55-bonus")
	require.Equal(t, 2, h.archive.existsCalls)
	require.Len(t, h.archive.uploaded, uploaded)
	require.Zero(t, h.archive.modified)

	h.p.Options.IgnoreExisting = true
	out, err = h.p.Process(context.Background(), extraURL)
	require.NoError(t, err)
	require.Equal(t, ResultDone, out.Result)
	require.Len(t, h.archive.uploaded, 2*uploaded)
	require.Equal(t, 1, h.archive.modified)
	require.Len(t, h.ext.calls, 1)
}

func TestProcess_ResumesFailedUploadIntoExistingItem(t *testing.T) {
	h := newHarness(t, Options{Mode: naming.ModeArchiveTemp, Upload: true})
	const extraURL = "https://example.com/watch/extra"

	h.archive.failNames = map[string]bool{".mp4": true}
	_, err := h.p.Process(context.Background(), extraURL)
	require.ErrorIs(t, err, ErrUploadFailed)

	// The thumbnail landed, so the item now exists.
	h.archive.failNames = nil
	h.archive.exists = true
	out, err := h.p.Process(context.Background(), extraURL)
	require.NoError(t, err)
	require.Equal(t, ResultDone, out.Result)
	require.True(t, out.Upload.VideoOK)
	require.Equal(t, 1, h.archive.modified)
	require.Len(t, h.ext.calls, 1)
}

func TestFetchOptions_AcceleratorDetection(t *testing.T) {
	h := newHarness(t, Options{ConcurrentFragments: 16, UseAccelerator: true})
	require.Empty(t, h.p.FetchOptions(h.regular, false).Accelerator)

	h.p.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	require.Equal(t, "aria2c", h.p.FetchOptions(h.regular, false).Accelerator)

	h.p.Options.UseAccelerator = false
	require.Empty(t, h.p.FetchOptions(h.regular, false).Accelerator)
}

func TestRunBatch_StopsOnCancel(t *testing.T) {
	h := newHarness(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.p.RunBatch(ctx, []string{epURL})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, h.res.calls)
}

func TestArchiveMetadata(t *testing.T) {
	h := newHarness(t, Options{})
	rec := h.regular
	rec.GenreTags = []string{"Comedy", "funhaus"}
	rec.Description = "First line\nhttps://example.com"
	rec.IsEarlyAccess = true

	meta := ArchiveMetadata(rec, "opensource_movies", "https://roosterteeth.com")
	require.Equal(t, "movies", meta.MediaType)
	require.Equal(t, "Inside Gaming - S02E05 - Episode One", meta.Title)
	require.Equal(t, "2020-01-02", meta.Date)
	require.Equal(t, "Funhaus", meta.Creator)
	require.Equal(t, "https://roosterteeth.com/watch/show-2020-episode-one", meta.OriginalURL)
	require.Equal(t, []string{"Inside Gaming", "Funhaus", "Comedy"}, meta.Subjects)
	require.Equal(t, "true", meta.Extra["first_exclusive"])
	require.Contains(t, meta.Description, "<br")
}

func TestHTTPThumbnails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok.jpg" {
			w.Write([]byte("jpeg-bytes"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	th := &HTTPThumbnails{HTTP: httpx.New()}
	dest := filepath.Join(t.TempDir(), "a", "b", "thumb.jpg")

	require.Error(t, th.Fetch(context.Background(), srv.URL+"/missing.jpg", dest))
	require.NoFileExists(t, dest)

	require.NoError(t, th.Fetch(context.Background(), srv.URL+"/ok.jpg", dest))
	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "jpeg-bytes", string(b))
	require.NoFileExists(t, dest+".part")
}
