package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"

	"thirdcoast.systems/vodarchive/internal/application"
	"thirdcoast.systems/vodarchive/internal/archiveorg"
	"thirdcoast.systems/vodarchive/internal/catalog"
	"thirdcoast.systems/vodarchive/internal/config"
	"thirdcoast.systems/vodarchive/internal/dedup"
	"thirdcoast.systems/vodarchive/internal/httpx"
	"thirdcoast.systems/vodarchive/internal/naming"
	"thirdcoast.systems/vodarchive/internal/orchestrator"
	"thirdcoast.systems/vodarchive/internal/reftable"
	"thirdcoast.systems/vodarchive/internal/resolver"
	"thirdcoast.systems/vodarchive/internal/rooster"
	"thirdcoast.systems/vodarchive/internal/series"
	"thirdcoast.systems/vodarchive/internal/status"
	"thirdcoast.systems/vodarchive/pkg/ytdlp"
)

type deps struct {
	Pipeline *orchestrator.Pipeline
	Series   *series.Expander
	Archive  *archiveorg.Client

	pool *pgxpool.Pool
}

func (d *deps) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
}

func pipelineMode(mode string) naming.Mode {
	switch mode {
	case config.ModeArchiveUpload:
		return naming.ModeArchiveTemp
	case config.ModeArchivist:
		return naming.ModeArchivist
	default:
		return naming.ModeShow
	}
}

func newArchiveClient(hc *httpx.Client, conf *config.Config, logger *slog.Logger) *archiveorg.Client {
	ac := archiveorg.New(hc, conf.ArchiveAccessKey, conf.ArchiveSecretKey)
	ac.Logger = logger
	return ac
}

func wire(ctx context.Context, conf *config.Config, logger *slog.Logger) (*deps, error) {
	if err := os.MkdirAll(conf.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	tables, err := reftable.Load(conf.ReferenceTablesPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("reference tables loaded", "channels", tables.Channels.Len(), "shows", tables.Shows.Len())

	hc := httpx.New()
	rt := rooster.NewClient(hc, conf.PlatformBaseURL, conf.MirrorBaseURL)

	yt := ytdlp.New()
	yt.Binary = conf.YtdlpPath
	yt.Username = conf.Email
	yt.Password = conf.Password
	yt.Logger = logger
	yt.OnLine = func(stream, line string) {
		logger.Debug("yt-dlp", "stream", stream, "line", line)
	}
	if v, err := yt.Version(ctx); err != nil {
		logger.Warn("yt-dlp is not runnable", "binary", conf.YtdlpPath, "error", err)
	} else {
		logger.Info("using yt-dlp", "version", v)
	}

	norm := resolver.Normalizer{
		Tables: tables,
		Rebrand: resolver.RebrandRule{
			ShowTitle:    conf.RebrandShowTitle,
			ChannelTitle: conf.RebrandChannelTitle,
			Cutoff:       conf.Cutoff(),
		},
	}
	if !norm.RebrandReachable() {
		logger.Warn("no show table entry is titled as the rebrand show; the rebrand rule is inactive without --reference-tables-path",
			"show_title", conf.RebrandShowTitle)
	}
	chain := resolver.NewChain(logger,
		&resolver.ExtractorSource{Prober: yt, Normalize: norm},
		&resolver.PlatformSource{API: rt, Normalize: norm, CDNBase: conf.ThumbnailCDNBaseURL, Logger: logger},
		&resolver.MirrorSource{API: rt, Normalize: norm, CDNBase: conf.ThumbnailCDNBaseURL, Logger: logger},
	)

	slugs, err := dedup.OpenSlugLog(filepath.Join(conf.LogDir, dedup.DownloadedLogName))
	if err != nil {
		return nil, fmt.Errorf("open downloaded log: %w", err)
	}
	alog, err := dedup.OpenArchiveLog(filepath.Join(conf.LogDir, dedup.ArchiveLogName))
	if err != nil {
		return nil, fmt.Errorf("open archive log: %w", err)
	}
	failed, err := dedup.OpenFailedUploadLog(filepath.Join(conf.LogDir, dedup.FailedUploadLogName))
	if err != nil {
		return nil, fmt.Errorf("open failed-upload log: %w", err)
	}
	logger.Info("dedup logs loaded", "downloaded", slugs.Len())

	d := &deps{
		Archive: newArchiveClient(hc, conf, logger),
		Series:  &series.Expander{API: rt, SiteBase: conf.SiteBaseURL, Logger: logger},
	}

	var rec catalog.Recorder = catalog.Nop{}
	if conf.DatabaseDSN != "" {
		pool, err := application.OpenDBPoolWithRetry(ctx, *conf)
		if err != nil {
			return nil, err
		}
		d.pool = pool
		rec = catalog.NewStore(pool)
	}

	upload := conf.Mode == config.ModeArchiveUpload
	d.Pipeline = &orchestrator.Pipeline{
		Resolver:   chain,
		Extractor:  yt,
		Thumbnails: &orchestrator.HTTPThumbnails{HTTP: hc},
		Archive:    d.Archive,
		Slugs:      slugs,
		ArchiveLog: alog,
		Failed:     failed,
		Catalog:    rec,
		Status:     status.New(os.Stdout),
		Logger:     logger,
		Options: orchestrator.Options{
			Mode:                pipelineMode(conf.Mode),
			BaseDir:             conf.BaseDir(),
			Upload:              upload,
			FastCheck:           conf.FastCheck,
			KeepAfterUpload:     conf.KeepAfterUpload,
			IgnoreExisting:      conf.IgnoreExisting,
			ConcurrentFragments: conf.ConcurrentFragments,
			Retries:             conf.Retries,
			FragmentRetries:     conf.FragmentRetries,
			Resolution:          conf.Resolution,
			UseAccelerator:      conf.UseAccelerator,
			ExtractorName:       "roosterteeth",
			SiteBase:            conf.SiteBaseURL,
			Collection:          conf.ArchiveCollection,
		},
	}
	return d, nil
}
