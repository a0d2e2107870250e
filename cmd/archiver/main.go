package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"thirdcoast.systems/vodarchive/internal/config"
	"thirdcoast.systems/vodarchive/internal/logging"
	"thirdcoast.systems/vodarchive/internal/orchestrator"
	"thirdcoast.systems/vodarchive/internal/resolver"
)

var rootCmd = &cobra.Command{
	Use:   "archiver <url | series-url | list-file>",
	Short: "Download Rooster Teeth episodes and optionally archive them to archive.org",
	Long: `archiver resolves episode metadata through yt-dlp, the platform API and the
community mirror, downloads each episode into a mode-specific layout and, in
archive-upload mode, uploads the result to archive.org.

The argument is a single watch URL, a series URL (optionally with ?season=N)
or a text file with one URL per line. Every flag can also be set through a
VODARCHIVE_* environment variable or a config file.`,
	Args:              cobra.ExactArgs(1),
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runArchive,
}

var (
	conf   *config.Config
	logger *slog.Logger
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (yaml, json or toml)")
	pf.String("log-level", "", "debug, info, warn, error or critical")
	pf.String("log-format", "", "text or json")
	pf.String("log-dir", "", "directory for the dedup and failed-upload logs")
	pf.String("archive-access-key", "", "archive.org IAS3 access key")
	pf.String("archive-secret-key", "", "archive.org IAS3 secret key")

	f := rootCmd.Flags()
	f.String("mode", "", "show, archive-upload or archivist")
	f.String("email", "", "platform account email")
	f.String("password", "", "platform account password")
	f.String("download-dir", "", "root of the show and archivist trees")
	f.String("staging-dir", "", "root of the archive-upload staging tree")
	f.Int("concurrent-fragments", 0, "fragments fetched in parallel")
	f.Int("retries", 0, "download retries")
	f.Int("fragment-retries", 0, "per-fragment retries")
	f.String("resolution", "", "maximum resolution: 360p, 480p, 540p, 720p, 1080p or 4k")
	f.Bool("use-accelerator", false, "hand downloads to aria2c when it is installed")
	f.Bool("fast-check", false, "skip slugs already in the downloaded log without any network call")
	f.Bool("keep-after-upload", false, "keep local files after a successful upload")
	f.Bool("ignore-existing", false, "upload even when the archive.org item already exists")
	f.String("archive-collection", "", "archive.org collection for new items")
	f.String("ytdlp-path", "", "yt-dlp executable")
	f.String("reference-tables-path", "", "JSON overlay for the show and channel name tables; the built-in show table is empty, so the rebrand rule needs an overlay that names its show")
	f.String("database-dsn", "", "PostgreSQL DSN for the optional episode catalog")

	rootCmd.AddCommand(verifyCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if err := config.BindFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	c, err := config.LoadConfig(cmd.Context())
	if err != nil {
		return err
	}
	l, err := logging.Setup(logging.Options{Level: c.LogLevel, Format: c.LogFormat})
	if err != nil {
		return err
	}
	conf, logger = c, l
	logger.Debug("configuration loaded", "config", conf)
	return nil
}

func runArchive(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	d, err := wire(ctx, conf, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	urls, single, err := collectURLs(ctx, args[0], d.Series)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		logger.Warn("nothing to process", "input", args[0])
		return nil
	}
	logger.Info("starting run", "mode", conf.Mode, "episodes", len(urls), "base_dir", conf.BaseDir())

	if single {
		_, err := d.Pipeline.Process(ctx, urls[0])
		if orchestrator.IsEpisodeFatal(err) || errors.Is(err, resolver.ErrUnresolved) {
			return err
		}
		return nil
	}

	_, err = d.Pipeline.RunBatch(ctx, urls)
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Warn("interrupted")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
