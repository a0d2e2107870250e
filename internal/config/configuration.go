package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. VODARCHIVE_MODE.
const EnvPrefix = "VODARCHIVE"

// ConfigFileKey names the optional config file path.
const ConfigFileKey = "CONFIG"

// Modes accepted by Config.Mode.
const (
	ModeShow          = "show"
	ModeArchiveUpload = "archive-upload"
	ModeArchivist     = "archivist"
)

type Config struct {
	// Platform credentials
	Email    string `mapstructure:"EMAIL"`
	Password string `mapstructure:"PASSWORD"`

	// archive.org IAS3 keys
	ArchiveAccessKey  string `mapstructure:"ARCHIVE_ACCESS_KEY" validate:"required_if=Mode archive-upload"`
	ArchiveSecretKey  string `mapstructure:"ARCHIVE_SECRET_KEY" validate:"required_if=Mode archive-upload"`
	ArchiveCollection string `mapstructure:"ARCHIVE_COLLECTION"`

	// Download tuning
	ConcurrentFragments int    `mapstructure:"CONCURRENT_FRAGMENTS" validate:"min=1"`
	FragmentRetries     int    `mapstructure:"FRAGMENT_RETRIES" validate:"min=0"`
	Retries             int    `mapstructure:"RETRIES" validate:"min=0"`
	Resolution          string `mapstructure:"RESOLUTION" validate:"omitempty,oneof=360p 480p 540p 720p 1080p 4k"`
	UseAccelerator      bool   `mapstructure:"USE_ACCELERATOR"`
	YtdlpPath           string `mapstructure:"YTDLP_PATH"`

	// Behaviour
	Mode            string `mapstructure:"MODE" validate:"oneof=show archive-upload archivist"`
	FastCheck       bool   `mapstructure:"FAST_CHECK"`
	KeepAfterUpload bool   `mapstructure:"KEEP_AFTER_UPLOAD"`
	IgnoreExisting  bool   `mapstructure:"IGNORE_EXISTING"`

	// Layout
	DownloadDir string `mapstructure:"DOWNLOAD_DIR" validate:"required"`
	StagingDir  string `mapstructure:"STAGING_DIR" validate:"required"`
	LogDir      string `mapstructure:"LOG_DIR" validate:"required"`

	// Logging
	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"oneof=debug info warn error critical"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"oneof=text json"`

	// Metadata sources
	ReferenceTablesPath string `mapstructure:"REFERENCE_TABLES_PATH"`
	PlatformBaseURL     string `mapstructure:"PLATFORM_BASE_URL" validate:"required,url"`
	MirrorBaseURL       string `mapstructure:"MIRROR_BASE_URL" validate:"required,url"`
	ThumbnailCDNBaseURL string `mapstructure:"THUMBNAIL_CDN_BASE_URL" validate:"required,url"`
	SiteBaseURL         string `mapstructure:"SITE_BASE_URL" validate:"required,url"`

	// Channel rebrand correction
	RebrandShowTitle    string `mapstructure:"REBRAND_SHOW_TITLE"`
	RebrandChannelTitle string `mapstructure:"REBRAND_CHANNEL_TITLE"`
	RebrandCutoff       string `mapstructure:"REBRAND_CUTOFF" validate:"omitempty,datetime=2006-01-02"`

	// Optional episode catalog
	DatabaseDSN     string `mapstructure:"DATABASE_DSN"`
	DatabaseRetries int    `mapstructure:"DATABASE_RETRIES"`
}

// LogValue keeps secrets out of structured logs.
func (c Config) LogValue() slog.Value {
	redact := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	return slog.GroupValue(
		slog.String("mode", c.Mode),
		slog.String("email", c.Email),
		slog.String("password", redact(c.Password)),
		slog.String("archive_access_key", redact(c.ArchiveAccessKey)),
		slog.String("archive_secret_key", redact(c.ArchiveSecretKey)),
		slog.Int("concurrent_fragments", c.ConcurrentFragments),
		slog.Int("retries", c.Retries),
		slog.Int("fragment_retries", c.FragmentRetries),
		slog.String("resolution", c.Resolution),
		slog.Bool("fast_check", c.FastCheck),
		slog.Bool("use_accelerator", c.UseAccelerator),
		slog.Bool("keep_after_upload", c.KeepAfterUpload),
		slog.Bool("ignore_existing", c.IgnoreExisting),
		slog.String("download_dir", c.DownloadDir),
		slog.String("staging_dir", c.StagingDir),
		slog.String("log_dir", c.LogDir),
		slog.Bool("catalog", c.DatabaseDSN != ""),
	)
}

// BaseDir is the root of the content tree for the configured mode.
func (c *Config) BaseDir() string {
	if c.Mode == ModeArchiveUpload {
		return c.StagingDir
	}
	return c.DownloadDir
}

// Cutoff parses RebrandCutoff. An empty value yields the zero time.
func (c *Config) Cutoff() time.Time {
	t, err := time.Parse(time.DateOnly, c.RebrandCutoff)
	if err != nil {
		return time.Time{}
	}
	return t
}

// use reflect to bind environment variables based on mapstructure tags
func bindEnv(c Config) {
	val := reflect.ValueOf(c)
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		if tag := typ.Field(i).Tag.Get("mapstructure"); tag != "" {
			viper.BindEnv(tag)
		}
	}
}

// BindFlags binds every flag in fs to the config key derived from its name,
// so --concurrent-fragments feeds CONCURRENT_FRAGMENTS. Flags win over
// environment variables, which win over the config file.
func BindFlags(fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		key := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		err = viper.BindPFlag(key, f)
	})
	return err
}

func setDefaults() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	viper.SetDefault("ARCHIVE_COLLECTION", "opensource_movies")
	viper.SetDefault("CONCURRENT_FRAGMENTS", 10)
	viper.SetDefault("FRAGMENT_RETRIES", 10)
	viper.SetDefault("RETRIES", 10)
	viper.SetDefault("YTDLP_PATH", "yt-dlp")
	viper.SetDefault("MODE", ModeShow)
	viper.SetDefault("DOWNLOAD_DIR", "Downloads")
	viper.SetDefault("STAGING_DIR", filepath.Join(home, ".vodarchive"))
	viper.SetDefault("LOG_DIR", "logs")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")
	viper.SetDefault("PLATFORM_BASE_URL", "https://svod-be.roosterteeth.com")
	viper.SetDefault("MIRROR_BASE_URL", "https://roosterteeth.fhm.workers.dev")
	viper.SetDefault("THUMBNAIL_CDN_BASE_URL", "https://cdn.ffaisal.com/thumbnail")
	viper.SetDefault("SITE_BASE_URL", "https://roosterteeth.com")
	viper.SetDefault("REBRAND_SHOW_TITLE", "Let's Play")
	viper.SetDefault("REBRAND_CHANNEL_TITLE", "Achievement Hunter")
	viper.SetDefault("REBRAND_CUTOFF", "2023-10-06")
	viper.SetDefault("DATABASE_RETRIES", 10)
}

func LoadConfig(ctx context.Context) (*Config, error) {
	viper.SetEnvPrefix(EnvPrefix)
	bindEnv(Config{})
	viper.BindEnv(ConfigFileKey)
	viper.AutomaticEnv()
	setDefaults()

	if path := viper.GetString(ConfigFileKey); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := Config{}
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	slog.DebugContext(ctx, "Loaded configuration", "config", cfg)
	return &cfg, nil
}
