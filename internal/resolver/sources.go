package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"thirdcoast.systems/vodarchive/internal/episode"
	"thirdcoast.systems/vodarchive/internal/httpx"
	"thirdcoast.systems/vodarchive/internal/rooster"
	"thirdcoast.systems/vodarchive/pkg/ytdlp"
)

// DefaultThumbnailCDNBaseURL hosts the mirror's thumbnail images.
const DefaultThumbnailCDNBaseURL = "https://cdn.ffaisal.com/thumbnail"

// IsFatal reports whether err must stop resolution of the episode.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// Prober is the extraction capability's metadata-only operation.
type Prober interface {
	Probe(ctx context.Context, url string, extraArgs ...string) (*ytdlp.Info, error)
}

// WatchAPI is the platform's watch endpoint.
type WatchAPI interface {
	Watch(ctx context.Context, slug string) (*rooster.WatchResponse, error)
}

// MirrorAPI is the mirror's episode lookup.
type MirrorAPI interface {
	MirrorEpisode(ctx context.Context, slug string) (*rooster.MirrorResponse, error)
}

// ExtractorSource resolves through yt-dlp.
type ExtractorSource struct {
	Prober    Prober
	Normalize Normalizer
}

func (s *ExtractorSource) Name() string { return "extractor" }

func (s *ExtractorSource) Resolve(ctx context.Context, watchURL string) (episode.Record, error) {
	info, err := s.Prober.Probe(ctx, watchURL)
	if err != nil {
		if errors.Is(err, ytdlp.ErrAuth) || errors.Is(err, ytdlp.ErrInvalidURL) {
			return episode.Record{}, fmt.Errorf("%w: %w", ErrFatal, err)
		}
		return episode.Record{}, fmt.Errorf("%w: probe: %w", ErrNoData, err)
	}
	if info.IsEmpty() {
		return episode.Record{}, ErrNoData
	}

	slug := strings.TrimSpace(info.DisplayID)
	if slug == "" {
		slug = SlugFromURL(watchURL)
	}
	title := info.Episode
	if strings.TrimSpace(title) == "" {
		title = info.Title
	}

	kind := episode.Regular
	if info.SeasonNumber == nil {
		kind = episode.Bonus
	}

	return s.Normalize.Finish(episode.Fields{
		ID:            info.ID,
		Title:         title,
		ShowID:        info.SeriesID,
		ShowTitle:     info.Series,
		ChannelID:     info.ChannelID,
		ChannelTitle:  info.Channel,
		AirDate:       info.Date(),
		SeasonNumber:  info.SeasonNumber,
		EpisodeNumber: info.EpisodeNumber,
		Kind:          kind,
		IsEarlyAccess: isMembersOnly(info.Availability),
		Description:   info.Description,
		GenreTags:     info.Categories,
		Slug:          slug,
		ThumbnailURL:  info.Thumbnail,
	})
}

func isMembersOnly(availability string) bool {
	switch availability {
	case "subscriber_only", "premium_only":
		return true
	}
	return false
}

// PlatformSource resolves through the platform's watch API.
type PlatformSource struct {
	API       WatchAPI
	Normalize Normalizer
	CDNBase   string
	Logger    *slog.Logger
}

func (s *PlatformSource) Name() string { return "platform" }

func (s *PlatformSource) Resolve(ctx context.Context, watchURL string) (episode.Record, error) {
	slug := SlugFromURL(watchURL)
	if slug == "" {
		return episode.Record{}, ErrNoData
	}

	resp, err := s.API.Watch(ctx, slug)
	if err != nil {
		return episode.Record{}, missFromHTTP(s.logger(), s.Name(), err)
	}
	if len(resp.Data) == 0 {
		return episode.Record{}, ErrNoData
	}

	item := resp.Data[0]
	primary, _ := item.ProfileImage()
	alternate := mirrorThumbnail(s.CDNBase, item)
	if alternate == primary {
		alternate = ""
	}
	return s.Normalize.Finish(fieldsFromItem(item, slug, primary, alternate))
}

func (s *PlatformSource) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// MirrorSource resolves through the community mirror.
type MirrorSource struct {
	API       MirrorAPI
	Normalize Normalizer
	CDNBase   string
	Logger    *slog.Logger
}

func (s *MirrorSource) Name() string { return "mirror" }

func (s *MirrorSource) Resolve(ctx context.Context, watchURL string) (episode.Record, error) {
	slug := SlugFromURL(watchURL)
	if slug == "" {
		return episode.Record{}, ErrNoData
	}

	resp, err := s.API.MirrorEpisode(ctx, slug)
	if err != nil {
		return episode.Record{}, missFromHTTP(s.logger(), s.Name(), err)
	}
	if len(resp.Documents) == 0 {
		return episode.Record{}, ErrNoData
	}

	item := resp.Documents[0]
	primary := mirrorThumbnail(s.CDNBase, item)
	alternate, _ := item.ProfileImage()
	if primary == "" {
		primary, alternate = alternate, ""
	}
	return s.Normalize.Finish(fieldsFromItem(item, slug, primary, alternate))
}

func (s *MirrorSource) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// fieldsFromItem maps the attribute object shared by the platform and the
// mirror.
func fieldsFromItem(item rooster.Item, slug, thumb, alternate string) episode.Fields {
	a := item.Attributes
	season := a.SeasonNumber.Ptr()

	kind := episode.Regular
	if item.IsBonus() || season == nil {
		kind = episode.Bonus
	}
	if s := strings.TrimSpace(a.Slug); s != "" {
		slug = s
	}
	title := a.Title
	if strings.TrimSpace(title) == "" {
		title = a.DisplayTitle
	}
	desc := a.Description
	if strings.TrimSpace(desc) == "" {
		desc = a.Caption
	}

	return episode.Fields{
		ID:            item.ID.String(),
		Title:         title,
		ShowID:        a.ShowID.String(),
		ShowTitle:     a.ShowTitle,
		ChannelID:     a.ChannelID.String(),
		AirDate:       AirDateFromTimestamp(a.OriginalAirDate),
		SeasonNumber:  season,
		EpisodeNumber: a.Number.Ptr(),
		Kind:          kind,
		IsEarlyAccess: a.IsSponsorsOnly,
		Description:   desc,
		GenreTags:     a.Genres,
		Slug:          slug,
		ThumbnailURL:  thumb,
		AlternateURL:  alternate,
	}
}

// mirrorThumbnail builds <cdn>/<show_id>/<season_id>/<uuid>.jpg, using
// bonus-content-<parent_slug> in place of a missing season id. It returns ""
// when the show id or a well-formed uuid is missing.
func mirrorThumbnail(cdnBase string, item rooster.Item) string {
	a := item.Attributes
	showID := a.ShowID.String()
	id, err := uuid.Parse(item.EpisodeUUID())
	if showID == "" || err != nil {
		return ""
	}

	folder := a.SeasonID.String()
	if folder == "" {
		parent := strings.TrimSpace(a.ParentContentSlug)
		if parent == "" {
			return ""
		}
		folder = "bonus-content-" + parent
	}

	base := strings.TrimRight(strings.TrimSpace(cdnBase), "/")
	if base == "" {
		base = DefaultThumbnailCDNBaseURL
	}
	return fmt.Sprintf("%s/%s/%s/%s.jpg", base, showID, folder, id.String())
}

// missFromHTTP turns an API failure into a chain miss. Transport failures are
// treated exactly like an empty response.
func missFromHTTP(logger *slog.Logger, source string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch {
	case errors.Is(err, httpx.ErrNotFound):
	case httpx.IsTransport(err):
		logger.Warn("metadata source unreachable", "source", source, "error", err)
	default:
		logger.Warn("metadata source error", "source", source, "error", err)
	}
	return fmt.Errorf("%w: %w", ErrNoData, err)
}
