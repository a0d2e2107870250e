package orchestrator

import (
	"fmt"
	"strings"

	"thirdcoast.systems/vodarchive/internal/archiveorg"
	"thirdcoast.systems/vodarchive/internal/episode"
	"thirdcoast.systems/vodarchive/internal/naming"
	"thirdcoast.systems/vodarchive/pkg/utils/markdown"
)

// ArchiveMetadata builds the archive.org item metadata for rec.
func ArchiveMetadata(rec episode.Record, collection, siteBase string) archiveorg.Metadata {
	title := rec.Title
	if rec.ShowTitle != "" {
		title = fmt.Sprintf("%s - %s%s - %s", rec.ShowTitle, naming.SeasonName(rec.SeasonNumber), naming.EpisodeNumber(rec.EpisodeNumber), rec.Title)
	}

	seen := map[string]bool{}
	var subjects []string
	for _, s := range append([]string{rec.ShowTitle, rec.ChannelTitle}, rec.GenreTags...) {
		s = strings.TrimSpace(s)
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		subjects = append(subjects, s)
	}

	extra := map[string]string{
		"episode_id": rec.NumericID,
		"show":       rec.ShowTitle,
		"season":     naming.SeasonName(rec.SeasonNumber),
		"episode":    naming.EpisodeNumber(rec.EpisodeNumber),
	}
	if rec.IsEarlyAccess {
		extra["first_exclusive"] = "true"
	}
	if rec.IsBonus() {
		extra["bonus"] = "true"
	}

	return archiveorg.Metadata{
		MediaType:   "movies",
		Collection:  collection,
		Title:       title,
		Date:        rec.AirDate,
		Description: markdown.New(rec.Description).HTML(),
		Creator:     rec.ChannelTitle,
		Language:    "eng",
		OriginalURL: rec.SourceURL(siteBase),
		Subjects:    subjects,
		Extra:       extra,
	}
}
