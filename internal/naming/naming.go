// Package naming derives file names, directory layouts and remote item
// identifiers from an episode.Record.
//
// Every function here is pure: the same record and mode always produce the
// same output, and nothing depends on counters, clocks or the filesystem.
package naming

import (
	"fmt"
	"path/filepath"
	"strconv"

	"thirdcoast.systems/vodarchive/internal/episode"
	"thirdcoast.systems/vodarchive/pkg/utils/filename"
)

// Mode selects a directory layout and filename grammar.
type Mode int

const (
	// ModeShow is the human-browsable Channel/Show/Season tree.
	ModeShow Mode = iota
	// ModeArchiveTemp is the flat staging tree consumed by the uploader.
	ModeArchiveTemp
	// ModeArchivist is a Channel/Show/Season tree restricted to safe ASCII.
	ModeArchivist
)

func (m Mode) String() string {
	switch m {
	case ModeShow:
		return "show"
	case ModeArchiveTemp:
		return "archive-temp"
	case ModeArchivist:
		return "archivist"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// ItemPrefix prefixes every remote item identifier.
const ItemPrefix = "archive-"

// EarlyAccessMark prefixes the season/episode tag of early-access episodes in
// show mode.
const EarlyAccessMark = "★ "

// Sanitizer turns a display string into a path-safe segment.
type Sanitizer func(string) string

// SanitizerFor returns the sanitizer used by mode. Show mode keeps unicode
// lookalikes for readability; the machine-consumed modes strip to ASCII.
func SanitizerFor(mode Mode) Sanitizer {
	if mode == ModeShow {
		return filename.UnicodeSafe
	}
	return filename.StrictASCII
}

// SeasonName renders a season number as S01..S09, S10 and up unpadded.
func SeasonName(n int) string {
	return fmt.Sprintf("S%02d", n)
}

// EpisodeNumber renders an episode number as E01..E09, E10 and up unpadded.
// A nil number renders as the empty string.
func EpisodeNumber(n *int) string {
	if n == nil {
		return ""
	}
	return fmt.Sprintf("E%02d", *n)
}

// ItemIdentifier is the remote archive identifier for rec. It is the only key
// used for remote existence checks.
func ItemIdentifier(rec episode.Record) string {
	return ItemPrefix + rec.NumericID
}

// FileName returns the base file name (no extension) for rec in mode.
func FileName(rec episode.Record, mode Mode) string {
	tag := SeasonName(rec.SeasonNumber) + EpisodeNumber(rec.EpisodeNumber)

	if mode == ModeShow {
		clean := SanitizerFor(mode)
		mark := ""
		if rec.IsEarlyAccess {
			mark = EarlyAccessMark
		}
		return fmt.Sprintf("%s - %s%s - %s (%s)", rec.AirDate, mark, tag, clean(rec.Title), rec.NumericID)
	}

	clean := SanitizerFor(mode)
	return fmt.Sprintf("%s_%s_%s_%s", clean(rec.AirDate), tag, clean(rec.Title), rec.NumericID)
}

// ContainerPath returns the directory that holds every file of rec's bundle.
func ContainerPath(base string, rec episode.Record, mode Mode) string {
	clean := SanitizerFor(mode)

	switch mode {
	case ModeArchiveTemp:
		return filepath.Join(base, ItemIdentifier(rec))
	case ModeArchivist:
		return filepath.Join(base,
			clean(rec.ChannelTitle),
			clean(rec.ShowTitle),
			SeasonName(rec.SeasonNumber),
			fmt.Sprintf("%s_%s", clean(rec.AirDate), rec.NumericID),
		)
	default:
		return filepath.Join(base,
			clean(rec.ChannelTitle),
			clean(rec.ShowTitle),
			SeasonName(rec.SeasonNumber),
			fmt.Sprintf("%s - %s", rec.AirDate, rec.NumericID),
		)
	}
}

// OutputTemplate is the extraction tool output template for rec: the container
// path joined with the file name and an extension placeholder.
func OutputTemplate(base string, rec episode.Record, mode Mode) string {
	return filepath.Join(ContainerPath(base, rec, mode), FileName(rec, mode)+".%(ext)s")
}

// ThumbnailPath is where the cover image for rec is written.
func ThumbnailPath(base string, rec episode.Record, mode Mode) string {
	return filepath.Join(ContainerPath(base, rec, mode), FileName(rec, mode)+".jpg")
}
