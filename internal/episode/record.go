// Package episode defines the canonical episode record every resolver tier
// produces and every later pipeline stage consumes.
package episode

import (
	"errors"
	"strings"
)

// BonusSeason is the season number given to records without a season.
const BonusSeason = 99

// BonusSuffix marks the numeric id of bonus content. It is the only thing
// distinguishing a bonus feature from a regular episode sharing a base id.
const BonusSuffix = "-bonus"

type Kind int

const (
	Regular Kind = iota
	Bonus
)

func (k Kind) String() string {
	if k == Bonus {
		return "bonus"
	}
	return "regular"
}

var ErrMissingID = errors.New("episode: numeric id is required")

// Record is the canonical, resolver-independent view of one episode.
// Construct it with New; fields are not modified afterwards.
type Record struct {
	NumericID string

	Title    string
	TitleRaw string

	ShowID       string
	ShowTitle    string
	ShowTitleRaw string

	ChannelID       string
	ChannelTitle    string
	ChannelTitleRaw string

	// AirDate is YYYY-MM-DD or empty when unknown.
	AirDate string

	SeasonNumber  int
	EpisodeNumber *int

	Kind          Kind
	IsEarlyAccess bool

	Description string
	GenreTags   []string

	Slug string

	ThumbnailURLPrimary   string
	ThumbnailURLAlternate string
}

// Fields carries the raw values a resolver tier extracted. Display strings are
// passed unsanitized; naming applies the sanitizer appropriate to its mode.
type Fields struct {
	ID            string
	Title         string
	ShowID        string
	ShowTitle     string
	ChannelID     string
	ChannelTitle  string
	AirDate       string
	SeasonNumber  *int
	EpisodeNumber *int
	Kind          Kind
	IsEarlyAccess bool
	Description   string
	GenreTags     []string
	Slug          string
	ThumbnailURL  string
	AlternateURL  string
}

// New builds a Record from f, enforcing the record invariants: the id is never
// empty, bonus ids carry BonusSuffix exactly once, the season is always set and
// genre tags are never nil.
func New(f Fields) (Record, error) {
	id := strings.TrimSpace(f.ID)
	id = strings.TrimSuffix(id, BonusSuffix)
	if id == "" {
		return Record{}, ErrMissingID
	}
	if f.Kind == Bonus {
		id += BonusSuffix
	}

	season := BonusSeason
	if f.SeasonNumber != nil {
		season = *f.SeasonNumber
	}

	var epNum *int
	if f.EpisodeNumber != nil {
		n := *f.EpisodeNumber
		epNum = &n
	}

	tags := make([]string, 0, len(f.GenreTags))
	for _, tag := range f.GenreTags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	title := strings.TrimSpace(f.Title)
	showTitle := strings.TrimSpace(f.ShowTitle)
	channelTitle := strings.TrimSpace(f.ChannelTitle)

	return Record{
		NumericID:             id,
		Title:                 title,
		TitleRaw:              f.Title,
		ShowID:                strings.TrimSpace(f.ShowID),
		ShowTitle:             showTitle,
		ShowTitleRaw:          f.ShowTitle,
		ChannelID:             strings.TrimSpace(f.ChannelID),
		ChannelTitle:          channelTitle,
		ChannelTitleRaw:       f.ChannelTitle,
		AirDate:               strings.TrimSpace(f.AirDate),
		SeasonNumber:          season,
		EpisodeNumber:         epNum,
		Kind:                  f.Kind,
		IsEarlyAccess:         f.IsEarlyAccess,
		Description:           strings.TrimSpace(f.Description),
		GenreTags:             tags,
		Slug:                  strings.TrimSpace(f.Slug),
		ThumbnailURLPrimary:   strings.TrimSpace(f.ThumbnailURL),
		ThumbnailURLAlternate: strings.TrimSpace(f.AlternateURL),
	}, nil
}

// BaseID returns the numeric id without the bonus suffix.
func (r Record) BaseID() string {
	return strings.TrimSuffix(r.NumericID, BonusSuffix)
}

func (r Record) IsBonus() bool {
	return r.Kind == Bonus
}

func (r Record) HasAirDate() bool {
	return r.AirDate != ""
}

// SourceURL rebuilds the watch page URL for the record's slug.
func (r Record) SourceURL(siteBase string) string {
	if r.Slug == "" {
		return ""
	}
	return strings.TrimRight(siteBase, "/") + "/watch/" + r.Slug
}

// IntPtr is a convenience for building Fields literals.
func IntPtr(n int) *int {
	return &n
}
