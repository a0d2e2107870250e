package resolver

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"thirdcoast.systems/vodarchive/internal/episode"
	"thirdcoast.systems/vodarchive/internal/reftable"
)

// AirDateFromTimestamp keeps the date part of an ISO-8601 timestamp. Values
// without a T separator yield "".
func AirDateFromTimestamp(ts string) string {
	ts = strings.TrimSpace(ts)
	date, _, found := strings.Cut(ts, "T")
	if !found {
		return ""
	}
	return date
}

// RebrandRule re-attributes a show to another channel for episodes that aired
// before Cutoff. It corrects a historical channel rebrand.
type RebrandRule struct {
	ShowTitle    string
	ChannelTitle string
	Cutoff       time.Time
}

// DefaultRebrandRule moves pre-2023-10-06 "Let's Play" episodes to
// Achievement Hunter.
func DefaultRebrandRule() RebrandRule {
	return RebrandRule{
		ShowTitle:    "Let's Play",
		ChannelTitle: "Achievement Hunter",
		Cutoff:       time.Date(2023, time.October, 6, 0, 0, 0, 0, time.UTC),
	}
}

// Applies reports whether f should be re-attributed.
func (r RebrandRule) Applies(showTitle, airDate string) bool {
	if r.ShowTitle == "" || r.ChannelTitle == "" || r.Cutoff.IsZero() {
		return false
	}
	if showTitle != r.ShowTitle {
		return false
	}
	aired, err := time.Parse(time.DateOnly, airDate)
	if err != nil {
		return false
	}
	return aired.Before(r.Cutoff)
}

// Normalizer holds what every tier shares when building a record.
type Normalizer struct {
	Tables  *reftable.Tables
	Rebrand RebrandRule
}

// RebrandReachable reports whether the show table can produce the rebrand
// rule's show title. Show titles only come from the table, so without such an
// entry the rule never fires.
func (n Normalizer) RebrandReachable() bool {
	if n.Rebrand.ShowTitle == "" {
		return true
	}
	return n.Tables != nil && n.Tables.Shows.HasName(n.Rebrand.ShowTitle)
}

var genreCaser = cases.Title(language.AmericanEnglish)

// Finish resolves display names through the reference tables, applies the
// rebrand rule and title-cases genre tags, then builds the record.
func (n Normalizer) Finish(f episode.Fields) (episode.Record, error) {
	var channels, shows *reftable.Table
	if n.Tables != nil {
		channels, shows = n.Tables.Channels, n.Tables.Shows
	}

	if f.ShowID != "" {
		f.ShowTitle = shows.NameOr(f.ShowID)
	}
	if f.ChannelID != "" {
		f.ChannelTitle = channels.NameOr(f.ChannelID)
	}
	if n.Rebrand.Applies(f.ShowTitle, f.AirDate) {
		f.ChannelTitle = n.Rebrand.ChannelTitle
	}

	tags := make([]string, 0, len(f.GenreTags))
	for _, g := range f.GenreTags {
		if g = strings.TrimSpace(g); g != "" {
			tags = append(tags, genreCaser.String(g))
		}
	}
	f.GenreTags = tags

	return episode.New(f)
}
