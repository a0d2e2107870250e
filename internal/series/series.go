// Package series expands a series or season URL into its episode URLs.
package series

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"thirdcoast.systems/vodarchive/internal/httpx"
	"thirdcoast.systems/vodarchive/internal/rooster"
)

var ErrInvalidSeriesURL = errors.New("series: invalid series URL")

// API is the slice of the platform client the expander needs.
type API interface {
	Seasons(ctx context.Context, showID string) (*rooster.SeasonsResponse, error)
	Show(ctx context.Context, showID string) (*rooster.ShowResponse, error)
	ListingURL(link string) (string, error)
	Listing(ctx context.Context, listingURL string) (*rooster.ListingResponse, error)
}

type Expander struct {
	API      API
	SiteBase string
	Logger   *slog.Logger
}

func (e *Expander) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// IsSeriesURL reports whether raw points at a series page.
func IsSeriesURL(raw string) bool {
	_, _, err := Parse(raw)
	return err == nil
}

// Parse extracts the series id and the optional season filter from
// https://<site>/series/<id>[?season=N]. season is nil when absent.
func Parse(raw string) (string, *int, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidSeriesURL, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "series" || parts[1] == "" {
		return "", nil, fmt.Errorf("%w: %s", ErrInvalidSeriesURL, raw)
	}

	s := strings.TrimSpace(u.Query().Get("season"))
	if s == "" {
		return parts[1], nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return "", nil, fmt.Errorf("%w: season %q", ErrInvalidSeriesURL, s)
	}
	return parts[1], &n, nil
}

// Expand returns episode watch URLs in listing order: seasons as the API
// orders them, then bonus content. With a season filter only that season is
// listed. It returns nil and no error when nothing was found.
func (e *Expander) Expand(ctx context.Context, raw string) ([]string, error) {
	showID, season, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	listings, err := e.seasonListings(ctx, showID, season)
	if err != nil {
		return nil, err
	}
	if season == nil {
		if bonus := e.bonusListing(ctx, showID); bonus != "" {
			listings = append(listings, bonus)
		}
	}
	e.logger().Info("series listings found", "series", showID, "listings", len(listings))

	var links []string
	for _, link := range listings {
		page, err := e.episodeLinks(ctx, link)
		if err != nil {
			return nil, err
		}
		links = append(links, page...)
	}

	if len(links) == 0 {
		return nil, nil
	}
	e.logger().Info("series expanded", "series", showID, "episodes", len(links))
	return links, nil
}

func (e *Expander) seasonListings(ctx context.Context, showID string, season *int) ([]string, error) {
	resp, err := e.API.Seasons(ctx, showID)
	if errors.Is(err, httpx.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("series: list seasons of %s: %w", showID, err)
	}

	var out []string
	for _, s := range resp.Data {
		link := strings.TrimSpace(s.Links.Episodes)
		if link == "" {
			continue
		}
		if season != nil {
			if n := s.Attributes.Number.Ptr(); n != nil && *n == *season {
				return []string{link}, nil
			}
			continue
		}
		out = append(out, link)
	}
	return out, nil
}

func (e *Expander) bonusListing(ctx context.Context, showID string) string {
	resp, err := e.API.Show(ctx, showID)
	if err != nil {
		if !errors.Is(err, httpx.ErrNotFound) {
			e.logger().Warn("bonus listing lookup failed", "series", showID, "error", err)
		}
		return ""
	}
	for _, show := range resp.Data {
		if link := strings.TrimSpace(show.Links.BonusFeatures); link != "" {
			return link
		}
	}
	return ""
}

func (e *Expander) episodeLinks(ctx context.Context, link string) ([]string, error) {
	listingURL, err := e.API.ListingURL(link)
	if err != nil {
		return nil, fmt.Errorf("series: listing %s: %w", link, err)
	}
	resp, err := e.API.Listing(ctx, listingURL)
	if err != nil {
		return nil, fmt.Errorf("series: fetch listing %s: %w", listingURL, err)
	}

	site := strings.TrimRight(e.SiteBase, "/")
	if site == "" {
		site = rooster.DefaultSiteBaseURL
	}

	out := make([]string, 0, len(resp.Data))
	for _, ep := range resp.Data {
		self := strings.TrimSpace(ep.CanonicalLinks.Self)
		if self == "" {
			e.logger().Warn("episode has no canonical link", "listing", listingURL, "id", ep.ID.String(), "title", ep.Attributes.Title)
			continue
		}
		if !strings.HasPrefix(self, "/") {
			self = "/" + self
		}
		out = append(out, site+self)
	}
	return out, nil
}
