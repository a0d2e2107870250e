// Package rooster talks to the platform's content API and to the community
// mirror that kept serving metadata after the platform went dark.
package rooster

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"thirdcoast.systems/vodarchive/internal/httpx"
)

const (
	DefaultPlatformBaseURL = "https://svod-be.roosterteeth.com"
	DefaultMirrorBaseURL   = "https://roosterteeth.fhm.workers.dev"
	DefaultSiteBaseURL     = "https://roosterteeth.com"

	// listingPageSize is large enough that no listing needs a second page.
	listingPageSize = 999
)

type Client struct {
	http         *httpx.Client
	platformBase string
	mirrorBase   string
}

func NewClient(hc *httpx.Client, platformBase, mirrorBase string) *Client {
	if hc == nil {
		hc = httpx.New()
	}
	return &Client{
		http:         hc,
		platformBase: baseOr(platformBase, DefaultPlatformBaseURL),
		mirrorBase:   baseOr(mirrorBase, DefaultMirrorBaseURL),
	}
}

func baseOr(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		v = def
	}
	return strings.TrimRight(v, "/")
}

func (c *Client) platformHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Cache-Control", "no-cache")
	h.Set("Client-Type", "web")
	h.Set("Origin", DefaultSiteBaseURL)
	return h
}

// Watch fetches the platform's watch payload for an episode slug.
func (c *Client) Watch(ctx context.Context, slug string) (*WatchResponse, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, fmt.Errorf("rooster: slug is required")
	}
	var out WatchResponse
	u := c.platformBase + "/api/v1/watch/" + url.PathEscape(slug)
	if err := c.http.GetJSON(ctx, u, c.platformHeaders(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MirrorEpisode fetches the mirror's findEpisode payload for an episode slug.
func (c *Client) MirrorEpisode(ctx context.Context, slug string) (*MirrorResponse, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, fmt.Errorf("rooster: slug is required")
	}
	u, err := url.Parse(c.mirrorBase + "/findEpisode")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("slug", slug)
	u.RawQuery = q.Encode()

	var out MirrorResponse
	if err := c.http.GetJSON(ctx, u.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Seasons lists a show's seasons in ascending order.
func (c *Client) Seasons(ctx context.Context, showID string) (*SeasonsResponse, error) {
	u := c.platformBase + "/api/v1/shows/" + url.PathEscape(showID) + "/seasons?order=asc"
	var out SeasonsResponse
	if err := c.http.GetJSON(ctx, u, c.platformHeaders(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Show fetches a show's top-level record, used for its bonus feature link.
func (c *Client) Show(ctx context.Context, showID string) (*ShowResponse, error) {
	u := c.platformBase + "/api/v1/shows/" + url.PathEscape(showID)
	var out ShowResponse
	if err := c.http.GetJSON(ctx, u, c.platformHeaders(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListingURL turns a platform-relative listing link into an absolute URL that
// requests every item on one page.
func (c *Client) ListingURL(link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", fmt.Errorf("rooster: empty listing link")
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	if !u.IsAbs() {
		base, err := url.Parse(c.platformBase)
		if err != nil {
			return "", err
		}
		u = base.ResolveReference(u)
	}
	q := u.Query()
	q.Set("page", "1")
	q.Set("per_page", fmt.Sprint(listingPageSize))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Listing fetches an episode listing page by absolute URL.
func (c *Client) Listing(ctx context.Context, listingURL string) (*ListingResponse, error) {
	var out ListingResponse
	if err := c.http.GetJSON(ctx, listingURL, c.platformHeaders(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
