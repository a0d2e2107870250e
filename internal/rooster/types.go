package rooster

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FlexString accepts either a JSON string or a JSON number. The platform
// returns numeric ids as numbers while the mirror returns them as strings.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = FlexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = FlexString(n.String())
	return nil
}

func (s FlexString) String() string { return strings.TrimSpace(string(s)) }

// FlexInt accepts a JSON number or a numeric string; anything else is unset.
type FlexInt struct {
	Value int
	Valid bool
}

func (i *FlexInt) UnmarshalJSON(b []byte) error {
	var s FlexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	n, err := strconv.Atoi(s.String())
	if err != nil {
		*i = FlexInt{}
		return nil
	}
	*i = FlexInt{Value: n, Valid: true}
	return nil
}

// Ptr returns nil when the value was absent.
func (i FlexInt) Ptr() *int {
	if !i.Valid {
		return nil
	}
	v := i.Value
	return &v
}

// Item types seen in watch and mirror payloads.
const (
	TypeEpisode      = "episode"
	TypeBonusFeature = "bonus_feature"

	ImageTypeEpisode = "episode_image"
	ImageTypeBonus   = "bonus_feature_image"
	ImageKindProfile = "profile"
)

// Attributes is the episode attribute object shared by the platform's
// data[0].attributes and the mirror's documents[0].attributes.
type Attributes struct {
	Title             string     `json:"title"`
	DisplayTitle      string     `json:"display_title"`
	Slug              string     `json:"slug"`
	ShowID            FlexString `json:"show_id"`
	ShowTitle         string     `json:"show_title"`
	ShowSlug          string     `json:"show_slug"`
	ChannelID         FlexString `json:"channel_id"`
	SeasonID          FlexString `json:"season_id"`
	SeasonNumber      FlexInt    `json:"season_number"`
	Number            FlexInt    `json:"number"`
	OriginalAirDate   string     `json:"original_air_date"`
	IsSponsorsOnly    bool       `json:"is_sponsors_only"`
	Description       string     `json:"description"`
	Caption           string     `json:"caption"`
	Genres            []string   `json:"genres"`
	ParentContentSlug string     `json:"parent_content_slug"`
	UUID              string     `json:"uuid"`
}

type ImageAttributes struct {
	ImageType string `json:"image_type"`
	Thumb     string `json:"thumb"`
	Small     string `json:"small"`
	Medium    string `json:"medium"`
	Large     string `json:"large"`
}

type Image struct {
	Type       string          `json:"type"`
	Attributes ImageAttributes `json:"attributes"`
}

type Included struct {
	Images []Image `json:"images"`
}

// Item is one episode or bonus feature.
type Item struct {
	ID         FlexString `json:"id"`
	UUID       string     `json:"uuid"`
	Type       string     `json:"type"`
	Attributes Attributes `json:"attributes"`
	Included   Included   `json:"included"`
}

// IsBonus reports whether the item is bonus content.
func (it Item) IsBonus() bool {
	return it.Type == TypeBonusFeature
}

// EpisodeUUID prefers the item-level uuid and falls back to the attribute.
func (it Item) EpisodeUUID() string {
	if u := strings.TrimSpace(it.UUID); u != "" {
		return u
	}
	return strings.TrimSpace(it.Attributes.UUID)
}

// ProfileImage returns the large URL of the first episode or bonus-feature
// image whose image_type is "profile".
func (it Item) ProfileImage() (string, bool) {
	for _, img := range it.Included.Images {
		if img.Type != ImageTypeEpisode && img.Type != ImageTypeBonus {
			continue
		}
		if img.Attributes.ImageType != ImageKindProfile {
			continue
		}
		if u := strings.TrimSpace(img.Attributes.Large); u != "" {
			return u, true
		}
	}
	return "", false
}

// WatchResponse is the platform watch endpoint payload.
type WatchResponse struct {
	Data []Item `json:"data"`
}

// MirrorResponse is the mirror findEpisode payload.
type MirrorResponse struct {
	Documents []Item `json:"documents"`
}

type Season struct {
	ID         FlexString `json:"id"`
	Attributes struct {
		Number FlexInt `json:"number"`
		Title  string  `json:"title"`
	} `json:"attributes"`
	Links struct {
		Episodes string `json:"episodes"`
	} `json:"links"`
}

type SeasonsResponse struct {
	Data []Season `json:"data"`
}

type Show struct {
	ID    FlexString `json:"id"`
	Links struct {
		BonusFeatures string `json:"bonus_features"`
	} `json:"links"`
}

type ShowResponse struct {
	Data []Show `json:"data"`
}

type ListingEpisode struct {
	ID             FlexString `json:"id"`
	CanonicalLinks struct {
		Self string `json:"self"`
	} `json:"canonical_links"`
	Attributes struct {
		Title string `json:"title"`
	} `json:"attributes"`
}

type ListingResponse struct {
	Data []ListingEpisode `json:"data"`
}
