package preview

import (
	"net/url"
	"strings"

	"github.com/JakeFAU/profile-preview/internal/profile"
)

const (
	descriptionLimit = 200
	ellipsis         = "..."
)

// Site holds per-brand rendering defaults.
type Site struct {
	BaseURL            string // scheme and host, no trailing slash
	Brand              string
	DefaultName        string
	DefaultDescription string
	DefaultImageURL    string
	Locale             string
	RedirectNotice     string // lead-in before the no-script link; empty picks one from Locale
}

// Meta is the set of display fields a preview is built from. Every field is
// populated even when the profile is missing. Values are raw, not escaped.
type Meta struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	ImageURL     string `json:"image_url"`
	CanonicalURL string `json:"canonical_url"`
	DisplayName  string `json:"display_name"`
}

// Extractor derives Meta from a profile record using site defaults.
type Extractor struct {
	site Site
}

// NewExtractor returns an Extractor for site.
func NewExtractor(site Site) *Extractor {
	site.BaseURL = strings.TrimRight(site.BaseURL, "/")
	return &Extractor{site: site}
}

// Extract builds Meta for rec; rec may be nil. segment is the identifier from
// the request path and names the canonical URL when the record has no slug.
func (e *Extractor) Extract(rec *profile.Record, segment string) Meta {
	name := e.site.DefaultName
	description := e.site.DefaultDescription
	image := e.site.DefaultImageURL
	pathID := segment

	if rec != nil {
		if v, ok := rec.NameValue(); ok {
			name = v
		}
		if v, ok := rec.BioValue(); ok {
			description = Truncate(v, descriptionLimit)
		}
		image = pickImage(rec, image)
		if v, ok := rec.SlugValue(); ok {
			pathID = v
		} else if rec.ID != "" {
			pathID = rec.ID
		}
	}

	return Meta{
		Title:        name + " | " + e.site.Brand,
		Description:  description,
		ImageURL:     image,
		CanonicalURL: e.site.BaseURL + "/profile/" + url.PathEscape(pathID),
		DisplayName:  name,
	}
}

// pickImage walks the photo list, keeping only absolute http(s) URLs. The
// legacy single photo is consulted only when the list is empty.
func pickImage(rec *profile.Record, fallback string) string {
	if len(rec.Photos) > 0 {
		for _, photo := range rec.Photos {
			if strings.HasPrefix(photo, "http") {
				return photo
			}
		}
		return fallback
	}
	if v, ok := rec.PhotoURLValue(); ok && strings.HasPrefix(v, "http") {
		return v
	}
	return fallback
}

// Truncate cuts s to limit characters and appends "..." when it cut anything.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + ellipsis
}
