// Package profile defines the read model of a directory listing and the
// boundary to the external store that owns it. Records are never written by
// this service.
package profile

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by a Store when no row matches the lookup key.
var ErrNotFound = errors.New("profile not found")

// Status is the moderation state of a listing as reported by the store.
type Status string

// Known listing states.
const (
	StatusApproved Status = "approved"
	StatusPending  Status = "pending"
	StatusPaused   Status = "paused"
	StatusRejected Status = "rejected"
)

// Field names the column a lookup is performed against.
type Field string

// Lookup fields.
const (
	FieldID   Field = "id"
	FieldSlug Field = "slug"
)

// Key is a resolved lookup: which column, and the value it must equal.
type Key struct {
	Field Field
	Value string
}

// Record is the subset of a listing needed to render a link preview.
// Optional columns are nil when the store returned NULL.
type Record struct {
	ID          string   `json:"id"`
	Slug        *string  `json:"slug,omitempty"`
	DisplayName *string  `json:"nome,omitempty"`
	Bio         *string  `json:"bio,omitempty"`
	Photos      []string `json:"fotos,omitempty"`
	PhotoURL    *string  `json:"foto_url,omitempty"`
	Status      Status   `json:"status,omitempty"`
}

// Store fetches at most one record matching a key.
type Store interface {
	FindOne(ctx context.Context, key Key) (Record, error)
}

// Columns lists the store columns a preview needs, in scan order.
var Columns = []string{"id", "slug", "nome", "bio", "fotos", "foto_url", "status"}

// SlugValue returns the slug and whether it is set to a non-empty value.
func (r Record) SlugValue() (string, bool) {
	return nonEmpty(r.Slug)
}

// NameValue returns the display name and whether it is set.
func (r Record) NameValue() (string, bool) {
	return nonEmpty(r.DisplayName)
}

// BioValue returns the bio and whether it is set.
func (r Record) BioValue() (string, bool) {
	return nonEmpty(r.Bio)
}

// PhotoURLValue returns the legacy single photo and whether it is set.
func (r Record) PhotoURLValue() (string, bool) {
	return nonEmpty(r.PhotoURL)
}

func nonEmpty(s *string) (string, bool) {
	if s == nil || *s == "" {
		return "", false
	}
	return *s, true
}

// ParseStatus normalizes a raw status column value.
func ParseStatus(raw string) Status {
	return Status(strings.ToLower(strings.TrimSpace(raw)))
}

// StringPtr returns nil for an empty string and a pointer to s otherwise.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
