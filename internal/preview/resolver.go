package preview

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/profile-preview/internal/profile"
)

// maxIdentifierLen bounds the path segment; slugs and UUIDs are far shorter.
const maxIdentifierLen = 200

var canonicalToken = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ResolveIdentifier picks the lookup column for a path segment. Segments shaped
// like a UUID are looked up by id and everything else by slug, so a slug that
// happens to look like a UUID is routed to the id column.
func ResolveIdentifier(segment string) profile.Key {
	if canonicalToken.MatchString(segment) {
		return profile.Key{Field: profile.FieldID, Value: segment}
	}
	return profile.Key{Field: profile.FieldSlug, Value: segment}
}

// ValidateIdentifier rejects segments that cannot name a profile.
func ValidateIdentifier(segment string) error {
	switch {
	case strings.TrimSpace(segment) == "":
		return ErrInvalidIdentifier
	case len(segment) > maxIdentifierLen:
		return ErrInvalidIdentifier
	case strings.ContainsAny(segment, "/\x00"):
		return ErrInvalidIdentifier
	}
	return nil
}
