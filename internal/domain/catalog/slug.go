package catalog

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxSlugLength bounds a single path segment
	MaxSlugLength = 100
	// MaxNameLength bounds the display label
	MaxNameLength = 100

	fallbackSlug = "category"
)

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
	slugPattern  = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// Slugify turns a display name into a URL-safe slug. Diacritics are folded
// ("Électroménager" becomes "electromenager") and runs of anything other
// than [a-z0-9] collapse to a single hyphen.
func Slugify(name string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, name)
	if err != nil {
		folded = name
	}

	s := strings.ToLower(strings.TrimSpace(folded))
	s = nonSlugChars.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > MaxSlugLength {
		s = strings.TrimRight(s[:MaxSlugLength], "-")
	}
	if s == "" {
		return fallbackSlug
	}
	return s
}

// ValidateSlug checks that slug can be used as a path segment
func ValidateSlug(slug string) error {
	if slug == "" {
		return ErrInvalidSlug.WithMessage("Category slug cannot be empty")
	}
	if len(slug) > MaxSlugLength {
		return ErrInvalidSlug.WithMessage("Category slug cannot exceed %d characters", MaxSlugLength)
	}
	if !slugPattern.MatchString(slug) {
		return ErrInvalidSlug.WithMessage("Category slug may only contain lowercase letters, digits and single hyphens")
	}
	return nil
}

// ValidateName checks the display label
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName.WithMessage("Category name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return ErrInvalidName.WithMessage("Category name cannot exceed %d characters", MaxNameLength)
	}
	return nil
}
