// Package slug owns the short-link namespace: slug syntax, URL normalisation,
// random candidate generation and allocation with bounded retries.
package slug

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"strings"

	"github.com/sifan077/linkpulse/internal/app/apperror"
)

const (
	MinLength     = 3
	MaxLength     = 30
	DefaultLength = 6

	alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var pattern = regexp.MustCompile(`^[a-z0-9-]{3,30}$`)

// reserved holds top-level path segments served by the HTTP router. A slug
// with one of these names would never reach the redirect route.
var reserved = map[string]struct{}{
	"api":    {},
	"health": {},
}

// IsReserved reports whether s collides with a top-level route.
func IsReserved(s string) bool {
	_, ok := reserved[s]
	return ok
}

// Normalize folds a user supplied slug to its stored form.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Validate checks an already normalised custom slug.
func Validate(s string) error {
	return ValidateField("custom_slug", s)
}

// ValidateField is Validate with the rejected input reported as field.
func ValidateField(field, s string) error {
	if len(s) < MinLength || len(s) > MaxLength {
		return apperror.NewValidationError(field,
			fmt.Sprintf("must be between %d and %d characters", MinLength, MaxLength), apperror.ErrInvalidSlug)
	}
	if !pattern.MatchString(s) {
		return apperror.NewValidationError(field,
			"may only contain lowercase letters, digits and hyphens", apperror.ErrInvalidSlug)
	}
	if IsReserved(s) {
		return apperror.NewValidationError(field, "is a reserved word", apperror.ErrInvalidSlug)
	}
	return nil
}

// Generate returns a random base-36 string of the given length that is not a
// reserved word.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}
	for {
		s, err := randomString(length)
		if err != nil || !IsReserved(s) {
			return s, err
		}
	}
}

func randomString(length int) (string, error) {
	base := big.NewInt(int64(len(alphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", fmt.Errorf("slug: read random: %w", err)
		}
		b[i] = alphabet[n.Int64()]
	}
	return string(b), nil
}

// NormalizeURL prepends https:// when no scheme is present and requires an
// absolute http or https URL with a host.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperror.NewValidationError("original_url", "is required", apperror.ErrInvalidURL)
	}

	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		if strings.Contains(raw, "://") {
			return "", apperror.NewValidationError("original_url", "scheme must be http or https", apperror.ErrInvalidURL)
		}
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", apperror.NewValidationError("original_url", "is not a valid URL", apperror.ErrInvalidURL)
	}
	if u.Host == "" || u.Hostname() == "" || strings.ContainsAny(u.Host, " \t") {
		return "", apperror.NewValidationError("original_url", "must include a host", apperror.ErrInvalidURL)
	}
	return raw, nil
}
