package cache

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// MaxKeyLength bounds derived keys; longer identifying fields are rejected
// rather than truncated so distinct inputs never collide.
const MaxKeyLength = 256

// ErrInvalidKey is returned for empty, oversized, or control-character keys.
var ErrInvalidKey = errors.New("cache: invalid key")

// Key derives the cache key for an identifying field: the field is trimmed,
// lowercased, and every whitespace run becomes a single underscore. Unicode
// spaces such as U+00A0 count as whitespace.
//
//	Key("brand", "Acme Corp") == "brand_acme_corp"
func Key(prefix, field string) (string, error) {
	normalized := strings.Join(strings.Fields(strings.ToLower(field)), "_")
	if normalized == "" {
		return "", fmt.Errorf("%w: identifying field is empty", ErrInvalidKey)
	}
	key := normalized
	if prefix != "" {
		key = prefix + "_" + normalized
	}
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// ValidateKey checks a key supplied from outside, e.g. by the admin API.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if len(key) > MaxKeyLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidKey, MaxKeyLength)
	}
	for _, r := range key {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return fmt.Errorf("%w: contains whitespace or control characters", ErrInvalidKey)
		}
	}
	return nil
}
