package vehicle

import (
	"errors"
	"strings"
)

// =============================================================================
// Registration Number Errors
// =============================================================================

var (
	ErrRegnrEmpty    = errors.New("registration number is required")
	ErrRegnrTooShort = errors.New("registration number must be at least 2 characters")
	ErrRegnrTooLong  = errors.New("registration number must be at most 7 characters")
	ErrRegnrInvalid  = errors.New("registration number may only contain letters and digits")
)

// =============================================================================
// Normalization
// =============================================================================

// NormalizeRegnr canonicalises a Swedish registration number: surrounding
// whitespace is stripped and letters are uppercased. Standard plates are
// three letters followed by three digits (ABC123) or two digits and a
// letter (ABC12D); personalised plates are any 2-7 alphanumerics, so the
// shape is not validated beyond length and character set.
func NormalizeRegnr(raw string) (string, error) {
	regnr := strings.ToUpper(strings.TrimSpace(raw))
	if regnr == "" {
		return "", ErrRegnrEmpty
	}
	if len(regnr) < 2 {
		return "", ErrRegnrTooShort
	}
	if len(regnr) > 7 {
		return "", ErrRegnrTooLong
	}
	for _, r := range regnr {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", ErrRegnrInvalid
		}
	}
	return regnr, nil
}
