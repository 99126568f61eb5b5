// Package prediction handles parsing and normalization of the prediction
// text attached to a wager.
package prediction

import (
	"errors"
	"fmt"
	"strings"
)

// Canonical prediction forms.
const (
	WillHappen    = "WILL HAPPEN"
	WillNotHappen = "WILL NOT HAPPEN"
)

var (
	ErrEmptyPrediction   = errors.New("prediction: text must not be empty")
	ErrInvalidPrediction = errors.New("prediction: unsupported prediction text")
)

// Normalize trims surrounding whitespace and upper-cases the prediction
// text. Matching is always done on the normalized form.
func Normalize(text string) string {
	return strings.ToUpper(strings.TrimSpace(text))
}

// Favorable reports whether the prediction backs the scenario occurring.
// Anything other than the canonical affirmative form is treated as backing
// the scenario not occurring.
func Favorable(text string) bool {
	return Normalize(text) == WillHappen
}

// Parse validates user-supplied prediction text at the API boundary and
// returns the canonical form. The scenario core itself accepts any
// non-empty text; only the HTTP layer restricts input to the two forms.
func Parse(text string) (string, error) {
	norm := Normalize(text)
	switch norm {
	case "":
		return "", ErrEmptyPrediction
	case WillHappen, WillNotHappen:
		return norm, nil
	default:
		return "", fmt.Errorf("%w: %q (expected %q or %q)",
			ErrInvalidPrediction, text, WillHappen, WillNotHappen)
	}
}
