package usecase

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/simonbarrel6/aakora/internal/domain"
)

// Validator checks one raw answer and returns its canonical form.
type Validator func(raw string) (string, error)

var digitsRe = regexp.MustCompile(`^\d+$`)

// NumericND accepts one or more ASCII digits.
func NumericND(field string) Validator {
	return func(raw string) (string, error) {
		v := strings.TrimSpace(raw)
		if !digitsRe.MatchString(v) {
			return "", &domain.ValidationError{Field: field, Reason: "digits only"}
		}
		return v, nil
	}
}

// Amount accepts a positive finite decimal. A decimal comma is read as a point.
func Amount(field string) Validator {
	return func(raw string) (string, error) {
		v := strings.Replace(strings.TrimSpace(raw), ",", ".", 1)
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
			return "", &domain.ValidationError{Field: field, Reason: "positive number expected"}
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
}

// NonEmpty accepts any text with at least one non-space character.
func NonEmpty(field string) Validator {
	return func(raw string) (string, error) {
		v := strings.TrimSpace(raw)
		if v == "" {
			return "", &domain.ValidationError{Field: field, Reason: "empty"}
		}
		return v, nil
	}
}
