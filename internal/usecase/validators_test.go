package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/simonbarrel6/aakora/internal/domain"
)

func TestNumericND(t *testing.T) {
	v := NumericND("nd")
	for in, want := range map[string]string{"12345678": "12345678", " 0213 ": "0213"} {
		got, err := v(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	for _, in := range []string{"", "abc", "12a", "+213", "1 2", "١٢٣"} {
		_, err := v(in)
		assert.True(t, domain.IsValidation(err), "%q should be rejected", in)
	}
}

func TestAmount(t *testing.T) {
	v := Amount("amount")
	cases := map[string]string{
		"1000":    "1000",
		"1000.50": "1000.5",
		"1000,50": "1000.5",
		"0.01":    "0.01",
		" 595.0 ": "595",
	}
	for in, want := range cases {
		got, err := v(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"abc", "", "0", "-5", "1,000,50", "NaN", "Inf", "12abc"} {
		_, err := v(in)
		assert.True(t, domain.IsValidation(err), "%q should be rejected", in)
	}
}

func TestNonEmpty(t *testing.T) {
	v := NonEmpty("password")
	got, err := v("  s3cret ")
	assert.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	_, err = v("   ")
	assert.True(t, domain.IsValidation(err))
}
