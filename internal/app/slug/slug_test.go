package slug

import (
	"testing"

	"github.com/sifan077/linkpulse/internal/app/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	valid := []string{"abc", "my-link", "a1b2c3", "000", "abcdefghijklmnopqrstuvwxyz0123"}
	for _, s := range valid {
		assert.NoError(t, Validate(s), s)
	}

	invalid := []string{"", "ab", "abcdefghijklmnopqrstuvwxyz01234", "My-Link", "has space", "under_score", "emoji😀"}
	for _, s := range invalid {
		err := Validate(s)
		assert.ErrorIs(t, err, apperror.ErrInvalidSlug, s)
		assert.True(t, apperror.IsValidation(err), s)
	}
}

func TestValidateField(t *testing.T) {
	err := ValidateField("slug", "x")
	var ve *apperror.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "slug", ve.Field)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "my-link", Normalize("  My-LINK\t"))
}

func TestGenerate(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		s, err := Generate(DefaultLength)
		require.NoError(t, err)
		require.Len(t, s, DefaultLength)
		require.NoError(t, Validate(s))
		seen[s] = true
	}
	assert.Greater(t, len(seen), 190)

	s, err := Generate(0)
	require.NoError(t, err)
	assert.Len(t, s, DefaultLength)
}

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"example.com/page", "https://example.com/page"},
		{"  https://example.com  ", "https://example.com"},
		{"http://example.com/a?b=c", "http://example.com/a?b=c"},
		{"HTTPS://Example.com", "HTTPS://Example.com"},
		{"localhost:8080/x", "https://localhost:8080/x"},
	}
	for _, tc := range cases {
		got, err := NormalizeURL(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}

	for _, in := range []string{"", "   ", "ftp://example.com", "javascript://alert(1)", "https://", "http:// bad host"} {
		_, err := NormalizeURL(in)
		assert.ErrorIs(t, err, apperror.ErrInvalidURL, in)
	}
}

func TestValidate_ReservedWords(t *testing.T) {
	for _, s := range []string{"health", "api"} {
		err := ValidateField("custom_slug", s)
		assert.ErrorIs(t, err, apperror.ErrInvalidSlug, s)
		assert.True(t, IsReserved(s), s)
	}
	assert.NoError(t, Validate("healthy"))
	assert.False(t, IsReserved("apis"))
}
