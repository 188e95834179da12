package perspective

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "strips markup tags",
			input:    "<p>you are great</p>",
			expected: "you are great",
		},
		{
			name:     "decodes entities",
			input:    "rock &amp; roll &gt; silence",
			expected: "rock & roll > silence",
		},
		{
			name:     "strips leading quote reference",
			input:    ">>123456 lurk more",
			expected: "lurk more",
		},
		{
			name:     "strips leading single-arrow reference",
			input:    ">123456 lurk more",
			expected: "lurk more",
		},
		{
			name:     "strips leading bare number",
			input:    "123456 lurk more",
			expected: "lurk more",
		},
		{
			name:     "quote reference rendered as markup",
			input:    `<a href="#p123" class="quotelink">&gt;&gt;123</a> agreed`,
			expected: "agreed",
		},
		{
			name:     "line breaks become spaces",
			input:    "first line<br>second line",
			expected: "first line second line",
		},
		{
			name:     "whitespace-only collapses to empty",
			input:    "<br><br>   ",
			expected: "",
		},
		{
			name:     "plain text untouched",
			input:    "nothing to do here",
			expected: "nothing to do here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalize_SizeCap(t *testing.T) {
	t.Run("50KB input fits in the cap", func(t *testing.T) {
		out := Normalize(strings.Repeat("a", 50*1024))

		assert.LessOrEqual(t, len(out), MaxTextBytes)
		assert.Equal(t, MaxTextBytes, len(out))
	})

	t.Run("no dangling multi-byte fragment", func(t *testing.T) {
		// 3-byte runes that do not divide the cap evenly.
		out := Normalize(strings.Repeat("日", 30*1024))

		assert.LessOrEqual(t, len(out), MaxTextBytes)
		assert.True(t, utf8.ValidString(out))
		assert.NotZero(t, len(out))
	})
}

func TestTruncateUTF8(t *testing.T) {
	t.Run("short input untouched", func(t *testing.T) {
		assert.Equal(t, "abc", truncateUTF8("abc", 10))
	})

	t.Run("cuts on a rune boundary", func(t *testing.T) {
		s := "aaéé" // 2 + 4 bytes
		out := truncateUTF8(s, 5)

		assert.Equal(t, "aaé", out)
		assert.True(t, utf8.ValidString(out))
	})
}
