package statement

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestBuildExtractionPromptIncludesContract(t *testing.T) {
	now := time.Date(2024, time.May, 10, 0, 0, 0, 0, time.UTC)
	prompt := BuildExtractionPrompt("01/05 PIX RECEBIDO 100,00", 120000, now)

	assert.Contains(t, prompt, `"transactions"`)
	assert.Contains(t, prompt, `"closingBalance"`)
	assert.Contains(t, prompt, "YYYY-MM-DD")
	assert.Contains(t, prompt, "2024", "current year is offered as the date fallback")
	assert.Contains(t, prompt, InvestmentCategoryLabel)
	assert.Contains(t, prompt, "01/05 PIX RECEBIDO 100,00")
}

func TestBuildExtractionPromptTruncatesTail(t *testing.T) {
	text := strings.Repeat("a", 500) + "FIM"
	prompt := BuildExtractionPrompt(text, 500, time.Now())

	assert.NotContains(t, prompt, "FIM")
	assert.Contains(t, prompt, strings.Repeat("a", 500))
}

func TestBuildExtractionPromptNoTruncationUnderBudget(t *testing.T) {
	prompt := BuildExtractionPrompt("curto", 500, time.Now())
	assert.Contains(t, prompt, "curto")
}

func TestBuildExtractionPromptTruncationKeepsValidUTF8(t *testing.T) {
	// "ção" is 5 bytes; a 4-byte budget lands inside the 'ç' sequence.
	prompt := BuildExtractionPrompt("ação", 4, time.Now())
	assert.True(t, utf8.ValidString(prompt))
	assert.Contains(t, prompt, "--- DADOS DO EXTRATO ---\na")
}

func TestTruncateOnRuneBoundary(t *testing.T) {
	tests := []struct {
		input string
		max   int
		want  string
	}{
		{"abcdef", 3, "abc"},
		{"abcdef", 10, "abcdef"},
		{"ação", 2, "a"},  // 'ç' starts at byte 1 and is 2 bytes wide
		{"ação", 3, "aç"},
		{"ação", 6, "ação"},
	}
	for _, tt := range tests {
		got := truncateOnRuneBoundary(tt.input, tt.max)
		assert.Equal(t, tt.want, got, "input %q max %d", tt.input, tt.max)
		assert.True(t, utf8.ValidString(got))
	}
}
