package statement

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildInvoicePromptContract(t *testing.T) {
	now := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	prompt := BuildInvoicePrompt("FATURA MAIO\nRESTAURANTE 89,90", 120000, now)

	assert.Contains(t, prompt, "FATURA de cartão de crédito")
	assert.Contains(t, prompt, `"periodStart"`)
	assert.Contains(t, prompt, `"installmentsTotal"`)
	assert.Contains(t, prompt, "ano atual (2024)")
	assert.Contains(t, prompt, "--- TEXTO DA FATURA ---\nFATURA MAIO")
}

func TestBuildInvoicePromptTruncatesInvoiceText(t *testing.T) {
	long := strings.Repeat("x", 500)
	prompt := BuildInvoicePrompt(long, 100, time.Now())

	assert.Contains(t, prompt, strings.Repeat("x", 100))
	assert.NotContains(t, prompt, strings.Repeat("x", 101))
}

func TestBuildInvoiceSuggestionsPromptSummary(t *testing.T) {
	prompt := BuildInvoiceSuggestionsPrompt(1534.2, "2024-04-05", "2024-05-04", 42)

	assert.Contains(t, prompt, "Total: R$ 1534.20")
	assert.Contains(t, prompt, "2024-04-05 a 2024-05-04")
	assert.Contains(t, prompt, "42 lançamentos")
}
