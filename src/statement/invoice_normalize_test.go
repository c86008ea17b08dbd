package statement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeInvoiceExtraction(t *testing.T) {
	raw := `{
		"periodStart": "2024-04-05",
		"periodEnd": "2024-05-04",
		"dueDate": "2024-05-12",
		"totalAmount": 1534.20,
		"items": [
			{"description": "Restaurante Fogo", "amount": 89.90, "date": "2024-04-10", "installmentsCurrent": "1", "installmentsTotal": "3"},
			{"description": "Posto Shell", "amount": -200.00, "date": null, "installmentsCurrent": null, "installmentsTotal": null}
		]
	}`

	result, err := NormalizeInvoiceExtraction(raw)
	require.NoError(t, err)

	assert.Equal(t, "2024-04-05", result.PeriodStart)
	assert.Equal(t, "2024-05-04", result.PeriodEnd)
	require.NotNil(t, result.DueDate)
	assert.Equal(t, "2024-05-12", *result.DueDate)
	assert.Equal(t, 1534.20, result.TotalAmount)

	require.Len(t, result.Items, 2)
	require.NotNil(t, result.Items[0].Description)
	assert.Equal(t, "Restaurante Fogo", *result.Items[0].Description)
	require.NotNil(t, result.Items[0].InstallmentsCurrent)
	assert.Equal(t, "1", *result.Items[0].InstallmentsCurrent)

	// Negative line amounts are purchase magnitudes, stored positive.
	assert.Equal(t, 200.00, result.Items[1].Amount)
	assert.Nil(t, result.Items[1].Date)
	assert.Nil(t, result.Items[1].InstallmentsCurrent)
}

func TestNormalizeInvoiceExtractionStripsCodeFences(t *testing.T) {
	raw := "```json\n{\"periodStart\": \"2024-04-05\", \"periodEnd\": \"2024-05-04\", \"totalAmount\": 100, \"items\": []}\n```"

	result, err := NormalizeInvoiceExtraction(raw)
	require.NoError(t, err)
	assert.Equal(t, 100.0, result.TotalAmount)
	assert.Empty(t, result.Items)
}

func TestNormalizeInvoiceExtractionRejectsMissingPeriod(t *testing.T) {
	_, err := NormalizeInvoiceExtraction(`{"periodEnd": "2024-05-04", "totalAmount": 100, "items": []}`)
	require.ErrorIs(t, err, ErrInvalidInvoiceData)

	_, err = NormalizeInvoiceExtraction(`{"periodStart": "", "periodEnd": "2024-05-04", "totalAmount": 100}`)
	require.ErrorIs(t, err, ErrInvalidInvoiceData)
}

func TestNormalizeInvoiceExtractionRejectsBadTotal(t *testing.T) {
	_, err := NormalizeInvoiceExtraction(`{"periodStart": "2024-04-05", "periodEnd": "2024-05-04", "totalAmount": -5}`)
	require.ErrorIs(t, err, ErrInvalidInvoiceData)

	_, err = NormalizeInvoiceExtraction(`{"periodStart": "2024-04-05", "periodEnd": "2024-05-04"}`)
	require.ErrorIs(t, err, ErrInvalidInvoiceData)
}

func TestNormalizeInvoiceExtractionRejectsNonJSON(t *testing.T) {
	_, err := NormalizeInvoiceExtraction("a fatura fechou em maio")
	require.ErrorIs(t, err, ErrMalformedAIResponse)
}

func TestNormalizeInvoiceExtractionCoercesNumericInstallments(t *testing.T) {
	raw := `{
		"periodStart": "2024-04-05",
		"periodEnd": "2024-05-04",
		"totalAmount": "1.534,20",
		"items": [
			{"description": "Loja", "amount": "99,90", "installmentsCurrent": 2, "installmentsTotal": 10}
		]
	}`

	result, err := NormalizeInvoiceExtraction(raw)
	require.NoError(t, err)
	assert.Equal(t, 1534.20, result.TotalAmount)

	require.Len(t, result.Items, 1)
	assert.Equal(t, 99.90, result.Items[0].Amount)
	require.NotNil(t, result.Items[0].InstallmentsCurrent)
	assert.Equal(t, "2", *result.Items[0].InstallmentsCurrent)
	require.NotNil(t, result.Items[0].InstallmentsTotal)
	assert.Equal(t, "10", *result.Items[0].InstallmentsTotal)
}
