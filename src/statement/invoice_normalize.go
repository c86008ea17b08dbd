package statement

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/omnifin/omni/backend/src/models"
	"github.com/omnifin/omni/backend/src/security/validation"
)

// ErrInvalidInvoiceData means the model returned parseable JSON that is still
// unusable as an invoice: the billing period or the total amount is missing.
var ErrInvalidInvoiceData = errors.New("extracted invoice data is incomplete")

// NormalizeInvoiceExtraction parses raw model output into an
// InvoiceExtraction. Period start, period end and a non-negative total are
// mandatory; items are coerced leniently, with missing optional fields kept
// as nil rather than dropping the item.
func NormalizeInvoiceExtraction(raw string) (*models.InvoiceExtraction, error) {
	clean := stripCodeFences(raw)

	var parsed map[string]any
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAIResponse, err)
	}

	periodStart, okStart := parsed["periodStart"].(string)
	periodEnd, okEnd := parsed["periodEnd"].(string)
	if !okStart || !okEnd || strings.TrimSpace(periodStart) == "" || strings.TrimSpace(periodEnd) == "" {
		return nil, fmt.Errorf("%w: missing billing period", ErrInvalidInvoiceData)
	}
	total, ok := coerceAmount(parsed["totalAmount"])
	if !ok || total < 0 {
		return nil, fmt.Errorf("%w: missing or negative total amount", ErrInvalidInvoiceData)
	}

	result := &models.InvoiceExtraction{
		PeriodStart: strings.TrimSpace(periodStart),
		PeriodEnd:   strings.TrimSpace(periodEnd),
		DueDate:     optionalDateField(parsed["dueDate"]),
		TotalAmount: total,
		Items:       []models.InvoiceItemExtraction{},
	}

	items, _ := parsed["items"].([]any)
	for _, entry := range items {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		amount, ok := coerceAmount(obj["amount"])
		if !ok {
			amount = 0
		}
		if amount < 0 {
			amount = -amount
		}
		item := models.InvoiceItemExtraction{
			Amount:              amount,
			Date:                optionalDateField(obj["date"]),
			InstallmentsCurrent: optionalTextField(obj["installmentsCurrent"]),
			InstallmentsTotal:   optionalTextField(obj["installmentsTotal"]),
		}
		if desc, ok := obj["description"].(string); ok {
			cleaned := truncateOnRuneBoundary(validation.CleanFreeText(desc), maxDescriptionLen)
			if cleaned != "" {
				item.Description = &cleaned
			}
		}
		result.Items = append(result.Items, item)
	}

	return result, nil
}

func optionalDateField(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	return &s
}

// optionalTextField accepts a string or a bare number; issuers print
// installment counters either way.
func optionalTextField(v any) *string {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" || strings.EqualFold(s, "null") {
			return nil
		}
		return &s
	case float64:
		s := strconv.FormatFloat(val, 'f', -1, 64)
		return &s
	default:
		return nil
	}
}
