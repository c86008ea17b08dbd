package models

// InvoiceItemExtraction is one purchase line pulled from a credit card
// invoice. Installment fields keep whatever textual form the issuer printed
// ("3" out of "10"); they are display data, not arithmetic inputs.
type InvoiceItemExtraction struct {
	Description         *string `json:"description"`
	Amount              float64 `json:"amount"`
	Date                *string `json:"date"` // ISO calendar date when stated
	InstallmentsCurrent *string `json:"installmentsCurrent"`
	InstallmentsTotal   *string `json:"installmentsTotal"`
}

// InvoiceExtraction is the normalized output of one invoice extraction.
// PeriodStart, PeriodEnd and TotalAmount are mandatory; an invoice without
// them is rejected rather than persisted half-empty.
type InvoiceExtraction struct {
	PeriodStart string                  `json:"periodStart"`
	PeriodEnd   string                  `json:"periodEnd"`
	DueDate     *string                 `json:"dueDate"`
	TotalAmount float64                 `json:"totalAmount"`
	Items       []InvoiceItemExtraction `json:"items"`
}
