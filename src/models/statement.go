package models

// StatementDocument is an uploaded bank statement awaiting text extraction.
// It is never persisted: the bytes live for the duration of one request and
// are discarded once the raw text has been pulled out.
type StatementDocument struct {
	Bytes     []byte
	MediaType string // client-declared Content-Type
	Filename  string
	Password  string // optional PDF password
}

// ExtractedTransaction is one transaction candidate produced by the LLM from
// statement text. It is not yet associated with an account; the user reviews
// the list before anything is written.
type ExtractedTransaction struct {
	Date        string  `json:"date"`        // ISO calendar date, YYYY-MM-DD
	Description string  `json:"description"`
	Amount      float64 `json:"amount"` // non-negative magnitude; sign carried by Type
	Type        string  `json:"type"`   // "income" or "expense"
	Category    string  `json:"category"`
}

// ExtractionResult is the normalized output of one statement extraction.
// ClosingBalance is nil when the statement does not state one; in that case
// the stored account balance is left untouched.
type ExtractionResult struct {
	Transactions   []ExtractedTransaction `json:"transactions"`
	ClosingBalance *float64               `json:"closingBalance"`

	// Dropped counts entries the validator discarded for missing required
	// fields. Kept for diagnostics; dropped entries themselves are gone.
	Dropped int `json:"-"`
}

// ImportResult reports what a confirmed Phase 2 import wrote.
type ImportResult struct {
	Inserted       int  `json:"inserted"`
	BalanceUpdated bool `json:"balanceUpdated"`
}
