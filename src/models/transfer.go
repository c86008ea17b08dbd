package models

import "github.com/shopspring/decimal"

// TransferCandidatePair is a derived finding: two transactions on different
// accounts of the same user that look like opposite legs of a self-transfer.
// Pairs are surfaced for review only and never written back to the
// transaction records.
type TransferCandidatePair struct {
	AccountOutID      string          `json:"accountOutId"`
	AccountOutName    string          `json:"accountOutName"`
	AccountInID       string          `json:"accountInId"`
	AccountInName     string          `json:"accountInName"`
	Amount            decimal.Decimal `json:"amount"`
	Date              string          `json:"date"` // date of the outgoing leg
	DescriptionOut    string          `json:"descriptionOut"`
	DescriptionIn     string          `json:"descriptionIn"`
	RelevantForTotals bool            `json:"relevantForTotals"` // always false for detected pairs
}

// TransferReport is the result of one transfer-detection pass.
type TransferReport struct {
	Skipped bool                    `json:"skipped"` // true when the user has fewer than 2 accounts
	Summary string                  `json:"summary"`
	Pairs   []TransferCandidatePair `json:"pairs"`
}
