package services

import (
	"context"
	"errors"

	"github.com/omnifin/omni/backend/src/models"
)

// Define common service errors
var (
	ErrNothingToImport = errors.New("no transactions to import")
	ErrDuplicateImport = errors.New("this statement was already imported into this account")
	ErrInvalidImport   = errors.New("import batch contains invalid transactions")
)

// StatementService drives the two-phase statement import flow.
//
// Phase 1 (ProcessStatement) never writes: it extracts text, runs the LLM
// round trip and returns validated candidates for the user to review.
// Phase 2 (ImportTransactions) persists what the user confirmed, reconciles
// the account balance, and then runs transfer detection; a detection failure
// never rolls back the committed import, so the report may be nil on a
// successful import.
type StatementService interface {
	ProcessStatement(ctx context.Context, userID string, doc models.StatementDocument) (*models.ExtractionResult, error)
	ImportTransactions(userID, accountID string, txs []models.ExtractedTransaction, closingBalance *float64) (*models.ImportResult, *models.TransferReport, error)
}

// InvoiceService imports credit card invoices. Unlike statements there is no
// review phase: the extracted invoice and its items are persisted in one
// step, mirroring how issuers publish a closed billing cycle.
type InvoiceService interface {
	ProcessInvoice(ctx context.Context, userID, cardID string, doc models.StatementDocument) (*InvoiceImportResult, error)
}

// InvoiceImportResult reports what one invoice import wrote.
type InvoiceImportResult struct {
	InvoiceID     string  `json:"invoiceId"`
	TotalAmount   string  `json:"totalAmount"`
	PeriodEnd     string  `json:"periodEnd"`
	ItemCount     int     `json:"itemCount"`
	AISuggestions *string `json:"aiSuggestions"`
}

// DashboardService aggregates month-to-date stats with self-transfer
// exclusion.
type DashboardService interface {
	GetStats(userID string) (*DashboardStats, error)
	InvalidateUserCache(userID string)
}

// InsightService asks the LLM for a short prose reading of the user's
// report numbers. Advisory only.
type InsightService interface {
	GetReportAnalysis(ctx context.Context, userID string) (string, error)
}
