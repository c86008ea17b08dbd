package model

import (
	"time"

	"github.com/google/uuid"
)

// StatementImport records one confirmed import batch. The fingerprint is a
// content hash over the account, the normalized transaction rows, and the
// statement date range; the unique index on (user_id, fingerprint) is what
// makes re-importing the same statement rejectable.
type StatementImport struct {
	ID               string    `json:"id"`
	UserID           string    `json:"-"`
	AccountID        string    `json:"account_id"`
	Fingerprint      string    `json:"fingerprint"`
	TransactionCount int       `json:"transaction_count"`
	ClosingBalance   *string   `json:"closing_balance"`
	CreatedAt        time.Time `json:"created_at"`
}

func RecordStatementImport(db DBTX, imp *StatementImport) error {
	if imp.ID == "" {
		imp.ID = uuid.NewString()
	}
	imp.CreatedAt = time.Now()
	_, err := db.Exec(`
		INSERT INTO statement_imports (id, user_id, account_id, fingerprint, transaction_count, closing_balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		imp.ID, imp.UserID, imp.AccountID, imp.Fingerprint, imp.TransactionCount, imp.ClosingBalance, imp.CreatedAt,
	)
	return err
}

func HasStatementImport(db DBTX, userID, fingerprint string) (bool, error) {
	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM statement_imports WHERE user_id = ? AND fingerprint = ?`,
		userID, fingerprint,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
