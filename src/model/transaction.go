package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction amounts are unsigned magnitudes; the direction of money is
// carried by Type. AiGenerated marks provenance only and does not change
// validation rules.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"-"`
	AccountID   string          `json:"account_id"`
	CategoryID  *string         `json:"category_id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"` // income, expense, transfer
	Description string          `json:"description"`
	Date        string          `json:"date"` // YYYY-MM-DD
	IsRecurring bool            `json:"is_recurring"`
	AiGenerated bool            `json:"ai_generated"`
	CreatedAt   time.Time       `json:"created_at"`

	// Joined display fields, populated by list queries.
	CategoryName string `json:"category_name,omitempty"`
	AccountName  string `json:"account_name,omitempty"`
}

func InsertTransaction(db DBTX, t *Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	_, err := db.Exec(`
		INSERT INTO transactions
			(id, user_id, account_id, category_id, amount, type, description, date, is_recurring, ai_generated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.AccountID, t.CategoryID, t.Amount.StringFixed(2), t.Type,
		t.Description, t.Date, t.IsRecurring, t.AiGenerated, t.CreatedAt,
	)
	return err
}

// TransactionFilters narrows ListTransactions. Zero values mean "no filter".
type TransactionFilters struct {
	DateFrom   string
	DateTo     string
	Type       string
	CategoryID string
	AccountID  string
	Search     string
	Limit      int
	Offset     int
}

func ListTransactions(db DBTX, userID string, f TransactionFilters) ([]Transaction, error) {
	conditions := []string{"t.user_id = ?"}
	args := []any{userID}

	if f.DateFrom != "" {
		conditions = append(conditions, "t.date >= ?")
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		conditions = append(conditions, "t.date <= ?")
		args = append(args, f.DateTo)
	}
	if f.Type != "" {
		conditions = append(conditions, "t.type = ?")
		args = append(args, f.Type)
	}
	if f.CategoryID != "" {
		conditions = append(conditions, "t.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.AccountID != "" {
		conditions = append(conditions, "t.account_id = ?")
		args = append(args, f.AccountID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		conditions = append(conditions, "t.description LIKE ? COLLATE NOCASE")
		args = append(args, "%"+s+"%")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, f.Offset)

	query := fmt.Sprintf(`
		SELECT t.id, t.user_id, t.account_id, t.category_id, t.amount, t.type,
		       COALESCE(t.description, ''), t.date, t.is_recurring, t.ai_generated, t.created_at,
		       COALESCE(c.name, ''), COALESCE(a.name, '')
		FROM transactions t
		LEFT JOIN categories c ON t.category_id = c.id
		LEFT JOIN accounts a ON t.account_id = a.id
		WHERE %s
		ORDER BY t.date DESC, t.created_at DESC
		LIMIT ? OFFSET ?`, strings.Join(conditions, " AND "))

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var t Transaction
		var amount string
		if err := rows.Scan(&t.ID, &t.UserID, &t.AccountID, &t.CategoryID, &amount, &t.Type,
			&t.Description, &t.Date, &t.IsRecurring, &t.AiGenerated, &t.CreatedAt,
			&t.CategoryName, &t.AccountName); err != nil {
			return nil, err
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// GetTransactionsSince returns the user's transactions across all accounts
// dated on or after sinceDate, newest first, capped at limit rows. This is
// the windowed dataset transfer detection runs over.
func GetTransactionsSince(db DBTX, userID, sinceDate string, limit int) ([]Transaction, error) {
	return ListTransactions(db, userID, TransactionFilters{DateFrom: sinceDate, Limit: limit})
}
