package model

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInvoiceNotFound = errors.New("invoice not found")

type CreditCardInvoice struct {
	ID            string          `json:"id"`
	CreditCardID  string          `json:"creditCardId"`
	UserID        string          `json:"-"`
	PeriodStart   string          `json:"periodStart"`
	PeriodEnd     string          `json:"periodEnd"`
	DueDate       *string         `json:"dueDate"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	AISuggestions *string         `json:"aiSuggestions"`
	CreatedAt     time.Time       `json:"created_at"`
}

type CreditCardInvoiceItem struct {
	ID                  string          `json:"id"`
	InvoiceID           string          `json:"-"`
	Description         *string         `json:"description"`
	Amount              decimal.Decimal `json:"amount"`
	Date                *string         `json:"date"`
	InstallmentsCurrent *string         `json:"installmentsCurrent"`
	InstallmentsTotal   *string         `json:"installmentsTotal"`
}

// CreateCreditCardInvoice inserts the invoice and all of its items. The
// caller passes a transaction so a failed item insert never leaves a
// half-written invoice behind.
func CreateCreditCardInvoice(db DBTX, inv *CreditCardInvoice, items []CreditCardInvoiceItem) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	inv.CreatedAt = time.Now()
	_, err := db.Exec(`
		INSERT INTO credit_card_invoices (id, credit_card_id, user_id, period_start, period_end, due_date, total_amount, ai_suggestions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.CreditCardID, inv.UserID, inv.PeriodStart, inv.PeriodEnd, inv.DueDate,
		inv.TotalAmount.StringFixed(2), inv.AISuggestions, inv.CreatedAt,
	)
	if err != nil {
		return err
	}
	for i := range items {
		item := &items[i]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.InvoiceID = inv.ID
		_, err := db.Exec(`
			INSERT INTO credit_card_invoice_items (id, invoice_id, description, amount, date, installments_current, installments_total)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.InvoiceID, item.Description, item.Amount.StringFixed(2),
			item.Date, item.InstallmentsCurrent, item.InstallmentsTotal,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func GetInvoicesByCard(db DBTX, userID, cardID string) ([]CreditCardInvoice, error) {
	rows, err := db.Query(`
		SELECT id, credit_card_id, user_id, period_start, period_end, due_date, total_amount, ai_suggestions, created_at
		FROM credit_card_invoices WHERE credit_card_id = ? AND user_id = ?
		ORDER BY period_end DESC`,
		cardID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []CreditCardInvoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

func GetInvoiceByID(db DBTX, userID, invoiceID string) (*CreditCardInvoice, error) {
	row := db.QueryRow(`
		SELECT id, credit_card_id, user_id, period_start, period_end, due_date, total_amount, ai_suggestions, created_at
		FROM credit_card_invoices WHERE id = ? AND user_id = ?`,
		invoiceID, userID,
	)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func GetInvoiceItems(db DBTX, invoiceID string) ([]CreditCardInvoiceItem, error) {
	rows, err := db.Query(`
		SELECT id, invoice_id, description, amount, date, installments_current, installments_total
		FROM credit_card_invoice_items WHERE invoice_id = ? ORDER BY date, id`,
		invoiceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CreditCardInvoiceItem
	for rows.Next() {
		var item CreditCardInvoiceItem
		var amount string
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Description, &amount,
			&item.Date, &item.InstallmentsCurrent, &item.InstallmentsTotal); err != nil {
			return nil, err
		}
		if item.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanInvoice(s accountScanner) (*CreditCardInvoice, error) {
	var inv CreditCardInvoice
	var total string
	if err := s.Scan(&inv.ID, &inv.CreditCardID, &inv.UserID, &inv.PeriodStart, &inv.PeriodEnd,
		&inv.DueDate, &total, &inv.AISuggestions, &inv.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if inv.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	return &inv, nil
}
