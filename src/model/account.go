package model

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrAccountNotFound = errors.New("account not found")

// Account balance is a stored snapshot, not a sum over transactions. It is
// overwritten wholesale when a statement import supplies a closing balance.
type Account struct {
	ID        string          `json:"id"`
	UserID    string          `json:"-"`
	Name      string          `json:"name"`
	Type      string          `json:"type"` // checking, savings, credit_card, investment, cash
	Balance   decimal.Decimal `json:"balance"`
	Color     string          `json:"color"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func CreateAccount(db DBTX, a *Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Color == "" {
		a.Color = "#000000"
	}
	_, err := db.Exec(`
		INSERT INTO accounts (id, user_id, name, type, balance, color, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Name, a.Type, a.Balance.StringFixed(2), a.Color, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

func GetAccountsByUser(db DBTX, userID string) ([]Account, error) {
	rows, err := db.Query(`
		SELECT id, user_id, name, type, balance, color, created_at, updated_at
		FROM accounts WHERE user_id = ? ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

func GetAccountByID(db DBTX, userID, accountID string) (*Account, error) {
	row := db.QueryRow(`
		SELECT id, user_id, name, type, balance, color, created_at, updated_at
		FROM accounts WHERE id = ? AND user_id = ?`,
		accountID, userID,
	)
	var a Account
	var balance string
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &balance, &a.Color, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, err
	}
	return &a, nil
}

func UpdateAccount(db DBTX, a *Account) error {
	a.UpdatedAt = time.Now()
	res, err := db.Exec(`
		UPDATE accounts SET name = ?, type = ?, balance = ?, color = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		a.Name, a.Type, a.Balance.StringFixed(2), a.Color, a.UpdatedAt, a.ID, a.UserID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetAccountBalance overwrites the stored balance with the statement's
// closing balance. The update is scoped to (accountID, userID) so one user
// can never reconcile another user's account.
func SetAccountBalance(db DBTX, userID, accountID string, balance decimal.Decimal) error {
	res, err := db.Exec(`
		UPDATE accounts SET balance = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		balance.StringFixed(2), time.Now(), accountID, userID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func DeleteAccount(db DBTX, userID, accountID string) error {
	res, err := db.Exec(`DELETE FROM accounts WHERE id = ? AND user_id = ?`, accountID, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

type accountScanner interface {
	Scan(dest ...any) error
}

func scanAccount(s accountScanner) (*Account, error) {
	var a Account
	var balance string
	if err := s.Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &balance, &a.Color, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, err
	}
	return &a, nil
}
