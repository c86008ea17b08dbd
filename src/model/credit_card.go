package model

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrCreditCardNotFound = errors.New("credit card not found")

const DefaultCardGradient = "orange_red"

type CreditCard struct {
	ID          string    `json:"id"`
	UserID      string    `json:"-"`
	Last4       string    `json:"last4"`
	HolderName  string    `json:"holderName"`
	ExpiryMonth string    `json:"expiryMonth"`
	ExpiryYear  string    `json:"expiryYear"`
	GradientKey string    `json:"gradientKey"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateCreditCard scrubs the card fields before insert: only the last four
// digits of the number are kept, the expiry is stored as MM and two-digit YY.
func CreateCreditCard(db DBTX, c *CreditCard) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now()
	c.Last4 = lastFourDigits(c.Last4)
	c.HolderName = strings.TrimSpace(c.HolderName)
	if len(c.HolderName) > 100 {
		c.HolderName = c.HolderName[:100]
	}
	c.ExpiryMonth = padExpiryMonth(c.ExpiryMonth)
	c.ExpiryYear = lastTwoDigits(c.ExpiryYear)
	if c.GradientKey == "" {
		c.GradientKey = DefaultCardGradient
	}
	_, err := db.Exec(`
		INSERT INTO credit_cards (id, user_id, last4, holder_name, expiry_month, expiry_year, gradient_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Last4, c.HolderName, c.ExpiryMonth, c.ExpiryYear, c.GradientKey, c.CreatedAt,
	)
	return err
}

func GetCreditCardsByUser(db DBTX, userID string) ([]CreditCard, error) {
	rows, err := db.Query(`
		SELECT id, user_id, last4, holder_name, expiry_month, expiry_year, gradient_key, created_at
		FROM credit_cards WHERE user_id = ? ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []CreditCard
	for rows.Next() {
		var c CreditCard
		if err := rows.Scan(&c.ID, &c.UserID, &c.Last4, &c.HolderName, &c.ExpiryMonth, &c.ExpiryYear, &c.GradientKey, &c.CreatedAt); err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func GetCreditCardByID(db DBTX, userID, cardID string) (*CreditCard, error) {
	row := db.QueryRow(`
		SELECT id, user_id, last4, holder_name, expiry_month, expiry_year, gradient_key, created_at
		FROM credit_cards WHERE id = ? AND user_id = ?`,
		cardID, userID,
	)
	var c CreditCard
	err := row.Scan(&c.ID, &c.UserID, &c.Last4, &c.HolderName, &c.ExpiryMonth, &c.ExpiryYear, &c.GradientKey, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCreditCardNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func DeleteCreditCard(db DBTX, userID, cardID string) error {
	res, err := db.Exec(`DELETE FROM credit_cards WHERE id = ? AND user_id = ?`, cardID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCreditCardNotFound
	}
	return nil
}

func lastFourDigits(s string) string {
	var digits []byte
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			digits = append(digits, s[i])
		}
	}
	if len(digits) > 4 {
		digits = digits[len(digits)-4:]
	}
	return string(digits)
}

func padExpiryMonth(s string) string {
	s = strings.TrimSpace(s)
	if len(s) == 1 {
		return "0" + s
	}
	if len(s) > 2 {
		return s[:2]
	}
	return s
}

func lastTwoDigits(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 2 {
		return s[len(s)-2:]
	}
	return s
}
