package model

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Category struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Name      string    `json:"name"`
	Type      string    `json:"type"` // income or expense
	CreatedAt time.Time `json:"created_at"`
}

const maxCategoryNameLen = 200

// DefaultCategoryName is used when the LLM supplies a blank category label.
const DefaultCategoryName = "Outros"

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeCategoryName folds a category name for lookup so trivial spelling
// variants ("Alimentação" vs "alimentacao") resolve to the same category.
func NormalizeCategoryName(name string) string {
	stripped, _, err := transform.String(diacriticStripper, name)
	if err != nil {
		stripped = name
	}
	return strings.ToLower(strings.TrimSpace(stripped))
}

// GetOrCreateCategory looks a category up by (user, normalized name, type)
// and creates it when absent. The insert goes through ON CONFLICT DO NOTHING
// and a re-select, so two imports racing on the same new label both end up
// with the one row the unique index admits.
func GetOrCreateCategory(db DBTX, userID, name, categoryType string) (*Category, error) {
	displayName := strings.TrimSpace(name)
	if len(displayName) > maxCategoryNameLen {
		cut := maxCategoryNameLen
		for cut > 0 && !utf8.RuneStart(displayName[cut]) {
			cut--
		}
		displayName = displayName[:cut]
	}
	if displayName == "" {
		displayName = DefaultCategoryName
	}
	normalized := NormalizeCategoryName(displayName)

	if c, err := findCategory(db, userID, normalized, categoryType); err == nil {
		return c, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	id := uuid.NewString()
	_, err := db.Exec(`
		INSERT INTO categories (id, user_id, name, normalized_name, type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, normalized_name, type) DO NOTHING`,
		id, userID, displayName, normalized, categoryType, time.Now(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating category %q: %w", displayName, err)
	}

	c, err := findCategory(db, userID, normalized, categoryType)
	if err != nil {
		return nil, fmt.Errorf("category %q vanished after upsert: %w", displayName, err)
	}
	return c, nil
}

func findCategory(db DBTX, userID, normalized, categoryType string) (*Category, error) {
	row := db.QueryRow(`
		SELECT id, user_id, name, type, created_at
		FROM categories
		WHERE user_id = ? AND normalized_name = ? AND type = ?`,
		userID, normalized, categoryType,
	)
	var c Category
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func GetCategoriesByUser(db DBTX, userID string) ([]Category, error) {
	rows, err := db.Query(`
		SELECT id, user_id, name, type, created_at
		FROM categories WHERE user_id = ? ORDER BY name`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
