package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCategoryName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Alimentação", "alimentacao"},
		{"alimentacao", "alimentacao"},
		{"  ALIMENTAÇÃO  ", "alimentacao"},
		{"Saúde", "saude"},
		{"Transporte", "transporte"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeCategoryName(tt.input), "input %q", tt.input)
	}
}

func TestGetOrCreateCategoryDeduplicatesVariants(t *testing.T) {
	db := newTestDB(t)
	userID := "user-1"

	first, err := GetOrCreateCategory(db, userID, "Alimentação", "expense")
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.Equal(t, "Alimentação", first.Name)

	second, err := GetOrCreateCategory(db, userID, "alimentacao", "expense")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "diacritic and case variants must resolve to one category")

	// The stored display name stays as first written.
	assert.Equal(t, "Alimentação", second.Name)
}

func TestGetOrCreateCategorySeparatesByType(t *testing.T) {
	db := newTestDB(t)
	userID := "user-1"

	expense, err := GetOrCreateCategory(db, userID, "Freelance", "expense")
	require.NoError(t, err)
	income, err := GetOrCreateCategory(db, userID, "Freelance", "income")
	require.NoError(t, err)
	assert.NotEqual(t, expense.ID, income.ID)
}

func TestGetOrCreateCategorySeparatesByUser(t *testing.T) {
	db := newTestDB(t)

	a, err := GetOrCreateCategory(db, "user-a", "Lazer", "expense")
	require.NoError(t, err)
	b, err := GetOrCreateCategory(db, "user-b", "Lazer", "expense")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestGetOrCreateCategoryBlankFallsBackToDefault(t *testing.T) {
	db := newTestDB(t)

	c, err := GetOrCreateCategory(db, "user-1", "   ", "expense")
	require.NoError(t, err)
	assert.Equal(t, DefaultCategoryName, c.Name)
}
