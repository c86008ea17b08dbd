package transfers

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnifin/omni/backend/src/model"
)

func tx(id, accountID, txType string, amount float64, date string) model.Transaction {
	return model.Transaction{
		ID:        id,
		AccountID: accountID,
		Amount:    decimal.NewFromFloat(amount),
		Type:      txType,
		Date:      date,
	}
}

var testAccountNames = map[string]string{
	"acc-a": "Corrente",
	"acc-b": "Poupança",
}

func TestClassifyPairsWithinTolerance(t *testing.T) {
	txs := []model.Transaction{
		tx("t1", "acc-a", "expense", 500.00, "2024-03-01"),
		tx("t2", "acc-b", "income", 500.00, "2024-03-02"),
	}

	pairs := Classify(txs, testAccountNames, Options{DateToleranceDays: 2})
	require.Len(t, pairs, 1)

	pair := pairs[0]
	assert.Equal(t, "acc-a", pair.AccountOutID)
	assert.Equal(t, "Corrente", pair.AccountOutName)
	assert.Equal(t, "acc-b", pair.AccountInID)
	assert.Equal(t, "Poupança", pair.AccountInName)
	assert.Equal(t, "500.00", pair.Amount.StringFixed(2))
	assert.False(t, pair.RelevantForTotals)
}

func TestClassifyRejectsOutsideTolerance(t *testing.T) {
	txs := []model.Transaction{
		tx("t1", "acc-a", "expense", 500.00, "2024-03-01"),
		tx("t2", "acc-b", "income", 500.00, "2024-03-10"),
	}

	pairs := Classify(txs, testAccountNames, Options{DateToleranceDays: 2})
	assert.Empty(t, pairs)
}

func TestClassifyStrictModeRequiresSameDate(t *testing.T) {
	txs := []model.Transaction{
		tx("t1", "acc-a", "expense", 500.00, "2024-03-01"),
		tx("t2", "acc-b", "income", 500.00, "2024-03-02"),
	}

	assert.Empty(t, Classify(txs, testAccountNames, Options{DateToleranceDays: 0}))

	txs[1].Date = "2024-03-01"
	assert.Len(t, Classify(txs, testAccountNames, Options{DateToleranceDays: 0}), 1)
}

func TestClassifyRejectsSameAccount(t *testing.T) {
	txs := []model.Transaction{
		tx("t1", "acc-a", "expense", 500.00, "2024-03-01"),
		tx("t2", "acc-a", "income", 500.00, "2024-03-01"),
	}

	assert.Empty(t, Classify(txs, testAccountNames, Options{DateToleranceDays: 2}))
}

func TestClassifyRejectsDifferentAmounts(t *testing.T) {
	txs := []model.Transaction{
		tx("t1", "acc-a", "expense", 500.00, "2024-03-01"),
		tx("t2", "acc-b", "income", 500.01, "2024-03-01"),
	}

	assert.Empty(t, Classify(txs, testAccountNames, Options{DateToleranceDays: 2}))
}

func TestClassifyEachLegUsedOnce(t *testing.T) {
	// Two expenses compete for one income; only one pair may form.
	txs := []model.Transaction{
		tx("t1", "acc-a", "expense", 200.00, "2024-03-01"),
		tx("t2", "acc-a", "expense", 200.00, "2024-03-01"),
		tx("t3", "acc-b", "income", 200.00, "2024-03-01"),
	}

	pairs := Classify(txs, testAccountNames, Options{DateToleranceDays: 2})
	assert.Len(t, pairs, 1)
}

func TestPairedTransactionIDsCoversBothLegs(t *testing.T) {
	txs := []model.Transaction{
		tx("t1", "acc-a", "expense", 150.00, "2024-03-01"),
		tx("t2", "acc-b", "income", 150.00, "2024-03-01"),
		tx("t3", "acc-a", "expense", 70.00, "2024-03-01"),
	}

	paired := PairedTransactionIDs(txs, Options{DateToleranceDays: 0})
	assert.True(t, paired["t1"])
	assert.True(t, paired["t2"])
	assert.False(t, paired["t3"])
}

func TestClassifySkipsUnparseableDates(t *testing.T) {
	txs := []model.Transaction{
		tx("t1", "acc-a", "expense", 100.00, "01/03/2024"),
		tx("t2", "acc-b", "income", 100.00, "2024-03-01"),
	}

	assert.Empty(t, Classify(txs, testAccountNames, Options{DateToleranceDays: 2}))
}
