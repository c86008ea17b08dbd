package services

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/omnifin/omni/backend/src/extractor"
	"github.com/omnifin/omni/backend/src/llm"
	"github.com/omnifin/omni/backend/src/logger"
	"github.com/omnifin/omni/backend/src/model"
	"github.com/omnifin/omni/backend/src/models"
	"github.com/omnifin/omni/backend/src/transfers"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(on)")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	migrations, err := filepath.Glob(filepath.Join("..", "..", "db", "migrations", "*.up.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	sort.Strings(migrations)
	for _, path := range migrations {
		schema, err := os.ReadFile(path)
		require.NoError(t, err)
		_, err = db.Exec(string(schema))
		require.NoError(t, err)
	}

	return db
}

type mockLLM struct {
	response string
	err      error
	calls    int
	lastReq  llm.CompletionRequest
}

func (m *mockLLM) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	m.calls++
	m.lastReq = req
	return m.response, m.err
}

func newTestStatementService(t *testing.T, db *sql.DB, client llm.Client) StatementService {
	t.Helper()
	detector := transfers.NewDetector(db, 90, 600, 2)
	dashboard := NewDashboardService(db, cache.New(time.Minute, time.Minute))
	return NewStatementService(db, client, detector, dashboard, 120000)
}

func TestProcessStatementEndToEnd(t *testing.T) {
	db := newTestDB(t)
	mock := &mockLLM{response: `{
		"transactions": [
			{"date": "2024-05-02", "description": "Supermercado", "amount": 152.30, "type": "expense", "category": "Alimentação"},
			{"date": "2024-05-05", "description": "Salário", "amount": 5000.00, "type": "income", "category": "Salário"}
		],
		"closingBalance": 2974.10
	}`}
	svc := newTestStatementService(t, db, mock)

	doc := models.StatementDocument{
		Bytes:     []byte("02/05 SUPERMERCADO -152,30\n05/05 SALARIO 5.000,00\nSALDO FINAL 2.974,10\n"),
		MediaType: "text/plain",
		Filename:  "extrato.txt",
	}

	result, err := svc.ProcessStatement(context.Background(), "user-1", doc)
	require.NoError(t, err)
	require.Len(t, result.Transactions, 2)
	require.NotNil(t, result.ClosingBalance)
	assert.Equal(t, 2974.10, *result.ClosingBalance)

	assert.Equal(t, 1, mock.calls)
	assert.True(t, mock.lastReq.ForceJSON)
	assert.Contains(t, mock.lastReq.Prompt, "SUPERMERCADO")
}

func TestProcessStatementFailsClosedOnExtraction(t *testing.T) {
	db := newTestDB(t)
	mock := &mockLLM{response: "{}"}
	svc := newTestStatementService(t, db, mock)

	doc := models.StatementDocument{
		Bytes:     []byte("a,b,c"),
		MediaType: "text/csv",
		Filename:  "extrato.csv",
	}

	_, err := svc.ProcessStatement(context.Background(), "user-1", doc)
	require.ErrorIs(t, err, extractor.ErrUnsupportedFormat)
	assert.Equal(t, 0, mock.calls, "the model must not be contacted when extraction fails")
}

func importBatch() []models.ExtractedTransaction {
	return []models.ExtractedTransaction{
		{Date: "2024-05-02", Description: "Supermercado", Amount: 152.30, Type: "expense", Category: "Alimentação"},
		{Date: "2024-05-03", Description: "Restaurante", Amount: 80.00, Type: "expense", Category: "alimentacao"},
		{Date: "2024-05-05", Description: "Salário", Amount: 5000.00, Type: "income", Category: "Salário"},
	}
}

func createAccount(t *testing.T, db *sql.DB, userID, name string) *model.Account {
	t.Helper()
	account := &model.Account{UserID: userID, Name: name, Type: "checking"}
	require.NoError(t, model.CreateAccount(db, account))
	return account
}

func TestImportTransactionsPersistsBatch(t *testing.T) {
	db := newTestDB(t)
	svc := newTestStatementService(t, db, &mockLLM{})
	userID := "user-1"
	account := createAccount(t, db, userID, "Corrente")

	closing := 1000.00
	result, report, err := svc.ImportTransactions(userID, account.ID, importBatch(), &closing)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Inserted)
	assert.True(t, result.BalanceUpdated)

	// Single-account user: detection runs but reports itself as skipped.
	require.NotNil(t, report)
	assert.True(t, report.Skipped)

	txs, err := model.ListTransactions(db, userID, model.TransactionFilters{})
	require.NoError(t, err)
	require.Len(t, txs, 3)
	for _, tx := range txs {
		assert.True(t, tx.AiGenerated)
		require.NotNil(t, tx.CategoryID)
	}

	// "Alimentação" and "alimentacao" resolve to one category.
	categories, err := model.GetCategoriesByUser(db, userID)
	require.NoError(t, err)
	assert.Len(t, categories, 2)

	// The stated closing balance wins regardless of what the rows sum to.
	got, err := model.GetAccountByID(db, userID, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000.00", got.Balance.StringFixed(2))
}

func TestImportTransactionsNilBalanceLeavesAccountUntouched(t *testing.T) {
	db := newTestDB(t)
	svc := newTestStatementService(t, db, &mockLLM{})
	userID := "user-1"
	account := createAccount(t, db, userID, "Corrente")

	result, _, err := svc.ImportTransactions(userID, account.ID, importBatch(), nil)
	require.NoError(t, err)
	assert.False(t, result.BalanceUpdated)

	got, err := model.GetAccountByID(db, userID, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", got.Balance.StringFixed(2))
}

func TestImportTransactionsRejectsDuplicateStatement(t *testing.T) {
	db := newTestDB(t)
	svc := newTestStatementService(t, db, &mockLLM{})
	userID := "user-1"
	account := createAccount(t, db, userID, "Corrente")

	_, _, err := svc.ImportTransactions(userID, account.ID, importBatch(), nil)
	require.NoError(t, err)

	_, _, err = svc.ImportTransactions(userID, account.ID, importBatch(), nil)
	require.ErrorIs(t, err, ErrDuplicateImport)

	txs, err := model.ListTransactions(db, userID, model.TransactionFilters{})
	require.NoError(t, err)
	assert.Len(t, txs, 3, "the duplicate batch must not add rows")
}

func TestImportTransactionsSameBatchDifferentAccounts(t *testing.T) {
	db := newTestDB(t)
	svc := newTestStatementService(t, db, &mockLLM{})
	userID := "user-1"
	first := createAccount(t, db, userID, "Corrente")
	second := createAccount(t, db, userID, "Poupança")

	_, _, err := svc.ImportTransactions(userID, first.ID, importBatch(), nil)
	require.NoError(t, err)

	// The fingerprint includes the account, so the same statement can land
	// in a different account.
	_, _, err = svc.ImportTransactions(userID, second.ID, importBatch(), nil)
	require.NoError(t, err)
}

func TestImportTransactionsEmptyBatch(t *testing.T) {
	db := newTestDB(t)
	svc := newTestStatementService(t, db, &mockLLM{})

	_, _, err := svc.ImportTransactions("user-1", "any", nil, nil)
	require.ErrorIs(t, err, ErrNothingToImport)
}

func TestImportTransactionsUnknownAccount(t *testing.T) {
	db := newTestDB(t)
	svc := newTestStatementService(t, db, &mockLLM{})

	_, _, err := svc.ImportTransactions("user-1", "missing", importBatch(), nil)
	require.ErrorIs(t, err, model.ErrAccountNotFound)
}

func TestImportTransactionsInvalidRowRejectsWholeBatch(t *testing.T) {
	db := newTestDB(t)
	svc := newTestStatementService(t, db, &mockLLM{})
	userID := "user-1"
	account := createAccount(t, db, userID, "Corrente")

	batch := importBatch()
	batch = append(batch, models.ExtractedTransaction{
		Date: "2024-05-06", Description: "Ruim", Amount: 10, Type: "estorno", Category: "Estornos",
	})

	_, _, err := svc.ImportTransactions(userID, account.ID, batch, nil)
	require.ErrorIs(t, err, ErrInvalidImport)

	txs, err := model.ListTransactions(db, userID, model.TransactionFilters{})
	require.NoError(t, err)
	assert.Empty(t, txs, "a partially valid batch must not leave rows behind")

	// Validation runs before category resolution, so the bad row's "estorno"
	// type never reaches the categories table and nothing is created for the
	// valid rows either.
	categories, err := model.GetCategoriesByUser(db, userID)
	require.NoError(t, err)
	assert.Empty(t, categories, "a rejected batch must not create categories")
}

func TestImportTransactionsDetectionFailureDoesNotBlockImport(t *testing.T) {
	db := newTestDB(t)
	userID := "user-1"
	account := createAccount(t, db, userID, "Corrente")

	// A detector over a closed handle fails on every query.
	brokenDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, brokenDB.Close())
	detector := transfers.NewDetector(brokenDB, 90, 600, 2)
	dashboard := NewDashboardService(db, cache.New(time.Minute, time.Minute))
	svc := NewStatementService(db, &mockLLM{}, detector, dashboard, 120000)

	result, report, err := svc.ImportTransactions(userID, account.ID, importBatch(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Inserted)
	assert.Nil(t, report)

	txs, err := model.ListTransactions(db, userID, model.TransactionFilters{})
	require.NoError(t, err)
	assert.Len(t, txs, 3)
}
