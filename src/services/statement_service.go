package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/omnifin/omni/backend/src/extractor"
	"github.com/omnifin/omni/backend/src/llm"
	"github.com/omnifin/omni/backend/src/logger"
	"github.com/omnifin/omni/backend/src/model"
	"github.com/omnifin/omni/backend/src/models"
	"github.com/omnifin/omni/backend/src/statement"
	"github.com/omnifin/omni/backend/src/transfers"
)

type statementServiceImpl struct {
	db               *sql.DB
	llmClient        llm.Client
	detector         *transfers.Detector
	dashboardService DashboardService
	promptCharBudget int
}

func NewStatementService(
	db *sql.DB,
	llmClient llm.Client,
	detector *transfers.Detector,
	dashboardService DashboardService,
	promptCharBudget int,
) StatementService {
	return &statementServiceImpl{
		db:               db,
		llmClient:        llmClient,
		detector:         detector,
		dashboardService: dashboardService,
		promptCharBudget: promptCharBudget,
	}
}

// ProcessStatement runs extraction end to end: file text, LLM round trip,
// defensive normalization. It fails closed: a text-extraction failure aborts
// before the model is ever contacted. Zero transactions with no upstream
// error is a valid, if unusual, empty result.
func (s *statementServiceImpl) ProcessStatement(ctx context.Context, userID string, doc models.StatementDocument) (*models.ExtractionResult, error) {
	startTime := time.Now()
	logger.L.Info("ProcessStatement START", "userID", userID, "filename", doc.Filename, "bytes", len(doc.Bytes))

	text, err := extractor.ExtractText(doc)
	if err != nil {
		return nil, err
	}

	prompt := statement.BuildExtractionPrompt(text, s.promptCharBudget, time.Now())
	raw, err := s.llmClient.Complete(ctx, llm.CompletionRequest{
		System:    statement.ExtractionSystemMessage,
		Prompt:    prompt,
		ForceJSON: true,
	})
	if err != nil {
		return nil, fmt.Errorf("AI extraction failed: %w", err)
	}

	result, err := statement.NormalizeExtraction(raw)
	if err != nil {
		return nil, err
	}

	logger.L.Info("ProcessStatement DONE",
		"userID", userID,
		"transactions", len(result.Transactions),
		"dropped", result.Dropped,
		"hasClosingBalance", result.ClosingBalance != nil,
		"duration", time.Since(startTime).String())
	return result, nil
}

// ImportTransactions persists a confirmed batch. Category resolution, the
// bulk insert, the closing-balance overwrite and the import record all run
// in one database transaction: either the statement lands fully reconciled
// or nothing changes. A repeated fingerprint is rejected before any write.
func (s *statementServiceImpl) ImportTransactions(userID, accountID string, txs []models.ExtractedTransaction, closingBalance *float64) (*models.ImportResult, *models.TransferReport, error) {
	if len(txs) == 0 {
		return nil, nil, ErrNothingToImport
	}
	// The whole batch is validated before any database work: an invalid row
	// must surface as ErrInvalidImport, not as a constraint failure out of
	// category resolution.
	for i, tx := range txs {
		if err := validateImportRow(tx); err != nil {
			return nil, nil, fmt.Errorf("%w: row %d: %v", ErrInvalidImport, i, err)
		}
	}

	if _, err := model.GetAccountByID(s.db, userID, accountID); err != nil {
		return nil, nil, err
	}

	fingerprint := importFingerprint(accountID, txs)
	duplicate, err := model.HasStatementImport(s.db, userID, fingerprint)
	if err != nil {
		return nil, nil, fmt.Errorf("checking import fingerprint: %w", err)
	}
	if duplicate {
		return nil, nil, ErrDuplicateImport
	}

	dbTx, err := s.db.Begin()
	if err != nil {
		return nil, nil, fmt.Errorf("beginning import transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := dbTx.Rollback(); rbErr != nil {
				logger.L.Error("Error rolling back import transaction", "userID", userID, "rollbackError", rbErr)
			}
		}
	}()

	// Category resolution is per distinct (name, type); a failure here is
	// fatal to the whole import since everything shares one batch.
	categoryIDs := make(map[string]string)
	for _, tx := range txs {
		key := tx.Type + "\x00" + model.NormalizeCategoryName(tx.Category)
		if _, ok := categoryIDs[key]; ok {
			continue
		}
		category, err := model.GetOrCreateCategory(dbTx, userID, tx.Category, tx.Type)
		if err != nil {
			return nil, nil, fmt.Errorf("resolving category %q: %w", tx.Category, err)
		}
		categoryIDs[key] = category.ID
	}

	inserted := 0
	for i, tx := range txs {
		categoryID := categoryIDs[tx.Type+"\x00"+model.NormalizeCategoryName(tx.Category)]
		row := &model.Transaction{
			UserID:      userID,
			AccountID:   accountID,
			CategoryID:  &categoryID,
			Amount:      decimal.NewFromFloat(tx.Amount).Round(2),
			Type:        tx.Type,
			Description: tx.Description,
			Date:        tx.Date,
			AiGenerated: true,
		}
		if err := model.InsertTransaction(dbTx, row); err != nil {
			return nil, nil, fmt.Errorf("inserting transaction %d: %w", i, err)
		}
		inserted++
	}

	// The statement's stated closing balance is ground truth: manual
	// entries, fees and rounding make incremental summation drift over
	// time, so the stored balance is overwritten wholesale.
	balanceUpdated := false
	var closingStr *string
	if closingBalance != nil && !math.IsNaN(*closingBalance) {
		balance := decimal.NewFromFloat(*closingBalance).Round(2)
		if err := model.SetAccountBalance(dbTx, userID, accountID, balance); err != nil {
			return nil, nil, fmt.Errorf("updating account balance: %w", err)
		}
		str := balance.StringFixed(2)
		closingStr = &str
		balanceUpdated = true
	}

	imp := &model.StatementImport{
		UserID:           userID,
		AccountID:        accountID,
		Fingerprint:      fingerprint,
		TransactionCount: inserted,
		ClosingBalance:   closingStr,
	}
	if err := model.RecordStatementImport(dbTx, imp); err != nil {
		return nil, nil, fmt.Errorf("recording statement import: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing import: %w", err)
	}
	committed = true

	if s.dashboardService != nil {
		s.dashboardService.InvalidateUserCache(userID)
	}
	logger.L.Info("Statement import committed",
		"userID", userID, "accountID", accountID, "inserted", inserted, "balanceUpdated", balanceUpdated)

	// Transfer detection is advisory. The import is already committed, so a
	// failure here is logged and the report comes back nil.
	report, err := s.detector.DetectTransfers(userID)
	if err != nil {
		logger.L.Error("Transfer detection failed after import", "userID", userID, "error", err)
		report = nil
	}

	return &models.ImportResult{Inserted: inserted, BalanceUpdated: balanceUpdated}, report, nil
}

func validateImportRow(tx models.ExtractedTransaction) error {
	if _, err := time.Parse("2006-01-02", tx.Date); err != nil {
		return fmt.Errorf("invalid date %q", tx.Date)
	}
	if tx.Amount < 0 || math.IsNaN(tx.Amount) || math.IsInf(tx.Amount, 0) {
		return fmt.Errorf("invalid amount %v", tx.Amount)
	}
	if tx.Type != "income" && tx.Type != "expense" {
		return fmt.Errorf("invalid type %q", tx.Type)
	}
	return nil
}

// importFingerprint hashes the account, the normalized rows in order, and
// the batch's date range. Re-submitting the same statement into the same
// account produces the same digest.
func importFingerprint(accountID string, txs []models.ExtractedTransaction) string {
	minDate, maxDate := "", ""
	for _, tx := range txs {
		if minDate == "" || tx.Date < minDate {
			minDate = tx.Date
		}
		if tx.Date > maxDate {
			maxDate = tx.Date
		}
	}

	var b strings.Builder
	b.WriteString(accountID)
	b.WriteString("|")
	b.WriteString(minDate)
	b.WriteString("|")
	b.WriteString(maxDate)
	for _, tx := range txs {
		fmt.Fprintf(&b, "|%s\x1f%s\x1f%.2f\x1f%s\x1f%s",
			tx.Date, tx.Description, tx.Amount, tx.Type, model.NormalizeCategoryName(tx.Category))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
