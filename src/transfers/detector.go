package transfers

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/omnifin/omni/backend/src/logger"
	"github.com/omnifin/omni/backend/src/model"
	"github.com/omnifin/omni/backend/src/models"
)

// Detector runs the pairing heuristic over a trailing window of a user's
// transactions. The window and row cap bound cost; this is a heuristic
// review aid, not an exhaustive audit.
type Detector struct {
	db            model.DBTX
	lookbackDays  int
	rowCap        int
	dateTolerance int
}

func NewDetector(db model.DBTX, lookbackDays, rowCap, dateToleranceDays int) *Detector {
	return &Detector{
		db:            db,
		lookbackDays:  lookbackDays,
		rowCap:        rowCap,
		dateTolerance: dateToleranceDays,
	}
}

// DetectTransfers analyzes the user's recent transactions across all
// accounts. With fewer than two accounts self-transfers are meaningless and
// the result is a skipped report, not an error.
func (d *Detector) DetectTransfers(userID string) (*models.TransferReport, error) {
	accounts, err := model.GetAccountsByUser(d.db, userID)
	if err != nil {
		return nil, fmt.Errorf("loading accounts for transfer detection: %w", err)
	}
	if len(accounts) < 2 {
		return &models.TransferReport{
			Skipped: true,
			Summary: "Análise de transferências requer pelo menos duas contas cadastradas.",
			Pairs:   []models.TransferCandidatePair{},
		}, nil
	}

	since := time.Now().AddDate(0, 0, -d.lookbackDays).Format("2006-01-02")
	txs, err := model.GetTransactionsSince(d.db, userID, since, d.rowCap)
	if err != nil {
		return nil, fmt.Errorf("loading transactions for transfer detection: %w", err)
	}

	accountNames := make(map[string]string, len(accounts))
	for _, a := range accounts {
		accountNames[a.ID] = a.Name
	}

	pairs := Classify(txs, accountNames, Options{DateToleranceDays: d.dateTolerance})
	logger.L.Info("Transfer detection completed",
		"userID", userID, "windowDays", d.lookbackDays, "transactions", len(txs), "pairs", len(pairs))

	return &models.TransferReport{
		Skipped: false,
		Summary: buildSummary(pairs, d.lookbackDays),
		Pairs:   pairs,
	}, nil
}

func buildSummary(pairs []models.TransferCandidatePair, lookbackDays int) string {
	if len(pairs) == 0 {
		return fmt.Sprintf("Nenhuma transferência entre suas contas foi identificada nos últimos %d dias.", lookbackDays)
	}
	total := decimal.Zero
	for _, p := range pairs {
		total = total.Add(p.Amount)
	}
	return fmt.Sprintf(
		"Identificamos %d possível(is) transferência(s) entre suas contas nos últimos %d dias, totalizando R$ %s. Esses valores são movimentações internas e não contam como receita ou despesa.",
		len(pairs), lookbackDays, total.StringFixed(2))
}
