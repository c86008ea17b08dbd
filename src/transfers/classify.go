package transfers

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/omnifin/omni/backend/src/model"
	"github.com/omnifin/omni/backend/src/models"
)

// Options tunes the pairing heuristic. The import-time detector allows a few
// days of posting-date skew; dashboard aggregation uses the strict zero-day
// variant. Both call sites share this one classifier.
type Options struct {
	// DateToleranceDays is the maximum gap, in days, between the two legs.
	// 0 means the legs must carry the same date.
	DateToleranceDays int
}

type matchedPair struct {
	out model.Transaction
	in  model.Transaction
}

// match pairs an expense on one account with an income on a different
// account when magnitudes are equal and dates fall within tolerance. Each
// transaction is used in at most one pair.
func match(txs []model.Transaction, opts Options) []matchedPair {
	type leg struct {
		tx   model.Transaction
		date time.Time
		used bool
	}

	var expenses, incomes []*leg
	for _, tx := range txs {
		date, err := time.Parse("2006-01-02", tx.Date)
		if err != nil {
			continue
		}
		switch tx.Type {
		case "expense":
			expenses = append(expenses, &leg{tx: tx, date: date})
		case "income":
			incomes = append(incomes, &leg{tx: tx, date: date})
		}
	}

	var pairs []matchedPair
	for _, out := range expenses {
		for _, in := range incomes {
			if in.used {
				continue
			}
			if in.tx.AccountID == out.tx.AccountID {
				continue
			}
			if !sameMagnitude(out.tx.Amount, in.tx.Amount) {
				continue
			}
			if daysApart(out.date, in.date) > opts.DateToleranceDays {
				continue
			}
			in.used = true
			pairs = append(pairs, matchedPair{out: out.tx, in: in.tx})
			break
		}
	}
	return pairs
}

// Classify finds candidate self-transfer pairs in a transaction list.
// Detected pairs are advisory; callers must not reclassify the underlying
// records on the strength of a heuristic match.
func Classify(txs []model.Transaction, accountNames map[string]string, opts Options) []models.TransferCandidatePair {
	matched := match(txs, opts)
	pairs := make([]models.TransferCandidatePair, 0, len(matched))
	for _, m := range matched {
		pairs = append(pairs, models.TransferCandidatePair{
			AccountOutID:      m.out.AccountID,
			AccountOutName:    accountNames[m.out.AccountID],
			AccountInID:       m.in.AccountID,
			AccountInName:     accountNames[m.in.AccountID],
			Amount:            m.out.Amount,
			Date:              m.out.Date,
			DescriptionOut:    m.out.Description,
			DescriptionIn:     m.in.Description,
			RelevantForTotals: false,
		})
	}
	return pairs
}

// PairedTransactionIDs returns the ids of both legs of every detected pair,
// for aggregation code that excludes them from income/expense sums.
func PairedTransactionIDs(txs []model.Transaction, opts Options) map[string]bool {
	paired := make(map[string]bool)
	for _, m := range match(txs, opts) {
		paired[m.out.ID] = true
		paired[m.in.ID] = true
	}
	return paired
}

// Amounts are stored at 2-decimal precision, so rounding before comparison
// absorbs any float noise upstream of persistence.
func sameMagnitude(a, b decimal.Decimal) bool {
	return a.Round(2).Equal(b.Round(2))
}

func daysApart(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}
