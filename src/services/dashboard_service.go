package services

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/omnifin/omni/backend/src/logger"
	"github.com/omnifin/omni/backend/src/model"
	"github.com/omnifin/omni/backend/src/statement"
	"github.com/omnifin/omni/backend/src/transfers"
)

const (
	ckDashboardStats       = "agg_dashboard_stats_user_%s"
	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute

	dashboardRowCap = 1000
)

// DashboardStats are month-to-date totals. Income and Expense exclude
// same-day cross-account pairs that look like self-transfers, and Investment
// separates movements tagged with the investment category from ordinary
// spending.
type DashboardStats struct {
	Income             float64             `json:"income"`
	Expense            float64             `json:"expense"`
	Investment         float64             `json:"investment"`
	Total              float64             `json:"total"`
	RecentTransactions []model.Transaction `json:"recentTransactions"`
}

type dashboardServiceImpl struct {
	db         model.DBTX
	statsCache *cache.Cache
}

func NewDashboardService(db model.DBTX, statsCache *cache.Cache) DashboardService {
	return &dashboardServiceImpl{db: db, statsCache: statsCache}
}

func (s *dashboardServiceImpl) GetStats(userID string) (*DashboardStats, error) {
	cacheKey := fmt.Sprintf(ckDashboardStats, userID)
	if cached, found := s.statsCache.Get(cacheKey); found {
		return cached.(*DashboardStats), nil
	}

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).Format("2006-01-02")
	txs, err := model.GetTransactionsSince(s.db, userID, monthStart, dashboardRowCap)
	if err != nil {
		return nil, fmt.Errorf("loading month transactions: %w", err)
	}

	// Dashboard aggregation uses the strict same-amount/same-date variant of
	// the shared classifier before summing.
	paired := transfers.PairedTransactionIDs(txs, transfers.Options{DateToleranceDays: 0})

	income := decimal.Zero
	expense := decimal.Zero
	investment := decimal.Zero
	investmentNorm := model.NormalizeCategoryName(statement.InvestmentCategoryLabel)
	for _, tx := range txs {
		if paired[tx.ID] {
			continue
		}
		switch tx.Type {
		case "income":
			income = income.Add(tx.Amount)
		case "expense":
			if model.NormalizeCategoryName(tx.CategoryName) == investmentNorm {
				investment = investment.Add(tx.Amount)
				continue
			}
			expense = expense.Add(tx.Amount)
		}
	}

	recent := txs
	if len(recent) > 5 {
		recent = recent[:5]
	}

	stats := &DashboardStats{
		Income:             income.InexactFloat64(),
		Expense:            expense.InexactFloat64(),
		Investment:         investment.InexactFloat64(),
		Total:              income.Sub(expense).Sub(investment).InexactFloat64(),
		RecentTransactions: recent,
	}

	s.statsCache.Set(cacheKey, stats, DefaultCacheExpiration)
	return stats, nil
}

func (s *dashboardServiceImpl) InvalidateUserCache(userID string) {
	s.statsCache.Delete(fmt.Sprintf(ckDashboardStats, userID))
	logger.L.Debug("Dashboard cache invalidated", "userID", userID)
}
