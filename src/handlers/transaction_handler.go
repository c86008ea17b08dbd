package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/omnifin/omni/backend/src/logger"
	"github.com/omnifin/omni/backend/src/model"
	"github.com/omnifin/omni/backend/src/security/validation"
	"github.com/omnifin/omni/backend/src/services"
	"github.com/omnifin/omni/backend/src/utils"
)

var transactionTypes = map[string]bool{
	"income":   true,
	"expense":  true,
	"transfer": true,
}

type TransactionHandler struct {
	db               *sql.DB
	dashboardService services.DashboardService
}

func NewTransactionHandler(db *sql.DB, dashboardService services.DashboardService) *TransactionHandler {
	return &TransactionHandler{db: db, dashboardService: dashboardService}
}

func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	filters := model.TransactionFilters{
		DateFrom:   q.Get("dateFrom"),
		DateTo:     q.Get("dateTo"),
		Type:       q.Get("type"),
		CategoryID: q.Get("categoryId"),
		AccountID:  q.Get("accountId"),
		Search:     validation.CleanFreeText(q.Get("search")),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			filters.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filters.Offset = n
		}
	}

	txs, err := model.ListTransactions(h.db, userID, filters)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list transactions", "error", err)
		utils.SendJSONError(w, "Falha ao buscar transações", http.StatusInternalServerError)
		return
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	utils.SendJSON(w, txs, http.StatusOK)
}

type createTransactionRequest struct {
	AccountID   string `json:"accountId"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Category    string `json:"category"`
	IsRecurring bool   `json:"isRecurring"`
}

func (h *TransactionHandler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	ctxLogger := logger.FromContext(r.Context())

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	txType := strings.ToLower(strings.TrimSpace(req.Type))
	if !transactionTypes[txType] {
		utils.SendJSONError(w, "Tipo de transação inválido", http.StatusBadRequest)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil || amount.IsNegative() {
		utils.SendJSONError(w, "Valor inválido", http.StatusBadRequest)
		return
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		utils.SendJSONError(w, "Data inválida. Use o formato AAAA-MM-DD.", http.StatusBadRequest)
		return
	}

	// Account ownership is enforced before the insert so a stolen account id
	// fails with 404, not a dangling foreign key.
	if _, err := model.GetAccountByID(h.db, userID, req.AccountID); err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			utils.SendJSONError(w, "Conta não encontrada", http.StatusNotFound)
		} else {
			ctxLogger.Error("Failed to verify account", "error", err)
			utils.SendJSONError(w, "Falha ao verificar conta", http.StatusInternalServerError)
		}
		return
	}

	tx := model.Transaction{
		UserID:      userID,
		AccountID:   req.AccountID,
		Amount:      amount,
		Type:        txType,
		Description: validation.CleanFreeText(req.Description),
		Date:        req.Date,
		IsRecurring: req.IsRecurring,
	}

	if txType != "transfer" {
		category, err := model.GetOrCreateCategory(h.db, userID, validation.CleanFreeText(req.Category), txType)
		if err != nil {
			ctxLogger.Error("Failed to resolve category", "error", err)
			utils.SendJSONError(w, "Falha ao resolver categoria", http.StatusInternalServerError)
			return
		}
		tx.CategoryID = &category.ID
		tx.CategoryName = category.Name
	}

	if err := model.InsertTransaction(h.db, &tx); err != nil {
		ctxLogger.Error("Failed to insert transaction", "error", err)
		utils.SendJSONError(w, "Falha ao criar transação", http.StatusInternalServerError)
		return
	}
	h.dashboardService.InvalidateUserCache(userID)
	utils.SendJSON(w, tx, http.StatusCreated)
}

func (h *TransactionHandler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	categories, err := model.GetCategoriesByUser(h.db, userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list categories", "error", err)
		utils.SendJSONError(w, "Falha ao buscar categorias", http.StatusInternalServerError)
		return
	}
	if categories == nil {
		categories = []model.Category{}
	}
	utils.SendJSON(w, categories, http.StatusOK)
}
