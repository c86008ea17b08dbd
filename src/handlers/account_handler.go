package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/omnifin/omni/backend/src/logger"
	"github.com/omnifin/omni/backend/src/model"
	"github.com/omnifin/omni/backend/src/security/validation"
	"github.com/omnifin/omni/backend/src/services"
	"github.com/omnifin/omni/backend/src/utils"
)

var accountTypes = map[string]bool{
	"checking":    true,
	"savings":     true,
	"credit_card": true,
	"investment":  true,
	"cash":        true,
}

type AccountHandler struct {
	db               *sql.DB
	dashboardService services.DashboardService
}

func NewAccountHandler(db *sql.DB, dashboardService services.DashboardService) *AccountHandler {
	return &AccountHandler{db: db, dashboardService: dashboardService}
}

type accountRequest struct {
	Name    string  `json:"name"`
	Type    string  `json:"type"`
	Balance *string `json:"balance"`
	Color   string  `json:"color"`
}

func (h *AccountHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	accounts, err := model.GetAccountsByUser(h.db, userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list accounts", "error", err)
		utils.SendJSONError(w, "Falha ao buscar contas", http.StatusInternalServerError)
		return
	}
	if accounts == nil {
		accounts = []model.Account{}
	}
	utils.SendJSON(w, accounts, http.StatusOK)
}

func (h *AccountHandler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	account := model.Account{UserID: userID}
	if err := applyAccountRequest(&account, req); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := model.CreateAccount(h.db, &account); err != nil {
		logger.FromContext(r.Context()).Error("Failed to create account", "error", err)
		utils.SendJSONError(w, "Falha ao criar conta", http.StatusInternalServerError)
		return
	}
	h.dashboardService.InvalidateUserCache(userID)
	utils.SendJSON(w, account, http.StatusCreated)
}

func (h *AccountHandler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	account, err := model.GetAccountByID(h.db, userID, chi.URLParam(r, "accountID"))
	if errors.Is(err, model.ErrAccountNotFound) {
		utils.SendJSONError(w, "Conta não encontrada", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to fetch account", "error", err)
		utils.SendJSONError(w, "Falha ao buscar conta", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, account, http.StatusOK)
}

func (h *AccountHandler) HandleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	account, err := model.GetAccountByID(h.db, userID, chi.URLParam(r, "accountID"))
	if errors.Is(err, model.ErrAccountNotFound) {
		utils.SendJSONError(w, "Conta não encontrada", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to fetch account", "error", err)
		utils.SendJSONError(w, "Falha ao buscar conta", http.StatusInternalServerError)
		return
	}

	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := applyAccountRequest(account, req); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := model.UpdateAccount(h.db, account); err != nil {
		logger.FromContext(r.Context()).Error("Failed to update account", "error", err)
		utils.SendJSONError(w, "Falha ao atualizar conta", http.StatusInternalServerError)
		return
	}
	h.dashboardService.InvalidateUserCache(userID)
	utils.SendJSON(w, account, http.StatusOK)
}

func (h *AccountHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	err := model.DeleteAccount(h.db, userID, chi.URLParam(r, "accountID"))
	if errors.Is(err, model.ErrAccountNotFound) {
		utils.SendJSONError(w, "Conta não encontrada", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to delete account", "error", err)
		utils.SendJSONError(w, "Falha ao remover conta", http.StatusInternalServerError)
		return
	}
	h.dashboardService.InvalidateUserCache(userID)
	w.WriteHeader(http.StatusNoContent)
}

func applyAccountRequest(a *model.Account, req accountRequest) error {
	name := validation.CleanFreeText(req.Name)
	if name == "" {
		return errors.New("Nome da conta é obrigatório")
	}
	if len(name) > 100 {
		return errors.New("Nome da conta é muito longo")
	}
	accType := strings.ToLower(strings.TrimSpace(req.Type))
	if !accountTypes[accType] {
		return errors.New("Tipo de conta inválido")
	}
	a.Name = name
	a.Type = accType
	if req.Color != "" {
		a.Color = validation.CleanFreeText(req.Color)
	}
	if req.Balance != nil {
		balance, err := decimal.NewFromString(strings.TrimSpace(*req.Balance))
		if err != nil {
			return errors.New("Saldo inválido")
		}
		a.Balance = balance
	}
	return nil
}
