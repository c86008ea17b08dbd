package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/omnifin/omni/backend/src/config"
	"github.com/omnifin/omni/backend/src/logger"
	"github.com/omnifin/omni/backend/src/model"
	"github.com/omnifin/omni/backend/src/models"
	"github.com/omnifin/omni/backend/src/security/validation"
	"github.com/omnifin/omni/backend/src/services"
	"github.com/omnifin/omni/backend/src/statement"
	"github.com/omnifin/omni/backend/src/utils"
)

type CreditCardHandler struct {
	db             *sql.DB
	invoiceService services.InvoiceService
}

func NewCreditCardHandler(db *sql.DB, invoiceService services.InvoiceService) *CreditCardHandler {
	return &CreditCardHandler{db: db, invoiceService: invoiceService}
}

type creditCardRequest struct {
	Number      string `json:"number"`
	HolderName  string `json:"holderName"`
	ExpiryMonth string `json:"expiryMonth"`
	ExpiryYear  string `json:"expiryYear"`
	GradientKey string `json:"gradientKey"`
}

func (h *CreditCardHandler) HandleListCreditCards(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	cards, err := model.GetCreditCardsByUser(h.db, userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list credit cards", "error", err)
		utils.SendJSONError(w, "Falha ao buscar cartões", http.StatusInternalServerError)
		return
	}
	if cards == nil {
		cards = []model.CreditCard{}
	}
	utils.SendJSON(w, cards, http.StatusOK)
}

func (h *CreditCardHandler) HandleCreateCreditCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req creditCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Number) == "" {
		utils.SendJSONError(w, "Número do cartão é obrigatório", http.StatusBadRequest)
		return
	}
	holder := validation.CleanFreeText(req.HolderName)
	if holder == "" {
		utils.SendJSONError(w, "Nome do titular é obrigatório", http.StatusBadRequest)
		return
	}

	card := model.CreditCard{
		UserID:      userID,
		Last4:       req.Number,
		HolderName:  holder,
		ExpiryMonth: req.ExpiryMonth,
		ExpiryYear:  req.ExpiryYear,
		GradientKey: validation.CleanFreeText(req.GradientKey),
	}
	if err := model.CreateCreditCard(h.db, &card); err != nil {
		logger.FromContext(r.Context()).Error("Failed to create credit card", "error", err)
		utils.SendJSONError(w, "Falha ao criar cartão", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, card, http.StatusCreated)
}

func (h *CreditCardHandler) HandleDeleteCreditCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	err := model.DeleteCreditCard(h.db, userID, chi.URLParam(r, "cardID"))
	if errors.Is(err, model.ErrCreditCardNotFound) {
		utils.SendJSONError(w, "Cartão não encontrado", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to delete credit card", "error", err)
		utils.SendJSONError(w, "Falha ao remover cartão", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleImportInvoice uploads and imports an invoice for one card. The import
// is single-phase: extraction and persistence happen in the same request.
func (h *CreditCardHandler) HandleImportInvoice(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	ctxLogger := logger.FromContext(r.Context())

	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		ctxLogger.Warn("Failed to parse multipart form or request too large", "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Falha ao processar ou o arquivo é muito grande (máx %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		ctxLogger.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "Envie um arquivo da fatura (PDF, CSV ou OFX). Use o campo 'file'.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size == 0 {
		utils.SendJSONError(w, "Nenhum arquivo enviado", http.StatusBadRequest)
		return
	}
	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		ctxLogger.Warn("Uploaded invoice too large", "fileSize", fileHeader.Size, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Arquivo maior que %d MB", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateInvoiceUpload(fileHeader.Filename, clientContentType); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStatementContent(file); err != nil {
		ctxLogger.Warn("Invoice content validation failed", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	fileBytes, err := io.ReadAll(io.LimitReader(file, config.Cfg.MaxUploadSizeBytes+1))
	if err != nil {
		ctxLogger.Error("Failed to read uploaded invoice", "error", err)
		utils.SendJSONError(w, "Falha ao ler o arquivo enviado", http.StatusInternalServerError)
		return
	}

	doc := models.StatementDocument{
		Bytes:     fileBytes,
		MediaType: normalizeInvoiceMediaType(fileHeader.Filename, clientContentType),
		Filename:  fileHeader.Filename,
		Password:  r.FormValue("pdfPassword"),
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.Cfg.LLMRequestTimeout)
	defer cancel()

	result, err := h.invoiceService.ProcessInvoice(ctx, userID, chi.URLParam(r, "cardID"), doc)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrCreditCardNotFound):
			utils.SendJSONError(w, "Cartão não encontrado", http.StatusNotFound)
		case errors.Is(err, statement.ErrInvalidInvoiceData):
			utils.SendJSONError(w, "Não foi possível interpretar os dados extraídos da fatura.", http.StatusUnprocessableEntity)
		default:
			respondPipelineError(w, r, err)
		}
		return
	}

	utils.SendJSON(w, result, http.StatusOK)
}

func (h *CreditCardHandler) HandleListInvoices(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	cardID := chi.URLParam(r, "cardID")
	if _, err := model.GetCreditCardByID(h.db, userID, cardID); err != nil {
		if errors.Is(err, model.ErrCreditCardNotFound) {
			utils.SendJSONError(w, "Cartão não encontrado", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to fetch credit card", "error", err)
		utils.SendJSONError(w, "Falha ao buscar cartão", http.StatusInternalServerError)
		return
	}

	invoices, err := model.GetInvoicesByCard(h.db, userID, cardID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list invoices", "error", err)
		utils.SendJSONError(w, "Falha ao buscar faturas", http.StatusInternalServerError)
		return
	}
	if invoices == nil {
		invoices = []model.CreditCardInvoice{}
	}
	utils.SendJSON(w, invoices, http.StatusOK)
}

type invoiceDetailResponse struct {
	Invoice *model.CreditCardInvoice      `json:"invoice"`
	Items   []model.CreditCardInvoiceItem `json:"items"`
}

func (h *CreditCardHandler) HandleGetInvoice(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	invoice, err := model.GetInvoiceByID(h.db, userID, chi.URLParam(r, "invoiceID"))
	if errors.Is(err, model.ErrInvoiceNotFound) {
		utils.SendJSONError(w, "Fatura não encontrada", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to fetch invoice", "error", err)
		utils.SendJSONError(w, "Falha ao buscar fatura", http.StatusInternalServerError)
		return
	}

	items, err := model.GetInvoiceItems(h.db, invoice.ID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to fetch invoice items", "error", err)
		utils.SendJSONError(w, "Falha ao buscar lançamentos da fatura", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []model.CreditCardInvoiceItem{}
	}
	utils.SendJSON(w, invoiceDetailResponse{Invoice: invoice, Items: items}, http.StatusOK)
}

// normalizeInvoiceMediaType maps the CSV MIME zoo onto text/plain so the text
// extractor treats CSV invoices as plain text.
func normalizeInvoiceMediaType(filename, contentType string) string {
	mime := strings.ToLower(strings.Split(contentType, ";")[0])
	switch mime {
	case "text/csv", "application/csv", "application/vnd.ms-excel":
		return "text/plain"
	}
	if strings.ToLower(filepath.Ext(filename)) == ".csv" {
		return "text/plain"
	}
	return contentType
}
