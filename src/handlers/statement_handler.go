package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/omnifin/omni/backend/src/config"
	"github.com/omnifin/omni/backend/src/extractor"
	"github.com/omnifin/omni/backend/src/llm"
	"github.com/omnifin/omni/backend/src/logger"
	"github.com/omnifin/omni/backend/src/model"
	"github.com/omnifin/omni/backend/src/models"
	"github.com/omnifin/omni/backend/src/security/validation"
	"github.com/omnifin/omni/backend/src/services"
	"github.com/omnifin/omni/backend/src/statement"
	"github.com/omnifin/omni/backend/src/transfers"
	"github.com/omnifin/omni/backend/src/utils"
)

type StatementHandler struct {
	statementService services.StatementService
	detector         *transfers.Detector
}

func NewStatementHandler(service services.StatementService, detector *transfers.Detector) *StatementHandler {
	return &StatementHandler{
		statementService: service,
		detector:         detector,
	}
}

type processStatementResponse struct {
	Transactions   []models.ExtractedTransaction `json:"transactions"`
	ClosingBalance *float64                      `json:"closingBalance"`
	Dropped        int                           `json:"dropped,omitempty"`
}

// HandleProcessStatement is Phase 1: multipart upload in, extracted
// candidates out. Nothing is persisted; the client holds the pending list
// until the user confirms.
func (h *StatementHandler) HandleProcessStatement(w http.ResponseWriter, r *http.Request) {
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
		utils.SendJSONError(w, "Nenhum arquivo enviado. Use o campo 'file'.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size == 0 {
		utils.SendJSONError(w, "Nenhum arquivo enviado", http.StatusBadRequest)
		return
	}
	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		ctxLogger.Warn("Uploaded file too large", "fileSize", fileHeader.Size, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Arquivo maior que %d MB", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateStatementUpload(fileHeader.Filename, clientContentType); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStatementContent(file); err != nil {
		ctxLogger.Warn("Statement content validation failed", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	fileBytes, err := io.ReadAll(io.LimitReader(file, config.Cfg.MaxUploadSizeBytes+1))
	if err != nil {
		ctxLogger.Error("Failed to read uploaded file", "error", err)
		utils.SendJSONError(w, "Falha ao ler o arquivo enviado", http.StatusInternalServerError)
		return
	}

	doc := models.StatementDocument{
		Bytes:     fileBytes,
		MediaType: clientContentType,
		Filename:  fileHeader.Filename,
		Password:  r.FormValue("pdfPassword"),
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.Cfg.LLMRequestTimeout)
	defer cancel()

	result, err := h.statementService.ProcessStatement(ctx, userID, doc)
	if err != nil {
		respondPipelineError(w, r, err)
		return
	}

	utils.SendJSON(w, processStatementResponse{
		Transactions:   result.Transactions,
		ClosingBalance: result.ClosingBalance,
		Dropped:        result.Dropped,
	}, http.StatusOK)
}

type importStatementRequest struct {
	AccountID      string                        `json:"accountId"`
	Transactions   []models.ExtractedTransaction `json:"transactions"`
	ClosingBalance *float64                      `json:"closingBalance"`
}

type importStatementResponse struct {
	Inserted       int                    `json:"inserted"`
	BalanceUpdated bool                   `json:"balanceUpdated"`
	TransferReport *models.TransferReport `json:"transferReport,omitempty"`
}

// HandleImportStatement is Phase 2: the user confirmed the reviewed list and
// it gets persisted into the chosen account.
func (h *StatementHandler) HandleImportStatement(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	ctxLogger := logger.FromContext(r.Context())

	var req importStatementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.AccountID == "" {
		utils.SendJSONError(w, "Conta é obrigatória", http.StatusBadRequest)
		return
	}

	result, report, err := h.statementService.ImportTransactions(userID, req.AccountID, req.Transactions, req.ClosingBalance)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNothingToImport):
			utils.SendJSONError(w, "Nenhuma transação para importar.", http.StatusBadRequest)
		case errors.Is(err, services.ErrDuplicateImport):
			utils.SendJSONError(w, "Este extrato já foi importado para esta conta.", http.StatusConflict)
		case errors.Is(err, services.ErrInvalidImport):
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, model.ErrAccountNotFound):
			utils.SendJSONError(w, "Conta não encontrada", http.StatusNotFound)
		default:
			ctxLogger.Error("Statement import failed", "accountID", req.AccountID, "error", err)
			utils.SendJSONError(w, "Falha ao importar transações", http.StatusInternalServerError)
		}
		return
	}

	utils.SendJSON(w, importStatementResponse{
		Inserted:       result.Inserted,
		BalanceUpdated: result.BalanceUpdated,
		TransferReport: report,
	}, http.StatusOK)
}

// HandleAnalyzeTransfers runs transfer detection on demand, outside the
// import flow.
func (h *StatementHandler) HandleAnalyzeTransfers(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	report, err := h.detector.DetectTransfers(userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Transfer analysis failed", "error", err)
		utils.SendJSONError(w, "Falha ao analisar transferências", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, report, http.StatusOK)
}

type pipelineError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondPipelineError maps extraction pipeline failures to targeted
// responses so the UI can offer the right remedy (password prompt vs "try a
// different file").
func respondPipelineError(w http.ResponseWriter, r *http.Request, err error) {
	ctxLogger := logger.FromContext(r.Context())

	var status int
	var code string
	var message string

	switch {
	case errors.Is(err, extractor.ErrUnsupportedFormat):
		status, message = http.StatusBadRequest, "Formato inválido. Use PDF, TXT ou OFX."
	case errors.Is(err, extractor.ErrFileTooLarge):
		status, message = http.StatusBadRequest, "Arquivo maior que 10 MB"
	case errors.Is(err, extractor.ErrEmptyExtraction):
		status, message = http.StatusUnprocessableEntity, "Não foi possível extrair texto do arquivo."
	case errors.Is(err, extractor.ErrPasswordRequired):
		status, code, message = http.StatusUnprocessableEntity, "password_required", "O PDF está protegido por senha."
	case errors.Is(err, extractor.ErrPasswordIncorrect):
		status, code, message = http.StatusUnprocessableEntity, "password_incorrect", "Senha do PDF incorreta."
	case errors.Is(err, llm.ErrMissingAPIKey):
		status, message = http.StatusServiceUnavailable, "Nenhum provedor de IA configurado. Defina GEMINI_API_KEY."
	case errors.Is(err, statement.ErrMalformedAIResponse):
		status, message = http.StatusBadGateway, "A resposta da IA não pôde ser interpretada. Tente novamente."
	default:
		ctxLogger.Error("Statement processing failed", "error", err)
		// Upstream-service errors are reported verbatim for diagnosability.
		status, message = http.StatusBadGateway, err.Error()
	}

	ctxLogger.Warn("Statement pipeline error", "status", status, "code", code, "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(pipelineError{Error: message, Code: code})
}
