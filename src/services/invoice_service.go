package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/omnifin/omni/backend/src/extractor"
	"github.com/omnifin/omni/backend/src/llm"
	"github.com/omnifin/omni/backend/src/logger"
	"github.com/omnifin/omni/backend/src/model"
	"github.com/omnifin/omni/backend/src/models"
	"github.com/omnifin/omni/backend/src/statement"
)

type invoiceServiceImpl struct {
	db               *sql.DB
	llmClient        llm.Client
	promptCharBudget int
}

func NewInvoiceService(db *sql.DB, llmClient llm.Client, promptCharBudget int) InvoiceService {
	return &invoiceServiceImpl{
		db:               db,
		llmClient:        llmClient,
		promptCharBudget: promptCharBudget,
	}
}

// ProcessInvoice imports a credit card invoice in one pass: card ownership
// check, text extraction, LLM extraction, then a transactional persist of the
// invoice and all its items. A second LLM call produces spending suggestions;
// that call is best effort and its failure never blocks the import.
func (s *invoiceServiceImpl) ProcessInvoice(ctx context.Context, userID, cardID string, doc models.StatementDocument) (*InvoiceImportResult, error) {
	startTime := time.Now()
	logger.L.Info("ProcessInvoice START", "userID", userID, "cardID", cardID, "filename", doc.Filename, "bytes", len(doc.Bytes))

	card, err := model.GetCreditCardByID(s.db, userID, cardID)
	if err != nil {
		return nil, err
	}

	text, err := extractor.ExtractText(doc)
	if err != nil {
		return nil, err
	}

	prompt := statement.BuildInvoicePrompt(text, s.promptCharBudget, time.Now())
	raw, err := s.llmClient.Complete(ctx, llm.CompletionRequest{
		System:    statement.ExtractionSystemMessage,
		Prompt:    prompt,
		ForceJSON: true,
	})
	if err != nil {
		return nil, fmt.Errorf("AI extraction failed: %w", err)
	}

	extraction, err := statement.NormalizeInvoiceExtraction(raw)
	if err != nil {
		return nil, err
	}

	suggestions := s.fetchSuggestions(ctx, extraction)

	total := decimal.NewFromFloat(extraction.TotalAmount).Round(2)
	invoice := &model.CreditCardInvoice{
		CreditCardID:  card.ID,
		UserID:        userID,
		PeriodStart:   extraction.PeriodStart,
		PeriodEnd:     extraction.PeriodEnd,
		DueDate:       extraction.DueDate,
		TotalAmount:   total,
		AISuggestions: suggestions,
	}
	items := make([]model.CreditCardInvoiceItem, 0, len(extraction.Items))
	for _, item := range extraction.Items {
		items = append(items, model.CreditCardInvoiceItem{
			Description:         item.Description,
			Amount:              decimal.NewFromFloat(item.Amount).Round(2),
			Date:                item.Date,
			InstallmentsCurrent: item.InstallmentsCurrent,
			InstallmentsTotal:   item.InstallmentsTotal,
		})
	}

	dbTx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning invoice transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := dbTx.Rollback(); rbErr != nil {
				logger.L.Error("Error rolling back invoice transaction", "userID", userID, "rollbackError", rbErr)
			}
		}
	}()

	if err := model.CreateCreditCardInvoice(dbTx, invoice, items); err != nil {
		return nil, fmt.Errorf("persisting invoice: %w", err)
	}
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("committing invoice: %w", err)
	}
	committed = true

	logger.L.Info("ProcessInvoice DONE",
		"userID", userID,
		"cardID", cardID,
		"invoiceID", invoice.ID,
		"items", len(items),
		"hasSuggestions", suggestions != nil,
		"duration", time.Since(startTime).String())

	return &InvoiceImportResult{
		InvoiceID:     invoice.ID,
		TotalAmount:   total.StringFixed(2),
		PeriodEnd:     invoice.PeriodEnd,
		ItemCount:     len(items),
		AISuggestions: suggestions,
	}, nil
}

func (s *invoiceServiceImpl) fetchSuggestions(ctx context.Context, extraction *models.InvoiceExtraction) *string {
	prompt := statement.BuildInvoiceSuggestionsPrompt(
		extraction.TotalAmount, extraction.PeriodStart, extraction.PeriodEnd, len(extraction.Items))
	raw, err := s.llmClient.Complete(ctx, llm.CompletionRequest{
		System: "Responda apenas com o texto em português, sem título.",
		Prompt: prompt,
	})
	if err != nil {
		logger.L.Warn("Invoice suggestions call failed, continuing without", "error", err)
		return nil
	}
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil
	}
	return &text
}
