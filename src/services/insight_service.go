package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/omnifin/omni/backend/src/llm"
	"github.com/omnifin/omni/backend/src/model"
)

const insightLookbackDays = 30

type insightServiceImpl struct {
	db        model.DBTX
	llmClient llm.Client
}

func NewInsightService(db model.DBTX, llmClient llm.Client) InsightService {
	return &insightServiceImpl{db: db, llmClient: llmClient}
}

type reportSummary struct {
	ReceitaTotal  float64             `json:"receitaTotal"`
	DespesaTotal  float64             `json:"despesaTotal"`
	Saldo         float64             `json:"saldo"`
	TopCategorias []categorySpending  `json:"topCategorias"`
}

type categorySpending struct {
	Nome  string  `json:"nome"`
	Valor float64 `json:"valor"`
}

// GetReportAnalysis summarizes the last 30 days numerically and asks the
// model for a short prose reading. The model only ever sees aggregates,
// never raw transaction rows.
func (s *insightServiceImpl) GetReportAnalysis(ctx context.Context, userID string) (string, error) {
	since := time.Now().AddDate(0, 0, -insightLookbackDays).Format("2006-01-02")
	txs, err := model.GetTransactionsSince(s.db, userID, since, dashboardRowCap)
	if err != nil {
		return "", fmt.Errorf("loading report transactions: %w", err)
	}

	revenue := decimal.Zero
	expense := decimal.Zero
	byCategory := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		switch tx.Type {
		case "income":
			revenue = revenue.Add(tx.Amount)
		case "expense":
			expense = expense.Add(tx.Amount)
			name := tx.CategoryName
			if name == "" {
				name = model.DefaultCategoryName
			}
			byCategory[name] = byCategory[name].Add(tx.Amount)
		}
	}

	top := make([]categorySpending, 0, len(byCategory))
	for name, value := range byCategory {
		top = append(top, categorySpending{Nome: name, Valor: value.InexactFloat64()})
	}
	sort.Slice(top, func(i, j int) bool { return top[i].Valor > top[j].Valor })
	if len(top) > 5 {
		top = top[:5]
	}

	summary := reportSummary{
		ReceitaTotal:  revenue.InexactFloat64(),
		DespesaTotal:  expense.InexactFloat64(),
		Saldo:         revenue.Sub(expense).InexactFloat64(),
		TopCategorias: top,
	}
	summaryJSON, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report summary: %w", err)
	}

	prompt := fmt.Sprintf(`Você é um consultor financeiro pessoal. Com base nos dados do relatório abaixo (em reais), escreva uma análise curta e objetiva em português (2 a 4 parágrafos) com:
1. Visão geral: como está a saúde financeira (receita x despesa, saldo).
2. Gastos por categoria: destaque a maior categoria e uma sugestão rápida.
3. Uma recomendação prática para o próximo mês.

Dados do relatório (valores em R$):
%s

Responda apenas com o texto da análise, sem título nem marcadores. Use tom amigável e direto.`, summaryJSON)

	analysis, err := s.llmClient.Complete(ctx, llm.CompletionRequest{
		System: "Responda apenas com o texto da análise em português, sem título nem marcadores.",
		Prompt: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("AI analysis failed: %w", err)
	}
	return analysis, nil
}
