package statement

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// InvestmentCategoryLabel tags transactions recognizable as investment
// movements (applications, redemptions, fixed-income purchases) so reporting
// can separate them from ordinary spending.
const InvestmentCategoryLabel = "Investimento"

// ExtractionSystemMessage pins the model to raw JSON output.
const ExtractionSystemMessage = "Responda apenas com um objeto JSON válido, sem markdown nem texto extra."

// BuildExtractionPrompt constructs the single instruction sent to the model
// for one statement. statementText is truncated at the tail to charBudget to
// respect model context limits; losing trailing content beats total failure.
// This is pure request construction, no network I/O happens here.
func BuildExtractionPrompt(statementText string, charBudget int, now time.Time) string {
	if charBudget > 0 {
		statementText = truncateOnRuneBoundary(statementText, charBudget)
	}

	var b strings.Builder
	b.WriteString("Você é um analista financeiro especialista em conversão de dados.\n")
	b.WriteString("Analise o texto bruto deste extrato bancário abaixo e extraia todas as transações financeiras.\n\n")

	b.WriteString("Regras:\n")
	b.WriteString("1. Ignore linhas que não sejam transações (cabeçalhos, saldos parciais, rodapés).\n")
	b.WriteString("2. Sugira a categoria pela descrição (ex: 'Uber' -> 'Transporte', 'Mcdonalds' -> 'Alimentação').\n")
	b.WriteString("3. O campo 'type' deve ser apenas 'income' (entradas/depósitos) ou 'expense' (saídas/gastos).\n")
	b.WriteString("4. Valores em número (ex: 1250.00). Se for negativo no extrato, use valor positivo e type 'expense'.\n")
	fmt.Fprintf(&b, "5. Data no formato ISO YYYY-MM-DD. Use o ano atual (%d) se não estiver explícito.\n", now.Year())
	fmt.Fprintf(&b, "6. Movimentos de investimento (aplicações, resgates, compra de renda fixa) recebem a categoria '%s'.\n", InvestmentCategoryLabel)
	b.WriteString("7. Se o extrato indicar o saldo final do período (procure rótulos como 'saldo' ou 'balance' no fim do documento), informe-o em 'closingBalance'; caso contrário use null.\n\n")

	b.WriteString("Retorne APENAS um objeto JSON com esta estrutura exata (sem texto antes ou depois, sem cercas de código):\n")
	b.WriteString(`{
  "transactions": [
    { "date": "YYYY-MM-DD", "description": "Descrição", "amount": 100.00, "type": "expense", "category": "Categoria" }
  ],
  "closingBalance": 1234.56
}`)
	b.WriteString("\n\n--- DADOS DO EXTRATO ---\n")
	b.WriteString(statementText)

	return b.String()
}

// truncateOnRuneBoundary cuts s to at most max bytes without splitting a
// multibyte UTF-8 sequence; Portuguese statement text is full of them.
func truncateOnRuneBoundary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
