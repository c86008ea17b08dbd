package statement

import (
	"fmt"
	"strings"
	"time"
)

// BuildInvoicePrompt constructs the extraction instruction for one credit
// card invoice. Like the statement prompt, the invoice text is tail-truncated
// to charBudget on a rune boundary.
func BuildInvoicePrompt(invoiceText string, charBudget int, now time.Time) string {
	if charBudget > 0 {
		invoiceText = truncateOnRuneBoundary(invoiceText, charBudget)
	}

	var b strings.Builder
	b.WriteString("Você é um analista financeiro. Analise o texto bruto de uma FATURA de cartão de crédito abaixo e extraia:\n\n")
	fmt.Fprintf(&b, "1. Período da fatura: data de início e fim do período (formato YYYY-MM-DD). Use o ano atual (%d) se não estiver explícito.\n", now.Year())
	b.WriteString("2. Data de vencimento (formato YYYY-MM-DD), se aparecer.\n")
	b.WriteString("3. Valor total da fatura (número positivo, ex: 1500.00).\n")
	b.WriteString("4. Lista de lançamentos: para cada compra/gasto na fatura, extraia descrição (estabelecimento ou texto resumido), valor (número positivo), data da compra (YYYY-MM-DD se houver), e parcelas (ex: \"1/3\" vira installmentsCurrent \"1\" e installmentsTotal \"3\").\n\n")

	b.WriteString("Regras:\n")
	b.WriteString("- Valores sempre em número (ex: 99.90). Ignore sinais negativos; considere como valor da compra.\n")
	b.WriteString("- Se uma data não existir, use null para esse campo.\n")
	b.WriteString("- Descrição: texto curto e legível do estabelecimento/lançamento.\n\n")

	b.WriteString("Retorne APENAS um objeto JSON válido, sem texto antes ou depois, nesta estrutura exata:\n")
	b.WriteString(`{
  "periodStart": "YYYY-MM-DD",
  "periodEnd": "YYYY-MM-DD",
  "dueDate": "YYYY-MM-DD ou null",
  "totalAmount": 1234.56,
  "items": [
    {
      "description": "Descrição do lançamento",
      "amount": 99.90,
      "date": "YYYY-MM-DD ou null",
      "installmentsCurrent": "1 ou null",
      "installmentsTotal": "3 ou null"
    }
  ]
}`)
	b.WriteString("\n\n--- TEXTO DA FATURA ---\n")
	b.WriteString(invoiceText)

	return b.String()
}

// BuildInvoiceSuggestionsPrompt asks for 2 to 4 short sentences of financial
// health advice for an invoice summary. The call that uses it is optional;
// its failure never blocks the invoice import.
func BuildInvoiceSuggestionsPrompt(totalAmount float64, periodStart, periodEnd string, itemCount int) string {
	summary := fmt.Sprintf("Total: R$ %.2f; Período: %s a %s; %d lançamentos.", totalAmount, periodStart, periodEnd, itemCount)

	var b strings.Builder
	b.WriteString("Com base nesta fatura de cartão de crédito, escreva 2 a 4 frases curtas em português com sugestões de saúde financeira (ex: evitar parcelar demais, cuidado com gastos em restaurantes, pagar antes do vencimento). Seja objetivo e amigável.\n\n")
	b.WriteString("Resumo: ")
	b.WriteString(summary)
	b.WriteString("\n\nResponda apenas com o texto das sugestões, sem título nem marcadores.")

	return b.String()
}
