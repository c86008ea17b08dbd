package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnifin/omni/backend/src/llm"
	"github.com/omnifin/omni/backend/src/model"
	"github.com/omnifin/omni/backend/src/models"
	"github.com/omnifin/omni/backend/src/statement"
)

// scriptedLLM returns one scripted response per call, in order. The invoice
// flow makes two calls (extraction, then suggestions) so tests script both.
type scriptedLLM struct {
	responses []string
	errs      []error
	calls     int
	requests  []llm.CompletionRequest
}

func (m *scriptedLLM) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	idx := m.calls
	m.calls++
	m.requests = append(m.requests, req)
	var err error
	if idx < len(m.errs) {
		err = m.errs[idx]
	}
	if idx < len(m.responses) {
		return m.responses[idx], err
	}
	return "", err
}

func createCard(t *testing.T, db *sql.DB, userID string) *model.CreditCard {
	t.Helper()
	card := &model.CreditCard{
		UserID:      userID,
		Last4:       "4111 1111 1111 1234",
		HolderName:  "Maria Souza",
		ExpiryMonth: "7",
		ExpiryYear:  "2027",
	}
	require.NoError(t, model.CreateCreditCard(db, card))
	return card
}

const invoiceExtractionJSON = `{
	"periodStart": "2024-04-05",
	"periodEnd": "2024-05-04",
	"dueDate": "2024-05-12",
	"totalAmount": 1534.20,
	"items": [
		{"description": "Restaurante Fogo", "amount": 89.90, "date": "2024-04-10", "installmentsCurrent": "1", "installmentsTotal": "3"},
		{"description": "Posto Shell", "amount": 200.00, "date": "2024-04-15", "installmentsCurrent": null, "installmentsTotal": null}
	]
}`

func invoiceDoc() models.StatementDocument {
	return models.StatementDocument{
		Bytes:     []byte("FATURA MAIO\nRESTAURANTE FOGO 89,90 1/3\nPOSTO SHELL 200,00\nTOTAL 1.534,20\n"),
		MediaType: "text/plain",
		Filename:  "fatura.txt",
	}
}

func TestProcessInvoicePersistsInvoiceAndItems(t *testing.T) {
	db := newTestDB(t)
	userID := "user-1"
	card := createCard(t, db, userID)
	mock := &scriptedLLM{responses: []string{invoiceExtractionJSON, "Evite parcelar compras pequenas."}}
	svc := NewInvoiceService(db, mock, 120000)

	result, err := svc.ProcessInvoice(context.Background(), userID, card.ID, invoiceDoc())
	require.NoError(t, err)

	assert.Equal(t, "1534.20", result.TotalAmount)
	assert.Equal(t, "2024-05-04", result.PeriodEnd)
	assert.Equal(t, 2, result.ItemCount)
	require.NotNil(t, result.AISuggestions)
	assert.Equal(t, "Evite parcelar compras pequenas.", *result.AISuggestions)

	assert.Equal(t, 2, mock.calls)
	assert.True(t, mock.requests[0].ForceJSON)
	assert.Contains(t, mock.requests[0].Prompt, "RESTAURANTE FOGO")
	assert.False(t, mock.requests[1].ForceJSON)

	invoices, err := model.GetInvoicesByCard(db, userID, card.ID)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, "1534.20", invoices[0].TotalAmount.StringFixed(2))
	require.NotNil(t, invoices[0].DueDate)
	assert.Equal(t, "2024-05-12", *invoices[0].DueDate)

	items, err := model.GetInvoiceItems(db, invoices[0].ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.NotNil(t, items[0].Description)
	assert.Equal(t, "Restaurante Fogo", *items[0].Description)
	require.NotNil(t, items[0].InstallmentsTotal)
	assert.Equal(t, "3", *items[0].InstallmentsTotal)
}

func TestProcessInvoiceToleratesSuggestionFailure(t *testing.T) {
	db := newTestDB(t)
	userID := "user-1"
	card := createCard(t, db, userID)
	mock := &scriptedLLM{
		responses: []string{invoiceExtractionJSON, ""},
		errs:      []error{nil, errors.New("model overloaded")},
	}
	svc := NewInvoiceService(db, mock, 120000)

	result, err := svc.ProcessInvoice(context.Background(), userID, card.ID, invoiceDoc())
	require.NoError(t, err)
	assert.Nil(t, result.AISuggestions)

	invoices, err := model.GetInvoicesByCard(db, userID, card.ID)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Nil(t, invoices[0].AISuggestions)
}

func TestProcessInvoiceUnknownCard(t *testing.T) {
	db := newTestDB(t)
	mock := &scriptedLLM{responses: []string{invoiceExtractionJSON}}
	svc := NewInvoiceService(db, mock, 120000)

	_, err := svc.ProcessInvoice(context.Background(), "user-1", "no-such-card", invoiceDoc())
	require.ErrorIs(t, err, model.ErrCreditCardNotFound)
	assert.Zero(t, mock.calls)
}

func TestProcessInvoiceCardOwnershipScoped(t *testing.T) {
	db := newTestDB(t)
	card := createCard(t, db, "owner")
	mock := &scriptedLLM{responses: []string{invoiceExtractionJSON}}
	svc := NewInvoiceService(db, mock, 120000)

	_, err := svc.ProcessInvoice(context.Background(), "intruder", card.ID, invoiceDoc())
	require.ErrorIs(t, err, model.ErrCreditCardNotFound)
	assert.Zero(t, mock.calls)
}

func TestProcessInvoiceRejectsIncompleteExtraction(t *testing.T) {
	db := newTestDB(t)
	userID := "user-1"
	card := createCard(t, db, userID)
	mock := &scriptedLLM{responses: []string{`{"totalAmount": 100, "items": []}`}}
	svc := NewInvoiceService(db, mock, 120000)

	_, err := svc.ProcessInvoice(context.Background(), userID, card.ID, invoiceDoc())
	require.ErrorIs(t, err, statement.ErrInvalidInvoiceData)

	// Neither the suggestions call nor the persist should have happened.
	assert.Equal(t, 1, mock.calls)
	invoices, err := model.GetInvoicesByCard(db, userID, card.ID)
	require.NoError(t, err)
	assert.Empty(t, invoices)
}
