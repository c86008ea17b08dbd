package statement

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/omnifin/omni/backend/src/models"
	"github.com/omnifin/omni/backend/src/security/validation"
)

// ErrMalformedAIResponse means the model's output was not JSON at all. This
// is a hard stop for the request; no automatic retry against the model is
// attempted.
var ErrMalformedAIResponse = errors.New("AI response is not valid JSON")

const maxDescriptionLen = 500

// NormalizeExtraction defensively parses raw model output into an
// ExtractionResult. It is a pure function over the string: it never contacts
// the network and never fabricates entries.
//
// Two top-level shapes are accepted: the documented object
// {transactions, closingBalance} and, for backward compatibility, a bare
// array of transactions (closing balance implicitly null). Any other shape
// yields an empty transaction list. Entries missing any of the five required
// keys are silently dropped rather than failing the whole statement; the
// count of dropped entries is kept for diagnostics.
func NormalizeExtraction(raw string) (*models.ExtractionResult, error) {
	clean := stripCodeFences(raw)

	var parsed any
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAIResponse, err)
	}

	result := &models.ExtractionResult{Transactions: []models.ExtractedTransaction{}}

	var entries []any
	switch v := parsed.(type) {
	case []any:
		entries = v
	case map[string]any:
		if list, ok := v["transactions"].([]any); ok {
			entries = list
		}
		result.ClosingBalance = CoerceClosingBalance(v["closingBalance"])
	}

	for _, item := range entries {
		tx, ok := normalizeEntry(item)
		if !ok {
			result.Dropped++
			continue
		}
		result.Transactions = append(result.Transactions, tx)
	}

	return result, nil
}

var requiredKeys = []string{"date", "description", "amount", "type", "category"}

func normalizeEntry(item any) (models.ExtractedTransaction, bool) {
	var tx models.ExtractedTransaction

	obj, ok := item.(map[string]any)
	if !ok {
		return tx, false
	}
	for _, key := range requiredKeys {
		if _, present := obj[key]; !present {
			return tx, false
		}
	}

	date, ok := obj["date"].(string)
	if !ok || strings.TrimSpace(date) == "" {
		return tx, false
	}
	description, ok := obj["description"].(string)
	if !ok {
		return tx, false
	}
	amount, ok := coerceAmount(obj["amount"])
	if !ok {
		return tx, false
	}
	txType, ok := obj["type"].(string)
	if !ok {
		return tx, false
	}
	category, ok := obj["category"].(string)
	if !ok {
		return tx, false
	}

	txType = strings.ToLower(strings.TrimSpace(txType))
	// The prompt already instructs sign normalization; enforce it anyway.
	if amount < 0 {
		amount = -amount
		txType = "expense"
	}
	if txType != "income" && txType != "expense" {
		return tx, false
	}

	description = truncateOnRuneBoundary(validation.CleanFreeText(description), maxDescriptionLen)

	tx.Date = strings.TrimSpace(date)
	tx.Description = description
	tx.Amount = amount
	tx.Type = txType
	tx.Category = validation.CleanFreeText(category)
	return tx, true
}

func coerceAmount(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return 0, false
		}
		return val, true
	case string:
		f, err := parseLocaleNumber(val)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// CoerceClosingBalance accepts a native number or a numeric string (comma
// decimal separators included, common in Brazilian-locale statements).
// Anything else, NaN included, normalizes to nil: unknown balance, do not
// touch the stored one.
func CoerceClosingBalance(v any) *float64 {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		f := val
		return &f
	case string:
		f, err := parseLocaleNumber(val)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

func parseLocaleNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		// "1.234,56" -> "1234.56"; "1234,56" -> "1234.56"
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite number %q", s)
	}
	return f, nil
}

// stripCodeFences removes markdown code-fence wrapping the model sometimes
// adds despite instructions, then keeps only the outermost JSON value.
func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	// If junk still surrounds the JSON, keep from the first opening brace or
	// bracket to its matching closer at the end.
	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")
	start, closer := objStart, "}"
	if objStart == -1 || (arrStart != -1 && arrStart < objStart) {
		start, closer = arrStart, "]"
	}
	if start != -1 {
		if end := strings.LastIndex(s, closer); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
