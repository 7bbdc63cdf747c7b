package tools

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/currency"
)

// Fixed demo rates. A production build would call a quotes API instead.
var exchangeRates = map[[2]string]float64{
	{"USD", "EUR"}: 0.92,
	{"USD", "GBP"}: 0.79,
	{"EUR", "USD"}: 1.09,
	{"GBP", "USD"}: 1.27,
}

// ConvertCurrencyTool converts an amount between currencies using a
// fixed rate table.
type ConvertCurrencyTool struct{}

func NewConvertCurrencyTool() *ConvertCurrencyTool { return &ConvertCurrencyTool{} }

func (t *ConvertCurrencyTool) Name() string { return "convert_currency" }

func (t *ConvertCurrencyTool) Description() string {
	return "Convert an amount from one currency to another. Use when the user asks about exchange rates or currency conversion."
}

func (t *ConvertCurrencyTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"amount": map[string]interface{}{
				"type":        "number",
				"description": "Amount of money to convert.",
			},
			"from_currency": map[string]interface{}{
				"type":        "string",
				"description": "ISO 4217 code of the source currency (e.g., \"USD\").",
			},
			"to_currency": map[string]interface{}{
				"type":        "string",
				"description": "ISO 4217 code of the target currency (e.g., \"EUR\").",
			},
		},
		"required": []string{"amount", "from_currency", "to_currency"},
	}
}

func (t *ConvertCurrencyTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	amount, ok := toFloat(args["amount"])
	if !ok {
		return ErrorResult("amount is required and must be a number")
	}
	from, _ := args["from_currency"].(string)
	to, _ := args["to_currency"].(string)
	if from == "" || to == "" {
		return ErrorResult("from_currency and to_currency are required")
	}

	rate, ok := lookupRate(from, to)
	if !ok {
		return NewResult(fmt.Sprintf("Exchange rate not available for %s to %s (placeholder implementation)", from, to))
	}

	converted := amount * rate
	return NewResult(fmt.Sprintf("%.2f %s = %.2f %s", amount, from, converted, to))
}

// lookupRate normalizes codes through ISO 4217 parsing before consulting
// the table, so "usd" and "USD" behave the same.
func lookupRate(from, to string) (float64, bool) {
	fu, err := currency.ParseISO(strings.TrimSpace(from))
	if err != nil {
		return 0, false
	}
	tu, err := currency.ParseISO(strings.TrimSpace(to))
	if err != nil {
		return 0, false
	}
	rate, ok := exchangeRates[[2]string{fu.String(), tu.String()}]
	return rate, ok
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
