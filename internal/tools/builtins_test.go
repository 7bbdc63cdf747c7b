package tools

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestSearchWebPlaceholder(t *testing.T) {
	tool := NewSearchWebTool()
	result := tool.Execute(context.Background(), map[string]interface{}{"query": "golang testing"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.ForLLM)
	}
	want := "Search results for 'golang testing':\n1. Result placeholder 1\n2. Result placeholder 2"
	if result.ForLLM != want {
		t.Errorf("got %q, want %q", result.ForLLM, want)
	}
}

func TestSearchWebMissingQuery(t *testing.T) {
	tool := NewSearchWebTool()
	result := tool.Execute(context.Background(), map[string]interface{}{})
	if !result.IsError {
		t.Error("expected error result for missing query")
	}
}

func TestSearchWebMaxResultsRange(t *testing.T) {
	tool := NewSearchWebTool()
	args := map[string]interface{}{"query": "q", "max_results": float64(25)}
	result := tool.Execute(context.Background(), args)
	if !result.IsError {
		t.Error("expected error result for out-of-range max_results")
	}

	args["max_results"] = float64(3)
	result = tool.Execute(context.Background(), args)
	if result.IsError {
		t.Errorf("in-range max_results should succeed: %s", result.ForLLM)
	}
}

func TestSearchDocumentsWithoutIndex(t *testing.T) {
	tool := NewSearchDocumentsTool(nil)
	result := tool.Execute(context.Background(), map[string]interface{}{"query": "refund policy"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.ForLLM)
	}
	want := "Document search results from 'default' collection for 'refund policy':\nNo documents found (placeholder)."
	if result.ForLLM != want {
		t.Errorf("got %q, want %q", result.ForLLM, want)
	}
}

func TestSearchDocumentsCollectionArg(t *testing.T) {
	tool := NewSearchDocumentsTool(nil)
	args := map[string]interface{}{"query": "vpn", "collection": "it-docs"}
	result := tool.Execute(context.Background(), args)
	if !strings.HasPrefix(result.ForLLM, "Document search results from 'it-docs' collection for 'vpn':") {
		t.Errorf("collection not echoed: %q", result.ForLLM)
	}
}

func TestFetchWeatherCelsiusDefault(t *testing.T) {
	tool := NewFetchWeatherTool()
	result := tool.Execute(context.Background(), map[string]interface{}{"location": "Paris"})
	want := "Weather in Paris: Sunny, 22°C, humidity 65%, wind 10 km/h"
	if result.ForLLM != want {
		t.Errorf("got %q, want %q", result.ForLLM, want)
	}
}

func TestFetchWeatherFahrenheit(t *testing.T) {
	tool := NewFetchWeatherTool()
	args := map[string]interface{}{"location": "Austin", "units": "fahrenheit"}
	result := tool.Execute(context.Background(), args)
	want := "Weather in Austin: Sunny, 72°F, humidity 65%, wind 10 km/h"
	if result.ForLLM != want {
		t.Errorf("got %q, want %q", result.ForLLM, want)
	}
}

func TestCalculateMath(t *testing.T) {
	tool := NewCalculateMathTool()

	result := tool.Execute(context.Background(), map[string]interface{}{"expression": "2 + 3 * 4"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.ForLLM)
	}
	if result.ForLLM != "Result: 14" {
		t.Errorf("got %q, want %q", result.ForLLM, "Result: 14")
	}

	result = tool.Execute(context.Background(), map[string]interface{}{"expression": "(100 - 20) / 4"})
	if result.ForLLM != "Result: 20" {
		t.Errorf("got %q, want %q", result.ForLLM, "Result: 20")
	}
}

func TestCalculateMathInvalidExpression(t *testing.T) {
	tool := NewCalculateMathTool()
	result := tool.Execute(context.Background(), map[string]interface{}{"expression": "2 +"})
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if !strings.HasPrefix(result.ForLLM, "Error calculating '2 +':") {
		t.Errorf("unexpected error text: %q", result.ForLLM)
	}
}

func TestGetCurrentTime(t *testing.T) {
	tool := NewGetCurrentTimeTool()
	tool.now = func() time.Time {
		return time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)
	}

	result := tool.Execute(context.Background(), map[string]interface{}{"timezone_name": "UTC"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.ForLLM)
	}
	want := "Current time in UTC: 2025-03-15 10:30:00 UTC"
	if result.ForLLM != want {
		t.Errorf("got %q, want %q", result.ForLLM, want)
	}
}

func TestGetCurrentTimeDefaultsToUTC(t *testing.T) {
	tool := NewGetCurrentTimeTool()
	tool.now = func() time.Time {
		return time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)
	}

	result := tool.Execute(context.Background(), map[string]interface{}{})
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.ForLLM)
	}
	if result.ForLLM != "Current time in UTC: 2025-03-15 10:30:00 UTC" {
		t.Errorf("got %q", result.ForLLM)
	}
}

func TestGetCurrentTimeBadZone(t *testing.T) {
	tool := NewGetCurrentTimeTool()
	result := tool.Execute(context.Background(), map[string]interface{}{"timezone_name": "Not/AZone"})
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if !strings.HasPrefix(result.ForLLM, "Error getting time for timezone 'Not/AZone':") {
		t.Errorf("unexpected error text: %q", result.ForLLM)
	}
}

func TestConvertCurrency(t *testing.T) {
	tool := NewConvertCurrencyTool()

	cases := []struct {
		amount float64
		from   string
		to     string
		want   string
	}{
		{100, "USD", "EUR", "100.00 USD = 92.00 EUR"},
		{100, "USD", "GBP", "100.00 USD = 79.00 GBP"},
		{50, "EUR", "USD", "50.00 EUR = 54.50 USD"},
		{10, "GBP", "USD", "10.00 GBP = 12.70 USD"},
		// Codes are normalized for lookup but echoed back verbatim.
		{100, "usd", "eur", "100.00 usd = 92.00 eur"},
	}
	for _, tc := range cases {
		args := map[string]interface{}{
			"amount":        tc.amount,
			"from_currency": tc.from,
			"to_currency":   tc.to,
		}
		result := tool.Execute(context.Background(), args)
		if result.IsError {
			t.Fatalf("%s->%s: unexpected error: %s", tc.from, tc.to, result.ForLLM)
		}
		if result.ForLLM != tc.want {
			t.Errorf("%s->%s: got %q, want %q", tc.from, tc.to, result.ForLLM, tc.want)
		}
	}
}

func TestConvertCurrencyUnsupportedPair(t *testing.T) {
	tool := NewConvertCurrencyTool()
	args := map[string]interface{}{
		"amount":        float64(100),
		"from_currency": "USD",
		"to_currency":   "JPY",
	}
	result := tool.Execute(context.Background(), args)
	if result.IsError {
		t.Fatalf("unsupported pair is not an error: %s", result.ForLLM)
	}
	want := "Exchange rate not available for USD to JPY (placeholder implementation)"
	if result.ForLLM != want {
		t.Errorf("got %q, want %q", result.ForLLM, want)
	}
}

func TestConvertCurrencyUnknownCode(t *testing.T) {
	tool := NewConvertCurrencyTool()
	args := map[string]interface{}{
		"amount":        float64(5),
		"from_currency": "DOLLARS",
		"to_currency":   "EUR",
	}
	result := tool.Execute(context.Background(), args)
	want := "Exchange rate not available for DOLLARS to EUR (placeholder implementation)"
	if result.ForLLM != want {
		t.Errorf("got %q, want %q", result.ForLLM, want)
	}
}

func TestConvertCurrencyMissingAmount(t *testing.T) {
	tool := NewConvertCurrencyTool()
	args := map[string]interface{}{"from_currency": "USD", "to_currency": "EUR"}
	result := tool.Execute(context.Background(), args)
	if !result.IsError {
		t.Error("expected error result for missing amount")
	}
}

func TestRegisterBuiltinsOrder(t *testing.T) {
	reg := NewRegistry()
	if err := RegisterBuiltins(reg, nil); err != nil {
		t.Fatalf("register builtins: %v", err)
	}

	want := []string{
		"search_web",
		"search_documents",
		"fetch_weather",
		"calculate_math",
		"get_current_time",
		"convert_currency",
	}
	list := reg.List()
	if len(list) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(list))
	}
	for i, tool := range list {
		if tool.Name() != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], tool.Name())
		}
	}
}

func TestRegisterBuiltinsTwice(t *testing.T) {
	reg := NewRegistry()
	if err := RegisterBuiltins(reg, nil); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := RegisterBuiltins(reg, nil); err == nil {
		t.Error("second register should fail on duplicate names")
	}
}
