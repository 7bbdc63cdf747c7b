package tools

import (
	"context"
	"fmt"
)

// FetchWeatherTool returns canned weather data. Swap in a real weather
// API to make it live.
type FetchWeatherTool struct{}

func NewFetchWeatherTool() *FetchWeatherTool { return &FetchWeatherTool{} }

func (t *FetchWeatherTool) Name() string { return "fetch_weather" }

func (t *FetchWeatherTool) Description() string {
	return "Fetch current weather information for a specific location. Use when the user asks about weather conditions, temperature, or atmospheric data."
}

func (t *FetchWeatherTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"location": map[string]interface{}{
				"type":        "string",
				"description": "City name or location (e.g., \"San Francisco\" or \"New York, NY\").",
			},
			"units": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"celsius", "fahrenheit"},
				"description": "Temperature units. Default: celsius.",
			},
		},
		"required": []string{"location"},
	}
}

func (t *FetchWeatherTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	location, _ := args["location"].(string)
	if location == "" {
		return ErrorResult("location is required")
	}

	units, _ := args["units"].(string)
	if units == "" {
		units = "celsius"
	}

	temp := "22°C"
	if units == "fahrenheit" {
		temp = "72°F"
	}
	return NewResult(fmt.Sprintf("Weather in %s: Sunny, %s, humidity 65%%, wind 10 km/h", location, temp))
}
