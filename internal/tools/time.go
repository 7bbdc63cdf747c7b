package tools

import (
	"context"
	"fmt"
	"time"
)

// GetCurrentTimeTool reports the current time in a requested IANA timezone.
type GetCurrentTimeTool struct {
	now func() time.Time
}

func NewGetCurrentTimeTool() *GetCurrentTimeTool {
	return &GetCurrentTimeTool{now: time.Now}
}

func (t *GetCurrentTimeTool) Name() string { return "get_current_time" }

func (t *GetCurrentTimeTool) Description() string {
	return "Get the current date and time for a timezone. Use when the user asks what time or date it is."
}

func (t *GetCurrentTimeTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"timezone_name": map[string]interface{}{
				"type":        "string",
				"description": "IANA timezone name (e.g., \"UTC\", \"America/New_York\", \"Europe/London\"). Defaults to UTC.",
			},
		},
	}
}

func (t *GetCurrentTimeTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	tz, _ := args["timezone_name"].(string)
	if tz == "" {
		tz = "UTC"
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Errorf("Error getting time for timezone '%s': %v", tz, err)
	}

	now := t.now().In(loc)
	return NewResult(fmt.Sprintf("Current time in %s: %s", tz, now.Format("2006-01-02 15:04:05 MST")))
}
