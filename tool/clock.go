package tool

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/taskloom/taskloom/core"
)

// Built-in tools covering the time and weather capabilities most assistant
// deployments register first.

// NewCurrentTimeTool reports the current local time in a human-readable format.
func NewCurrentTimeTool() *FunctionTool {
	return NewFunctionTool(
		"get_current_time",
		"Get the current time in human-readable format",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ *core.ExecutionContext, _ map[string]any) (any, error) {
			return time.Now().Format("2006-01-02 15:04:05"), nil
		},
	)
}

// NewDatetimeInfoTool reports detailed date information for an optional IANA
// timezone, defaulting to UTC.
func NewDatetimeInfoTool() *FunctionTool {
	return NewFunctionTool(
		"get_datetime_info",
		"Get detailed date and time information for a timezone",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"timezone": map[string]any{
					"type":        "string",
					"description": "IANA timezone name, e.g. Europe/Moscow. Defaults to UTC.",
				},
			},
		},
		func(_ *core.ExecutionContext, args map[string]any) (any, error) {
			loc := time.UTC
			if tz, ok := args["timezone"].(string); ok && tz != "" {
				parsed, err := time.LoadLocation(tz)
				if err != nil {
					return nil, fmt.Errorf("unknown timezone %q: %w", tz, err)
				}
				loc = parsed
			}
			now := time.Now().In(loc)
			return map[string]any{
				"date":           now.Format("2006-01-02"),
				"time":           now.Format("15:04:05"),
				"day_of_week":    now.Weekday().String(),
				"full_datetime":  now.Format("2006-01-02 15:04:05"),
				"is_working_day": now.Weekday() != time.Saturday && now.Weekday() != time.Sunday,
				"timezone":       loc.String(),
			}, nil
		},
	)
}

// WeatherToolOptions configure the weather tool's HTTP behavior.
type WeatherToolOptions struct {
	// BaseURL of the wttr.in-compatible endpoint.
	BaseURL string
	// Client used for requests; defaults to one with a 10s timeout.
	Client *http.Client
}

// NewWeatherTool fetches a one-line weather report for a city from a
// wttr.in-compatible service. Registered as asynchronous: the call suspends
// on network I/O.
func NewWeatherTool(optFns ...func(o *WeatherToolOptions)) *FunctionTool {
	opts := WeatherToolOptions{
		BaseURL: "https://wttr.in",
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return NewFunctionTool(
		"get_weather",
		"Fetch the current weather for a city",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"city": map[string]any{"type": "string", "description": "City to look up"},
			},
			"required": []string{"city"},
		},
		func(execCtx *core.ExecutionContext, args map[string]any) (any, error) {
			city, _ := args["city"].(string)
			url := fmt.Sprintf("%s/%s?format=3", strings.TrimRight(opts.BaseURL, "/"), city)

			req, err := http.NewRequestWithContext(execCtx.Context, http.MethodGet, url, nil)
			if err != nil {
				return nil, err
			}
			resp, err := opts.Client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("fetching weather: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("could not fetch weather for %s: status %d", city, resp.StatusCode)
			}
			body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
			if err != nil {
				return nil, err
			}
			return strings.TrimSpace(string(body)), nil
		},
		func(o *FunctionToolOptions) { o.Async = true },
	)
}
