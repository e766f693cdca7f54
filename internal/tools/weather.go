package tools

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcp-examples/internal/toolhost"
)

// WeatherQuery is the input of get_weather.
type WeatherQuery struct {
	Location string `json:"location" jsonschema:"the city or place to get the weather for"`
}

// WeatherReport is the structured output of get_weather.
type WeatherReport struct {
	Location string `json:"location"`
	Forecast string `json:"forecast"`
}

var errMissingLocation = errors.New("location is required")

// RegisterWeather adds the get_weather tool. The forecast is canned.
func RegisterWeather(h *toolhost.Host) {
	toolhost.AddTool(h, "get_weather", "Get weather for location.", getWeather)
}

func getWeather(ctx context.Context, req *sdk.CallToolRequest, q WeatherQuery) (*sdk.CallToolResult, WeatherReport, error) {
	location := strings.TrimSpace(q.Location)
	if location == "" {
		return nil, WeatherReport{}, errMissingLocation
	}
	report := WeatherReport{
		Location: location,
		Forecast: "It's always sunny in " + location,
	}
	return &sdk.CallToolResult{
		Content: []sdk.Content{&sdk.TextContent{Text: report.Forecast}},
	}, report, nil
}
