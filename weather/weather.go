// Package weather fetches current conditions and geocoding from Open-Meteo.
// Weather is decorative on reports; callers treat every failure here as
// "no weather" and carry on.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	forecastEndpoint  = "https://api.open-meteo.com/v1/forecast"
	geocodingEndpoint = "https://geocoding-api.open-meteo.com/v1/search"
)

// weatherDescriptions maps Open-Meteo WMO weather codes to report text.
var weatherDescriptions = map[int]string{
	0:  "Clear",
	1:  "Mostly Clear",
	2:  "Partly Cloudy",
	3:  "Overcast",
	45: "Foggy",
	48: "Foggy",
	51: "Light Drizzle",
	53: "Drizzle",
	55: "Heavy Drizzle",
	61: "Light Rain",
	63: "Rain",
	65: "Heavy Rain",
	71: "Light Snow",
	73: "Snow",
	75: "Heavy Snow",
	80: "Showers",
	81: "Showers",
	82: "Heavy Showers",
	95: "Thunderstorms",
	96: "Thunderstorms",
	99: "Heavy Thunderstorms",
}

// Snapshot is current weather at a site.
type Snapshot struct {
	Temperature float64 `json:"temperature"`
	Description string  `json:"description"`
	Code        int     `json:"code"`
}

// Location is a resolved place from the geocoding API.
type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	City      string  `json:"city"`
	State     string  `json:"state"`
	Country   string  `json:"country"`
}

// Client calls the Open-Meteo public APIs. The base URLs are overridable for
// tests.
type Client struct {
	ForecastURL  string
	GeocodingURL string
	http         *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		ForecastURL:  forecastEndpoint,
		GeocodingURL: geocodingEndpoint,
		http:         &http.Client{Timeout: timeout},
	}
}

// Describe maps a WMO weather code to display text.
func Describe(code int) string {
	if d, ok := weatherDescriptions[code]; ok {
		return d
	}
	return "Partly Cloudy"
}

type forecastResponse struct {
	CurrentWeather *struct {
		Temperature float64 `json:"temperature"`
		WeatherCode int     `json:"weathercode"`
	} `json:"current_weather"`
}

// Current fetches current conditions for a coordinate in Fahrenheit.
func (c *Client) Current(ctx context.Context, lat, lon float64) (*Snapshot, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%g", lat))
	q.Set("longitude", fmt.Sprintf("%g", lon))
	q.Set("current_weather", "true")
	q.Set("temperature_unit", "fahrenheit")
	q.Set("timezone", "auto")

	var fr forecastResponse
	if err := c.getJSON(ctx, c.ForecastURL+"?"+q.Encode(), &fr); err != nil {
		return nil, err
	}
	if fr.CurrentWeather == nil {
		return nil, fmt.Errorf("no current weather in response")
	}

	return &Snapshot{
		Temperature: math.Round(fr.CurrentWeather.Temperature),
		Description: Describe(fr.CurrentWeather.WeatherCode),
		Code:        fr.CurrentWeather.WeatherCode,
	}, nil
}

type geocodingResponse struct {
	Results []struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Name      string  `json:"name"`
		Admin1    string  `json:"admin1"`
		Country   string  `json:"country"`
	} `json:"results"`
}

// Geocode resolves a city/state/postal-code triple to coordinates. Empty
// parts are skipped.
func (c *Client) Geocode(ctx context.Context, city, state, postalCode string) (*Location, error) {
	parts := []string{}
	for _, p := range []string{city, state, postalCode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	q := url.Values{}
	q.Set("name", strings.Join(parts, ", "))
	q.Set("count", "1")
	q.Set("language", "en")
	q.Set("format", "json")

	var gr geocodingResponse
	if err := c.getJSON(ctx, c.GeocodingURL+"?"+q.Encode(), &gr); err != nil {
		return nil, err
	}
	if len(gr.Results) == 0 {
		return nil, fmt.Errorf("no geocoding results")
	}

	r := gr.Results[0]
	loc := &Location{
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		City:      r.Name,
		State:     r.Admin1,
		Country:   r.Country,
	}
	if loc.State == "" {
		loc.State = state
	}
	return loc, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
