package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("current_weather"))
		assert.Equal(t, "fahrenheit", r.URL.Query().Get("temperature_unit"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"current_weather": {"temperature": 71.6, "weathercode": 0}}`))
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	c.ForecastURL = srv.URL

	snap, err := c.Current(context.Background(), 33.45, -112.07)
	require.NoError(t, err)
	assert.Equal(t, float64(72), snap.Temperature, "temperature should be rounded")
	assert.Equal(t, "Clear", snap.Description)
}

func TestCurrentNoWeatherInResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	c.ForecastURL = srv.URL

	_, err := c.Current(context.Background(), 33.45, -112.07)
	assert.Error(t, err)
}

func TestCurrentServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	c.ForecastURL = srv.URL

	_, err := c.Current(context.Background(), 33.45, -112.07)
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "Clear"},
		{2, "Partly Cloudy"},
		{45, "Foggy"},
		{63, "Rain"},
		{75, "Heavy Snow"},
		{95, "Thunderstorms"},
		{42, "Partly Cloudy"}, // unknown code falls back
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Describe(tt.code), "code %d", tt.code)
	}
}

func TestGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Phoenix, AZ", r.URL.Query().Get("name"))
		w.Write([]byte(`{"results": [{"latitude": 33.45, "longitude": -112.07, "name": "Phoenix", "admin1": "Arizona", "country": "United States"}]}`))
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	c.GeocodingURL = srv.URL

	loc, err := c.Geocode(context.Background(), "Phoenix", "AZ", "")
	require.NoError(t, err)
	assert.Equal(t, 33.45, loc.Latitude)
	assert.Equal(t, -112.07, loc.Longitude)
	assert.Equal(t, "Phoenix", loc.City)
	assert.Equal(t, "Arizona", loc.State)
}

func TestGeocodeNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	c.GeocodingURL = srv.URL

	_, err := c.Geocode(context.Background(), "Nowhereville", "", "")
	assert.Error(t, err)
}
