package geocoding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGeocoder(url string) *nominatimGeocoder {
	return &nominatimGeocoder{
		baseURL:   url,
		userAgent: DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		rateLimiter: time.NewTicker(1 * time.Millisecond), // Fast rate limit for testing
		backoff:     time.Millisecond,
	}
}

func respond(w http.ResponseWriter, results []nominatimResponse) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

func TestNominatimGeocodeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "Central Park", r.URL.Query().Get("q"))
		assert.Empty(t, r.URL.Query().Get("viewbox"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))

		respond(w, []nominatimResponse{{Lat: "40.7812", Lon: "-73.9665", DisplayName: "Central Park, New York"}})
	}))
	defer server.Close()

	result, err := testGeocoder(server.URL).Geocode(context.Background(), "Central Park", orb.Bound{})
	require.NoError(t, err)
	assert.Equal(t, 40.7812, result.Coords.Lat)
	assert.Equal(t, -73.9665, result.Coords.Lng)
	assert.Equal(t, "Central Park, New York", result.DisplayName)
}

func TestNominatimGeocodeWithinBound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "-74.100000,40.800000,-73.900000,40.700000", r.URL.Query().Get("viewbox"))
		assert.Equal(t, "1", r.URL.Query().Get("bounded"))
		respond(w, []nominatimResponse{{Lat: "40.75", Lon: "-74.0", DisplayName: "Midtown"}})
	}))
	defer server.Close()

	bound := orb.Bound{Min: orb.Point{-74.1, 40.7}, Max: orb.Point{-73.9, 40.8}}
	result, err := testGeocoder(server.URL).Geocode(context.Background(), "Midtown", bound)
	require.NoError(t, err)
	assert.Equal(t, "Midtown", result.DisplayName)
}

func TestNominatimGeocodeFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		reason  string
	}{
		{
			name:    "no results",
			handler: func(w http.ResponseWriter, r *http.Request) { respond(w, []nominatimResponse{}) },
			reason:  "no results found",
		},
		{
			name: "http error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("overloaded"))
			},
			reason: "HTTP 503: overloaded",
		},
		{
			name: "bad latitude",
			handler: func(w http.ResponseWriter, r *http.Request) {
				respond(w, []nominatimResponse{{Lat: "north", Lon: "-74.0"}})
			},
			reason: "invalid latitude",
		},
		{
			name: "bad longitude",
			handler: func(w http.ResponseWriter, r *http.Request) {
				respond(w, []nominatimResponse{{Lat: "40.7", Lon: ""}})
			},
			reason: "invalid longitude",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			result, err := testGeocoder(server.URL).Geocode(context.Background(), "Nowhere", orb.Bound{})
			require.Error(t, err)
			assert.Nil(t, result)

			var geoErr *ErrGeocodingFailed
			require.ErrorAs(t, err, &geoErr)
			assert.Equal(t, "Nowhere", geoErr.Address)
			assert.Equal(t, tc.reason, geoErr.Reason)
		})
	}
}

func TestNominatimGeocodeInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer server.Close()

	_, err := testGeocoder(server.URL).Geocode(context.Background(), "Somewhere", orb.Bound{})
	var geoErr *ErrGeocodingFailed
	assert.ErrorAs(t, err, &geoErr)
}

func TestNominatimGeocodeWithRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		respond(w, []nominatimResponse{{Lat: "40.7", Lon: "-74.0", DisplayName: "Found"}})
	}))
	defer server.Close()

	result, err := testGeocoder(server.URL).GeocodeWithRetry(context.Background(), "Retry Street", orb.Bound{}, 3)
	require.NoError(t, err)
	assert.Equal(t, "Found", result.DisplayName)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNominatimGeocodeWithRetryAllFail(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := testGeocoder(server.URL).GeocodeWithRetry(context.Background(), "Broken", orb.Bound{}, 2)
	var geoErr *ErrGeocodingFailed
	require.ErrorAs(t, err, &geoErr)
	assert.Equal(t, int32(2), calls.Load())

	// zero retries still makes one attempt
	_, err = testGeocoder(server.URL).GeocodeWithRetry(context.Background(), "Broken", orb.Bound{}, 0)
	assert.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNominatimGeocodeContextCancellation(t *testing.T) {
	g := testGeocoder("http://127.0.0.1:0")
	g.rateLimiter = time.NewTicker(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Geocode(ctx, "Anywhere", orb.Bound{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewNominatimGeocoderDefaults(t *testing.T) {
	g := NewNominatimGeocoder("", "").(*nominatimGeocoder)
	assert.Equal(t, DefaultBaseURL, g.baseURL)
	assert.Equal(t, DefaultUserAgent, g.userAgent)

	g = NewNominatimGeocoder("http://localhost:8088", "Test/0.1").(*nominatimGeocoder)
	assert.Equal(t, "http://localhost:8088", g.baseURL)
	assert.Equal(t, "Test/0.1", g.userAgent)
}
