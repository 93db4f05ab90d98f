package testutil

import (
	"context"
	"sync"

	"github.com/paulmach/orb"

	"road-orienteer/internal/geocoding"
	"road-orienteer/internal/models"
)

// MockGeocoder resolves addresses from a fixed table and records each call
type MockGeocoder struct {
	Results map[string]models.Coordinates

	mu    sync.Mutex
	Calls []string
}

// NewMockGeocoder returns a geocoder knowing only the given addresses
func NewMockGeocoder(results map[string]models.Coordinates) *MockGeocoder {
	return &MockGeocoder{Results: results}
}

func (m *MockGeocoder) Geocode(ctx context.Context, address string, within orb.Bound) (*geocoding.GeocodingResult, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, address)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	coords, ok := m.Results[address]
	if !ok {
		return nil, &geocoding.ErrGeocodingFailed{Address: address, Reason: "no results found"}
	}
	return &geocoding.GeocodingResult{Coords: coords, DisplayName: address}, nil
}

func (m *MockGeocoder) GeocodeWithRetry(ctx context.Context, address string, within orb.Bound, maxRetries int) (*geocoding.GeocodingResult, error) {
	return m.Geocode(ctx, address, within)
}
