package geo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/invisible-tech/alertmap/pkg/geoapi"
)

// APIProvider looks addresses up through an HTTP geolocation service.
type APIProvider struct {
	client  *geoapi.Client
	timeout time.Duration
}

// NewAPIProvider wraps client; each lookup is bounded by timeout.
func NewAPIProvider(client *geoapi.Client, timeout time.Duration) *APIProvider {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &APIProvider{client: client, timeout: timeout}
}

func (p *APIProvider) Lookup(ip string) (Location, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	loc, err := p.client.Lookup(ctx, ip)
	if errors.Is(err, geoapi.ErrNotFound) {
		return Location{}, ErrNotFound
	}
	if err != nil {
		return Location{}, fmt.Errorf("geo api lookup: %w", err)
	}
	if loc == (geoapi.Location{}) {
		return Location{}, ErrNotFound
	}
	return Location{
		Lat:       loc.Lat,
		Lon:       loc.Lon,
		City:      loc.City,
		Country:   loc.Country,
		Region:    loc.Region,
		Continent: loc.Continent,
	}, nil
}
