// Package geocoding talks to the Google Geocoding and Places Autocomplete APIs.
package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"laundry-pickup/internal/models"

	"golang.org/x/time/rate"
)

// Client calls Google with a shared rate limit across all requests.
type Client struct {
	baseURL    string
	apiKey     string
	region     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient builds a client allowing rps upstream calls per second.
func NewClient(baseURL, apiKey, region string, rps float64) *Client {
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		region:     region,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

type autocompleteResponse struct {
	Status      string `json:"status"`
	Predictions []struct {
		PlaceID     string `json:"place_id"`
		Description string `json:"description"`
	} `json:"predictions"`
}

// Geocode resolves a free-text address. An address Google does not know is
// models.ErrAddressNotFound; every other failure is models.ErrUpstreamUnavailable.
func (c *Client) Geocode(ctx context.Context, address string) (models.LatLng, error) {
	params := url.Values{"address": {address}}
	if c.region != "" {
		params.Set("region", c.region)
	}

	var body geocodeResponse
	if err := c.get(ctx, "/geocode/json", params, &body); err != nil {
		return models.LatLng{}, err
	}
	switch body.Status {
	case "OK":
		if len(body.Results) == 0 {
			return models.LatLng{}, models.ErrAddressNotFound
		}
		loc := body.Results[0].Geometry.Location
		return models.LatLng{Lat: loc.Lat, Lng: loc.Lng}, nil
	case "ZERO_RESULTS":
		return models.LatLng{}, models.ErrAddressNotFound
	}
	return models.LatLng{}, fmt.Errorf("%w: geocode status %s", models.ErrUpstreamUnavailable, body.Status)
}

// Autocomplete returns address candidates for a partial input.
func (c *Client) Autocomplete(ctx context.Context, input string) ([]models.AddressSuggestion, error) {
	params := url.Values{"input": {input}, "types": {"address"}}
	if c.region != "" {
		params.Set("components", "country:"+c.region)
	}

	var body autocompleteResponse
	if err := c.get(ctx, "/place/autocomplete/json", params, &body); err != nil {
		return nil, err
	}
	suggestions := []models.AddressSuggestion{}
	switch body.Status {
	case "OK":
		for _, p := range body.Predictions {
			suggestions = append(suggestions, models.AddressSuggestion{PlaceID: p.PlaceID, Description: p.Description})
		}
		return suggestions, nil
	case "ZERO_RESULTS":
		return suggestions, nil
	}
	return nil, fmt.Errorf("%w: autocomplete status %s", models.ErrUpstreamUnavailable, body.Status)
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}

	params.Set("key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("geocoding: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %s", models.ErrUpstreamUnavailable, path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", models.ErrUpstreamUnavailable, path, err)
	}
	return nil
}
