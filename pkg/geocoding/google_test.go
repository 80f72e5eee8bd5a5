package geocoding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"laundry-pickup/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key", "de", 100)
}

func TestClient_Geocode(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    models.LatLng
		wantErr error
	}{
		{
			name:   "found",
			status: http.StatusOK,
			body:   `{"status":"OK","results":[{"geometry":{"location":{"lat":52.5297,"lng":13.4014}}}]}`,
			want:   models.LatLng{Lat: 52.5297, Lng: 13.4014},
		},
		{"unknown address", http.StatusOK, `{"status":"ZERO_RESULTS","results":[]}`, models.LatLng{}, models.ErrAddressNotFound},
		{"quota exceeded", http.StatusOK, `{"status":"OVER_QUERY_LIMIT"}`, models.LatLng{}, models.ErrUpstreamUnavailable},
		{"server error", http.StatusInternalServerError, `oops`, models.LatLng{}, models.ErrUpstreamUnavailable},
		{"garbage", http.StatusOK, `{"status":`, models.LatLng{}, models.ErrUpstreamUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/geocode/json", r.URL.Path)
				assert.Equal(t, "Torstrasse 1, Berlin", r.URL.Query().Get("address"))
				assert.Equal(t, "test-key", r.URL.Query().Get("key"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			got, err := c.Geocode(context.Background(), "Torstrasse 1, Berlin")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_Autocomplete(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "country:de", r.URL.Query().Get("components"))
		if r.URL.Query().Get("input") == "Nowhere" {
			_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","predictions":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"OK","predictions":[
			{"place_id":"p1","description":"Torstrasse 1, Berlin"},
			{"place_id":"p2","description":"Torstrasse 10, Berlin"}]}`))
	})

	got, err := c.Autocomplete(context.Background(), "Torstr")
	require.NoError(t, err)
	assert.Equal(t, []models.AddressSuggestion{
		{PlaceID: "p1", Description: "Torstrasse 1, Berlin"},
		{PlaceID: "p2", Description: "Torstrasse 10, Berlin"},
	}, got)

	got, err = c.Autocomplete(context.Background(), "Nowhere")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.EqualValues(t, 2, calls.Load())
}

func TestClient_CancelledWhileRateLimited(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Geocode(ctx, "Torstrasse 1")
	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
}
