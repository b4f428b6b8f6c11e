package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("test-key",
		WithBaseURL(srv.URL),
		WithDimensions(3),
		WithHTTPClient(srv.Client()),
	)
	return srv, c
}

func vectorResponse(vec []float32) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": vec}},
		})
	}
}

func TestEmbedReturnsVector(t *testing.T) {
	var gotReq embedRequest
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		vectorResponse([]float32{0.1, 0.2, 0.3})(w, r)
	})

	vec, err := c.Embed(context.Background(), "roof repair in fairfax")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "roof repair in fairfax", gotReq.Input)
	assert.Equal(t, 3, gotReq.Dimensions)
}

func TestEmbedRejectsWrongDimension(t *testing.T) {
	_, c := newTestServer(t, vectorResponse([]float32{0.1, 0.2}))

	_, err := c.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimensions")
}

func TestEmbedRejectsZeroVector(t *testing.T) {
	_, c := newTestServer(t, vectorResponse([]float32{0, 0, 0}))

	_, err := c.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all-zero")
}

func TestEmbedRejectsEmptyText(t *testing.T) {
	_, c := newTestServer(t, vectorResponse([]float32{0.1, 0.2, 0.3}))

	_, err := c.Embed(context.Background(), "")
	assert.Error(t, err)
}

func TestEmbedSurfacesAPIError(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := c.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestEmbedEmptyResponse(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	})

	_, err := c.Embed(context.Background(), "text")
	assert.Error(t, err)
}
