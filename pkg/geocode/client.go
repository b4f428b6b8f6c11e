// Package geocode resolves street addresses to coordinates via the Census
// Geocoder (primary) with Google as an optional fallback.
package geocode

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// ErrNotFound means no provider produced a match for the address. Callers
// persist the entity without coordinates and may backfill later.
var ErrNotFound = eris.New("geocode: address not found")

// Result holds the geocoding output for an address.
type Result struct {
	Latitude  float64
	Longitude float64
	Source    string // "census" or "google"
	Quality   string // "rooftop", "range", "centroid", "approximate"

	// RawResponse is the provider's unparsed response body, retained for
	// audit of the match.
	RawResponse []byte
}

// Client geocodes free-form addresses.
type Client interface {
	Geocode(ctx context.Context, address string) (*Result, error)
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithGoogleAPIKey enables Google Geocoding API as a fallback.
func WithGoogleAPIKey(key string) Option {
	return func(g *geocoder) {
		g.googleKey = key
	}
}

// WithHTTPClient sets a custom HTTP client for both providers.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit shared by both providers.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		g.limiter = rate.NewLimiter(rate.Limit(rps), int(rps))
	}
}

type geocoder struct {
	httpClient *http.Client
	googleKey  string
	limiter    *rate.Limiter

	censusURL string
	googleURL string
}

// NewClient creates a geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
		censusURL:  censusOneLineURL,
		googleURL:  googleGeocodeURL,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Geocode tries Census first, then Google when configured. Returns
// ErrNotFound when neither provider matched; transport failures surface as
// their own errors.
func (g *geocoder) Geocode(ctx context.Context, address string) (*Result, error) {
	result, censusErr := g.geocodeCensus(ctx, address)
	if censusErr == nil && result != nil {
		return result, nil
	}

	if g.googleKey != "" {
		result, googleErr := g.geocodeGoogle(ctx, address)
		if googleErr == nil && result != nil {
			return result, nil
		}
		if censusErr != nil && googleErr != nil {
			return nil, eris.Wrap(googleErr, "geocode: all providers failed")
		}
	} else if censusErr != nil {
		return nil, censusErr
	}

	return nil, ErrNotFound
}
