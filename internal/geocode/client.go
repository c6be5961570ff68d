package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client issues text searches against a Nominatim-compatible service,
// scoped to one country and asking for a single candidate. It does not
// throttle itself; callers pace their calls.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	countryCode string
	userAgent   string
	logger      *zap.Logger
}

// NewClient creates a geocoding client.
func NewClient(baseURL, countryCode, userAgent string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		countryCode: countryCode,
		userAgent:   userAgent,
		logger:      logger,
	}
}

// Lookup searches for query and returns the first candidate's position.
// Any failure is reported through the Result, never as a panic or error.
func (c *Client) Lookup(ctx context.Context, query string) Result {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{Outcome: OutcomeSkipped}
	}

	coords, err := c.search(ctx, query)
	switch {
	case err != nil:
		c.logger.Debug("geocode lookup failed", zap.String("query", query), zap.Error(err))
		return Result{Outcome: OutcomeFailed, Err: err}
	case coords == nil:
		return Result{Outcome: OutcomeEmpty}
	default:
		return Result{Coordinates: coords, Outcome: OutcomeFound}
	}
}

func (c *Client) search(ctx context.Context, query string) (*Coordinates, error) {
	params := url.Values{
		"format":       {"json"},
		"limit":        {"1"},
		"countrycodes": {c.countryCode},
		"q":            {query},
	}
	fullURL := c.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("geocoder error: status %d: %s", resp.StatusCode, body)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(places) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lat %q: %w", places[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lon %q: %w", places[0].Lon, err)
	}
	return &Coordinates{Latitude: lat, Longitude: lon}, nil
}

// Nominatim search response entry. Coordinates come back as strings.
type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}
