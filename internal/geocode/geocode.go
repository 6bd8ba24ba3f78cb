// Package geocode resolves buyer city names to coordinates for the
// sales map, using the Nominatim search API. Lookups are best-effort:
// the map section degrades to unplotted rows when the service is
// unreachable, it never fails the page.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/biter777/countries"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/ferreiramx/smart-events/internal/logging"
)

// ErrNotFound is returned when the geocoder has no match for a city.
var ErrNotFound = errors.New("location not found")

const (
	defaultTimeout = 10 * time.Second
	userAgent      = "smart-events/1.0"
)

// Coordinates is a resolved latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Client queries a Nominatim-compatible endpoint and caches results for
// the process lifetime. City names repeat heavily across events, so the
// cache keeps the dashboard well under the public usage limits.
type Client struct {
	baseURL string
	http    *fasthttp.Client

	mu    sync.RWMutex
	cache map[string]Coordinates
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http: &fasthttp.Client{
			ReadTimeout:  defaultTimeout,
			WriteTimeout: defaultTimeout,
		},
		cache: make(map[string]Coordinates),
	}
}

// Resolve geocodes a city within a country. The country name is
// canonicalized to its ISO code first so variants like "Mexico" and
// "México" hit the same cache entry and narrow the search the same way.
func (c *Client) Resolve(ctx context.Context, city, country string) (Coordinates, error) {
	if city == "" {
		return Coordinates{}, ErrNotFound
	}

	countryCode := ""
	if cc := countries.ByName(country); cc != countries.Unknown {
		countryCode = cc.Alpha2()
	}

	key := city + "|" + countryCode
	c.mu.RLock()
	coords, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return coords, nil
	}

	coords, err := c.lookup(ctx, city, country, countryCode)
	if err != nil {
		return Coordinates{}, err
	}

	c.mu.Lock()
	c.cache[key] = coords
	c.mu.Unlock()
	return coords, nil
}

// nominatimPlace is the slice of the search response we read.
type nominatimPlace struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func (c *Client) lookup(ctx context.Context, city, country, countryCode string) (Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return Coordinates{}, err
	}

	params := url.Values{}
	params.Set("q", city+", "+country)
	params.Set("format", "json")
	params.Set("limit", "1")
	if countryCode != "" {
		params.Set("countrycodes", countryCode)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/search?" + params.Encode())
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetUserAgent(userAgent)

	if err := c.http.DoTimeout(req, resp, defaultTimeout); err != nil {
		return Coordinates{}, fmt.Errorf("geocoder request failed: %w", err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return Coordinates{}, fmt.Errorf("geocoder returned status %d", resp.StatusCode())
	}

	var places []nominatimPlace
	if err := json.Unmarshal(resp.Body(), &places); err != nil {
		return Coordinates{}, fmt.Errorf("failed to parse geocoder response: %w", err)
	}
	if len(places) == 0 {
		logging.L().Debug("no geocoder match", zap.String("city", city), zap.String("country", country))
		return Coordinates{}, ErrNotFound
	}

	lat, latErr := strconv.ParseFloat(places[0].Lat, 64)
	lon, lonErr := strconv.ParseFloat(places[0].Lon, 64)
	if latErr != nil || lonErr != nil {
		return Coordinates{}, fmt.Errorf("geocoder returned malformed coordinates for %s", city)
	}

	return Coordinates{Latitude: lat, Longitude: lon}, nil
}
