package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

var ErrNoAddress = errors.New("no address found for coordinates")

// Geocoder turns coordinates into a human readable address using a
// BigDataCloud compatible reverse-geocode endpoint.
type Geocoder struct {
	endpoint   string
	httpClient *http.Client
}

func NewGeocoder(endpoint string) *Geocoder {
	return &Geocoder{endpoint: endpoint, httpClient: newHTTPClient()}
}

type geocodeResponse struct {
	Locality             string `json:"locality"`
	City                 string `json:"city"`
	PrincipalSubdivision string `json:"principalSubdivision"`
}

func (g *Geocoder) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	if g == nil || g.endpoint == "" {
		return "", ErrNotConfigured
	}
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lng, 'f', -1, 64))
	params.Set("localityLanguage", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call geocoder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("geocoder returned error: %s - %s", resp.Status, string(body))
	}
	var out geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode geocoder response: %w", err)
	}

	parts := make([]string, 0, 3)
	for _, p := range []string{out.Locality, out.City, out.PrincipalSubdivision} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "", ErrNoAddress
	}
	return strings.Join(parts, ", "), nil
}
