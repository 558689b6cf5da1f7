// Package enrich wraps the third-party services that help a citizen fill in a
// report: reverse geocoding, photo classification and translation.
package enrich

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

var ErrNotConfigured = errors.New("service not configured")

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

func trimBase(u string) string {
	return strings.TrimRight(u, "/")
}
