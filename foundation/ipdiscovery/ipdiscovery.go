// Package ipdiscovery provides a minimal way for a node to learn its own
// public IP address when it isn't told to use localhost. The exact
// provider is treated as swappable: this package only needs to satisfy
// one HTTP GET against a plain-text IP echo service.
package ipdiscovery

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultEndpoint is used when the caller doesn't override it.
const DefaultEndpoint = "https://api.ipify.org"

// Timeout bounds the discovery request.
const Timeout = 5 * time.Second

// Discover GETs endpoint and returns the trimmed response body, expected
// to be a bare IP address. Pass "" for endpoint to use DefaultEndpoint.
func Discover(ctx context.Context, endpoint string) (string, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(body)), nil
}
