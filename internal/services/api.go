// API service for raw authenticated requests against the Web API
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/fanlist/internal/shared"
)

// APIService makes raw requests through the [Fetcher], for debugging endpoints by hand.
type APIService struct {
	baseURL string
	fetcher *Fetcher
}

// NewAPIService creates a new API service. An empty baseURL targets the public Web API.
func NewAPIService(baseURL string, fetcher *Fetcher) *APIService {
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}
	return &APIService{baseURL: strings.TrimSuffix(baseURL, "/"), fetcher: fetcher}
}

// APIResponse is a raw response body, decoded when it is JSON.
type APIResponse struct {
	URL      string
	Body     []byte
	IsJSON   bool
	JSONData any
}

// resolve accepts absolute URLs and paths relative to the base URL ("/me" or "me").
func (a *APIService) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return a.baseURL + "/" + strings.TrimPrefix(path, "/")
}

// Get performs an authenticated GET. Non-2xx statuses come back as [shared.APIError].
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	if a.fetcher == nil {
		return nil, fmt.Errorf("%w: fetcher not configured", shared.ErrServiceUnavailable)
	}
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}

	full := a.resolve(path)
	body, err := a.fetcher.Do(ctx, Request{Method: http.MethodGet, URL: full})
	if err != nil {
		return nil, err
	}

	resp := &APIResponse{URL: full, Body: body}
	var data any
	if err := json.Unmarshal(body, &data); err == nil {
		resp.IsJSON = true
		resp.JSONData = data
	}
	return resp, nil
}
