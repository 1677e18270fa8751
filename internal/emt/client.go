package emt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultBaseURL is the EMT Madrid MobilityLabs open API.
	DefaultBaseURL = "https://openapi.emtmadrid.es/"
	// DefaultTimeout for HTTP requests.
	DefaultTimeout = 10 * time.Second

	userAgent = "emt-madrid/1.0"
)

// ErrInvalidMethod is returned when a request is built with a method other than GET or POST.
var ErrInvalidMethod = errors.New("invalid HTTP method")

// TransportError wraps any failure of the HTTP exchange itself: connection errors, timeouts,
// non-2xx statuses and bodies that are not JSON.
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("error while connecting to EMT API: %s %s: status %d: %v", e.Method, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("error while connecting to EMT API: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Response is the envelope every MobilityLabs endpoint answers with.
type Response struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Data        json.RawMessage `json:"data"`
}

// Client sends requests to the EMT API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new EMT client with default settings.
func NewClient() *Client {
	return NewClientWithBaseURL(DefaultBaseURL)
}

// NewClientWithBaseURL creates a new EMT client against a custom base URL.
func NewClientWithBaseURL(baseURL string) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// BaseURL returns the API root every endpoint path is joined to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request performs a GET or POST against path (relative to the base URL) and decodes the
// response envelope. POST bodies are sent as JSON; GET requests never carry a body.
func (c *Client) Request(ctx context.Context, method, path string, headers map[string]string, body any) (*Response, error) {
	if method != http.MethodGet && method != http.MethodPost {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMethod, method)
	}

	url := c.baseURL + strings.TrimPrefix(path, "/")

	var reader io.Reader
	if method == http.MethodPost {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	log.Debug().Str("method", method).Str("url", url).Msg("EMT request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			Method:     method,
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	var response Response
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, &TransportError{Method: method, URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to parse JSON: %w", err)}
	}

	return &response, nil
}
