// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Configuration constants for OpenRouter API.
const (
	// DefaultOpenRouterURL is the base URL for OpenRouter API.
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

	// DefaultSiteName is sent as X-Title.
	DefaultSiteName = "ChatFlow"

	// DefaultSiteURL is sent as HTTP-Referer.
	DefaultSiteURL = "https://chatflow.local"

	// MaxResponseSize is the maximum allowed non-streaming response body size.
	// SECURITY: Response size limit prevents memory exhaustion attacks.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit
)

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
// No client timeout: streaming requests are bounded by the caller's context.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
}

// ChatMessage represents a single message in a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`    // "user" or "assistant"
	Content string `json:"content"` // The message content
}

// ChatRequest represents a request to the chat completions endpoint.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// OpenRouterClient is a client for the OpenRouter API. It holds no
// credential; every call is made with the key it is given.
type OpenRouterClient struct {
	baseURL    string
	httpClient *http.Client
	siteURL    string
	siteName   string
	logger     *slog.Logger

	// malformed throttles the skipped-frame diagnostic
	malformed *rate.Sometimes
}

// NewOpenRouterClient creates a client for the public OpenRouter endpoint.
func NewOpenRouterClient() *OpenRouterClient {
	return &OpenRouterClient{
		baseURL:    DefaultOpenRouterURL,
		httpClient: sharedHTTPClient,
		siteURL:    DefaultSiteURL,
		siteName:   DefaultSiteName,
		logger:     slog.Default(),
		malformed:  &rate.Sometimes{First: 3, Interval: 10 * time.Second},
	}
}

// WithBaseURL sets a custom base URL for the API.
func (c *OpenRouterClient) WithBaseURL(url string) *OpenRouterClient {
	if url != "" {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
	return c
}

// WithHTTPClient replaces the pooled HTTP client.
func (c *OpenRouterClient) WithHTTPClient(hc *http.Client) *OpenRouterClient {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// WithSiteURL sets the site URL for rate limit categorization.
func (c *OpenRouterClient) WithSiteURL(url string) *OpenRouterClient {
	c.siteURL = url
	return c
}

// WithSiteName sets the site name for OpenRouter.
func (c *OpenRouterClient) WithSiteName(name string) *OpenRouterClient {
	c.siteName = name
	return c
}

// WithLogger sets the request logger.
func (c *OpenRouterClient) WithLogger(logger *slog.Logger) *OpenRouterClient {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// BaseURL returns the API base URL.
func (c *OpenRouterClient) BaseURL() string {
	return c.baseURL
}

// setHeaders sets the required headers for OpenRouter API requests.
func (c *OpenRouterClient) setHeaders(req *http.Request, credential string) {
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/json")
	if c.siteURL != "" {
		req.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.siteName != "" {
		req.Header.Set("X-Title", c.siteName)
	}
}

// do sends req and logs method, path, status and duration. Headers and
// bodies are never logged.
func (c *OpenRouterClient) do(req *http.Request, credential string) (*http.Response, error) {
	c.setHeaders(req, credential)
	start := time.Now()
	resp, err := c.httpClient.Do(req)

	// SECURITY: Clear Authorization header immediately after request to prevent logging
	req.Header.Del("Authorization")

	if err != nil {
		c.logger.Debug("api request failed",
			"method", req.Method, "path", req.URL.Path,
			"key", KeyFingerprint(credential), "error", err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	c.logger.Debug("api response",
		"method", req.Method, "path", req.URL.Path,
		"status", resp.StatusCode, "duration", time.Since(start),
		"key", KeyFingerprint(credential))
	return resp, nil
}

// readResponse reads the response body with size limits to prevent memory exhaustion.
//
// SECURITY: Response size limit prevents memory exhaustion attacks.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// KeyFingerprint returns a short SHA-256 fingerprint of an API key for logs.
// SECURITY: Never exposes key fragments.
func KeyFingerprint(credential string) string {
	if credential == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(h[:4])
}

// isSuccess reports whether status is 2xx.
func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
