// Copyright 2024 AI SA Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package discovery wraps the Discovery Engine REST endpoints used by the
// bridge: default search, grounded answer generation and the assistant.
package discovery

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

	"github.com/your-org/agentbridge/internal/auth"
	"github.com/your-org/agentbridge/internal/metrics"
	"github.com/your-org/agentbridge/internal/resilience"
	"go.uber.org/zap"
)

const (
	// DefaultEndpoint is the public Discovery Engine host
	DefaultEndpoint = "https://discoveryengine.googleapis.com"
	// DefaultAPIVersion is the API version the engine is served under
	DefaultAPIVersion = "v1alpha"
	// DefaultLocation is the engine location
	DefaultLocation = "global"
	// DefaultCollection is the collection holding the engine
	DefaultCollection = "default_collection"
	// DefaultLanguageCode is the deployment locale sent with searches
	DefaultLanguageCode = "ko"
	// PageSize is the fixed number of search results requested
	PageSize = 5

	maxResponseBytes = 8 << 20
	maxErrorBody     = 512
)

type endpoint struct {
	name string
	path string
}

var (
	searchEndpoint = endpoint{name: "search", path: "servingConfigs/default_search:search"}
	answerEndpoint = endpoint{name: "answer", path: "servingConfigs/default_search:answer"}
	assistEndpoint = endpoint{name: "assist", path: "assistants/cx_assistant:assist"}
)

// Settings identifies the engine and shapes every request. It is built once
// from configuration and never mutated.
type Settings struct {
	Endpoint      string
	APIVersion    string
	ProjectNumber string
	Location      string
	Collection    string
	EngineID      string
	LanguageCode  string
	Timeout       time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.Endpoint == "" {
		s.Endpoint = DefaultEndpoint
	}
	if s.APIVersion == "" {
		s.APIVersion = DefaultAPIVersion
	}
	if s.Location == "" {
		s.Location = DefaultLocation
	}
	if s.Collection == "" {
		s.Collection = DefaultCollection
	}
	if s.LanguageCode == "" {
		s.LanguageCode = DefaultLanguageCode
	}
	if s.Timeout <= 0 {
		s.Timeout = resilience.DefaultTimeout
	}
	return s
}

// EnginePath returns the resource name of the engine
func (s Settings) EnginePath() string {
	return fmt.Sprintf("projects/%s/locations/%s/collections/%s/engines/%s",
		s.ProjectNumber, s.Location, s.Collection, s.EngineID)
}

// SessionTemplate asks the service to open a new session for a search
func (s Settings) SessionTemplate() string {
	return s.EnginePath() + "/sessions/-"
}

func (s Settings) url(ep endpoint) string {
	return fmt.Sprintf("%s/%s/%s/%s", strings.TrimRight(s.Endpoint, "/"), s.APIVersion, s.EnginePath(), ep.path)
}

// APIError is the error every client call returns when the upstream fails.
// StatusCode is set for non-2xx responses; it is zero when no usable response
// was received (transport failure, timeout, undecodable body).
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s API error: status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s API error: %v", e.Endpoint, e.Err)
}

// Unwrap returns the underlying cause, if any
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsAPIError reports whether err is (or wraps) an upstream APIError
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// Client talks to a single Discovery Engine app
type Client struct {
	settings   Settings
	tokens     auth.TokenProvider
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client with a default HTTP client
func NewClient(settings Settings, tokens auth.TokenProvider, logger *zap.Logger) *Client {
	return NewClientWithHTTP(settings, tokens, &http.Client{}, logger)
}

// NewClientWithHTTP creates a client using the supplied HTTP client
func NewClientWithHTTP(settings Settings, tokens auth.TokenProvider, httpClient *http.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		settings:   settings.withDefaults(),
		tokens:     tokens,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Settings returns the effective settings
func (c *Client) Settings() Settings {
	return c.settings
}

// post sends payload to ep and decodes the body into out. The token fetch
// and the request share one deadline. Credential failures are returned as-is;
// everything else becomes an *APIError.
func (c *Client) post(ctx context.Context, ep endpoint, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", ep.name, err)
	}

	c.logger.Debug("Sending Discovery Engine request",
		zap.String("endpoint", ep.name),
		zap.ByteString("payload", body))

	start := time.Now()
	status := 0
	var tokenErr error

	err = resilience.WithTimeout(ctx, c.settings.Timeout, c.logger, func(ctx context.Context) error {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			tokenErr = fmt.Errorf("%s: %w", ep.name, err)
			return tokenErr
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.settings.url(ep), bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to make request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		status = resp.StatusCode
		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &APIError{
				Endpoint:   ep.name,
				StatusCode: resp.StatusCode,
				Body:       truncate(string(raw), maxErrorBody),
			}
		}

		c.logger.Debug("Received Discovery Engine response",
			zap.String("endpoint", ep.name),
			zap.Int("status_code", resp.StatusCode),
			zap.ByteString("body", raw))

		if out == nil || len(bytes.TrimSpace(raw)) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})

	if tokenErr != nil {
		c.logger.Warn("No access token for Discovery Engine call",
			zap.String("endpoint", ep.name),
			zap.Error(tokenErr))
		return tokenErr
	}

	metrics.ObserveUpstream(ep.name, status, time.Since(start))

	if err == nil {
		return nil
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		apiErr = &APIError{Endpoint: ep.name, Err: err}
	}

	c.logger.Warn("Discovery Engine call failed",
		zap.String("endpoint", ep.name),
		zap.Int("status_code", apiErr.StatusCode),
		zap.String("body", apiErr.Body),
		zap.Error(apiErr.Err))

	return apiErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
