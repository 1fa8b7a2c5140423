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

// Package auth supplies bearer tokens for calls to Google Cloud APIs.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// CloudPlatformScope is the OAuth scope required by Discovery Engine
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// ErrCredentials is returned when no usable identity is available
var ErrCredentials = errors.New("credentials unavailable")

// TokenProvider returns a bearer token for outbound calls
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc is a function adapter for the TokenProvider interface
type TokenFunc func(ctx context.Context) (string, error)

// Token implements TokenProvider
func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticTokenProvider always returns the same token
type StaticTokenProvider string

// Token implements TokenProvider
func (s StaticTokenProvider) Token(_ context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", fmt.Errorf("%w: empty static token", ErrCredentials)
	}
	return string(s), nil
}

// GoogleTokenProvider resolves Application Default Credentials once and asks
// the resulting token source for a token on every call. The source refreshes
// expired tokens itself.
type GoogleTokenProvider struct {
	source    oauth2.TokenSource
	projectID string
	logger    *zap.Logger
}

// NewGoogleTokenProvider locates the ambient Google identity
func NewGoogleTokenProvider(ctx context.Context, logger *zap.Logger) (*GoogleTokenProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	creds, err := google.FindDefaultCredentials(ctx, CloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentials, err)
	}

	logger.Info("Using application default credentials", zap.String("project_id", creds.ProjectID))

	return &GoogleTokenProvider{
		source:    creds.TokenSource,
		projectID: creds.ProjectID,
		logger:    logger,
	}, nil
}

// NewTokenSourceProvider wraps an existing oauth2 token source
func NewTokenSourceProvider(source oauth2.TokenSource, logger *zap.Logger) *GoogleTokenProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleTokenProvider{source: source, logger: logger}
}

// ProjectID returns the project the default credentials belong to, if known
func (p *GoogleTokenProvider) ProjectID() string {
	return p.projectID
}

// Token implements TokenProvider. The token source takes no context, so a
// refresh still in flight when ctx ends is abandoned.
func (p *GoogleTokenProvider) Token(ctx context.Context) (string, error) {
	type result struct {
		tok *oauth2.Token
		err error
	}

	done := make(chan result, 1)
	go func() {
		tok, err := p.source.Token()
		done <- result{tok: tok, err: err}
	}()

	var r result
	select {
	case <-ctx.Done():
		p.logger.Warn("Access token request abandoned", zap.Error(ctx.Err()))
		return "", fmt.Errorf("%w: %w", ErrCredentials, ctx.Err())
	case r = <-done:
	}

	if r.err != nil {
		p.logger.Error("Failed to obtain access token", zap.Error(r.err))
		return "", fmt.Errorf("%w: %v", ErrCredentials, r.err)
	}
	if r.tok.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrCredentials)
	}
	return r.tok.AccessToken, nil
}
