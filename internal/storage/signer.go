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

// Package storage issues time-limited download links for Cloud Storage objects.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/your-org/agentbridge/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
)

const (
	// MaxExpiry is the longest lifetime V4 signatures allow
	MaxExpiry = 7 * 24 * time.Hour

	// The signed lifetime is measured from the library's own clock and
	// truncated to whole seconds; the margin keeps the last second.
	expiryMargin = 500 * time.Millisecond
)

var (
	// ErrInvalidObject is returned for an empty bucket or object name
	ErrInvalidObject = errors.New("bucket and object are required")
	// ErrInvalidExpiry is returned for an expiry outside (0, MaxExpiry]
	ErrInvalidExpiry = errors.New("expiry must be positive and at most 7 days")
)

// Signer signs GET URLs with a service account key loaded at startup
type Signer struct {
	accessID   string
	privateKey []byte
	logger     *zap.Logger
}

// NewSigner loads a service account JSON key file
func NewSigner(keyFile string, logger *zap.Logger) (*Signer, error) {
	raw, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account key: %w", err)
	}
	return NewSignerFromJSON(raw, logger)
}

// NewSignerFromJSON parses a service account JSON key
func NewSignerFromJSON(raw []byte, logger *zap.Logger) (*Signer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg, err := google.JWTConfigFromJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account key: %w", err)
	}
	if cfg.Email == "" || len(cfg.PrivateKey) == 0 {
		return nil, fmt.Errorf("service account key is missing client_email or private_key")
	}

	logger.Info("Loaded URL signing credentials", zap.String("service_account", cfg.Email))

	return &Signer{
		accessID:   cfg.Email,
		privateKey: cfg.PrivateKey,
		logger:     logger,
	}, nil
}

// ServiceAccount returns the signing identity
func (s *Signer) ServiceAccount() string {
	return s.accessID
}

// SignedURL returns a V4 signed GET URL for bucket/object valid for expiry
func (s *Signer) SignedURL(_ context.Context, bucket, object string, expiry time.Duration) (string, error) {
	if strings.TrimSpace(bucket) == "" || strings.TrimSpace(object) == "" {
		metrics.SignedURLs.WithLabelValues("invalid").Inc()
		return "", ErrInvalidObject
	}
	if expiry <= 0 || expiry > MaxExpiry {
		metrics.SignedURLs.WithLabelValues("invalid").Inc()
		return "", ErrInvalidExpiry
	}

	url, err := gcs.SignedURL(bucket, object, &gcs.SignedURLOptions{
		GoogleAccessID: s.accessID,
		PrivateKey:     s.privateKey,
		Method:         "GET",
		Expires:        time.Now().Add(expiry + expiryMargin),
		Scheme:         gcs.SigningSchemeV4,
	})
	if err != nil {
		metrics.SignedURLs.WithLabelValues("error").Inc()
		s.logger.Warn("Failed to sign URL",
			zap.String("bucket", bucket),
			zap.String("object", object),
			zap.Error(err))
		return "", fmt.Errorf("failed to sign url for gs://%s/%s: %w", bucket, object, err)
	}

	metrics.SignedURLs.WithLabelValues("ok").Inc()
	return url, nil
}
