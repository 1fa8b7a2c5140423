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

package chat

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"google.golang.org/api/idtoken"
)

const (
	// ChatIssuer is the identity Google Chat signs its bearer tokens as
	ChatIssuer = "chat@system.gserviceaccount.com"
	// ChatCertsURL publishes the certificates of ChatIssuer
	ChatCertsURL = "https://www.googleapis.com/service_accounts/v1/metadata/x509/" + ChatIssuer

	maxCertsBytes = 1 << 20
)

var (
	// ErrMissingToken is returned when the request carries no bearer token
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken is returned when the bearer token does not verify
	ErrInvalidToken = errors.New("invalid bearer token")
)

// ValidateFunc validates a Google-signed OIDC token for an audience
type ValidateFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// KeySource looks up the public key a token was signed with
type KeySource interface {
	PublicKey(ctx context.Context, keyID string) (*rsa.PublicKey, error)
}

// CertSource reads signing certificates from a JSON document mapping key ids
// to PEM certificates, as published for Google service accounts. The document
// is fetched on every lookup.
type CertSource struct {
	url        string
	httpClient *http.Client
}

// NewCertSource creates a key source for the certificates published at url
func NewCertSource(url string, httpClient *http.Client) *CertSource {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &CertSource{url: url, httpClient: httpClient}
}

// PublicKey implements KeySource
func (s *CertSource) PublicKey(ctx context.Context, keyID string) (*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch certificates: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("certificate endpoint returned status %d", resp.StatusCode)
	}

	var certs map[string]string
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxCertsBytes)).Decode(&certs); err != nil {
		return nil, fmt.Errorf("failed to decode certificates: %w", err)
	}

	cert, ok := certs[keyID]
	if !ok {
		return nil, fmt.Errorf("no certificate for key id %q", keyID)
	}
	return jwt.ParseRSAPublicKeyFromPEM([]byte(cert))
}

// Verifier checks that an inbound request was sent by Google Chat. The
// audience selects how: an endpoint URL audience means Google Chat sent an
// OIDC token for ChatIssuer's account; any other audience is the project
// number, and the token is a JWT issued and signed by ChatIssuer itself.
type Verifier struct {
	audience    string
	urlAudience bool
	validate    ValidateFunc
	keys        KeySource
	logger      *zap.Logger
	enabled     bool
}

// NewVerifier creates a verifier for audience. An empty audience disables
// verification.
func NewVerifier(audience string, logger *zap.Logger) *Verifier {
	return NewVerifierWithValidator(audience, idtoken.Validate, NewCertSource(ChatCertsURL, nil), logger)
}

// NewVerifierWithValidator creates a verifier with a custom OIDC validator and
// key source
func NewVerifierWithValidator(audience string, validate ValidateFunc, keys KeySource, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}

	enabled := audience != ""
	if !enabled {
		logger.Warn("Chat request verification disabled - no audience configured. " +
			"This should only be used in development environments.")
	}

	return &Verifier{
		audience:    audience,
		urlAudience: strings.HasPrefix(audience, "https://") || strings.HasPrefix(audience, "http://"),
		validate:    validate,
		keys:        keys,
		logger:      logger,
		enabled:     enabled,
	}
}

// Enabled reports whether requests are verified
func (v *Verifier) Enabled() bool {
	return v.enabled
}

// Verify checks the Authorization header of req
func (v *Verifier) Verify(ctx context.Context, req *http.Request) error {
	if !v.enabled {
		return nil
	}

	token, ok := bearerToken(req.Header.Get("Authorization"))
	if !ok {
		v.logger.Warn("Chat request verification failed", zap.String("reason", "no bearer token"))
		return ErrMissingToken
	}

	var (
		subject string
		err     error
	)
	if v.urlAudience {
		subject, err = v.verifyOIDC(ctx, token)
	} else {
		subject, err = v.verifyChatJWT(ctx, token)
	}
	if err != nil {
		v.logger.Warn("Chat request verification failed",
			zap.Bool("url_audience", v.urlAudience),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	v.logger.Debug("Chat request verified", zap.String("subject", subject))
	return nil
}

func (v *Verifier) verifyOIDC(ctx context.Context, token string) (string, error) {
	if v.validate == nil {
		return "", errors.New("no token validator configured")
	}

	payload, err := v.validate(ctx, token, v.audience)
	if err != nil {
		return "", err
	}

	email, _ := payload.Claims["email"].(string)
	verified, _ := payload.Claims["email_verified"].(bool)
	if email != ChatIssuer || !verified {
		return "", fmt.Errorf("token email %q is not the verified Google Chat account", email)
	}
	return payload.Subject, nil
}

func (v *Verifier) verifyChatJWT(ctx context.Context, token string) (string, error) {
	if v.keys == nil {
		return "", errors.New("no key source configured")
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		keyID, _ := t.Header["kid"].(string)
		if keyID == "" {
			return nil, errors.New("token has no key id")
		}
		return v.keys.PublicKey(ctx, keyID)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.audience),
		jwt.WithIssuer(ChatIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}

	subject, _ := parsed.Claims.GetSubject()
	return subject, nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
