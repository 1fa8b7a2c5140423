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

// Package storagetest provides throwaway service account keys for tests.
package storagetest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ClientEmail is the service account of every generated key
const ClientEmail = "signer@test-project.iam.gserviceaccount.com"

// ServiceAccountJSON returns a service account key file with a fresh RSA key
func ServiceAccountJSON(tb testing.TB) []byte {
	tb.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(tb, err)

	pemKey := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	raw, err := json.Marshal(map[string]string{
		"type":           "service_account",
		"project_id":     "test-project",
		"private_key_id": "key-1",
		"private_key":    string(pemKey),
		"client_email":   ClientEmail,
		"client_id":      "1234",
		"token_uri":      "https://oauth2.googleapis.com/token",
	})
	require.NoError(tb, err)
	return raw
}

// WriteServiceAccountFile writes a generated key into a temp dir and returns its path
func WriteServiceAccountFile(tb testing.TB) string {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "gcs_key.json")
	require.NoError(tb, os.WriteFile(path, ServiceAccountJSON(tb), 0o600))
	return path
}
