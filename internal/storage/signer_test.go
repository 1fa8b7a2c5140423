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

package storage

import (
	"context"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/agentbridge/internal/storage/storagetest"
	"go.uber.org/zap/zaptest"
)

func TestNewSigner_FromFile(t *testing.T) {
	signer, err := NewSigner(storagetest.WriteServiceAccountFile(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, storagetest.ClientEmail, signer.ServiceAccount())
}

func TestNewSigner_Errors(t *testing.T) {
	_, err := NewSigner(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.Error(t, err)

	_, err = NewSignerFromJSON([]byte(`{"type":"authorized_user"}`), nil)
	assert.Error(t, err)
}

func TestSigner_SignedURL(t *testing.T) {
	signer, err := NewSignerFromJSON(storagetest.ServiceAccountJSON(t), zaptest.NewLogger(t))
	require.NoError(t, err)

	before := time.Now().UTC().Truncate(time.Second)
	signed, err := signer.SignedURL(context.Background(), "bucket-a", "path/to/obj", time.Hour)
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "storage.googleapis.com", u.Host)
	assert.Equal(t, "/bucket-a/path/to/obj", u.Path)

	q := u.Query()
	assert.Equal(t, "GOOG4-RSA-SHA256", q.Get("X-Goog-Algorithm"))
	assert.Equal(t, "3600", q.Get("X-Goog-Expires"))
	assert.Contains(t, q.Get("X-Goog-Credential"), storagetest.ClientEmail)
	assert.NotEmpty(t, q.Get("X-Goog-Signature"))

	signedAt, err := time.Parse("20060102T150405Z", q.Get("X-Goog-Date"))
	require.NoError(t, err)
	assert.WithinDuration(t, before, signedAt, time.Minute)
}

func TestSigner_SignedURL_WholeSecondLifetime(t *testing.T) {
	signer, err := NewSignerFromJSON(storagetest.ServiceAccountJSON(t), nil)
	require.NoError(t, err)

	tests := []struct {
		expiry time.Duration
		want   string
	}{
		{time.Minute, "60"},
		{time.Hour, "3600"},
		{MaxExpiry, "604800"},
	}

	for _, tt := range tests {
		t.Run(tt.expiry.String(), func(t *testing.T) {
			for i := 0; i < 3; i++ {
				signed, err := signer.SignedURL(context.Background(), "bucket-a", "obj", tt.expiry)
				require.NoError(t, err)

				u, err := url.Parse(signed)
				require.NoError(t, err)
				assert.Equal(t, tt.want, u.Query().Get("X-Goog-Expires"))
			}
		})
	}
}

func TestSigner_SignedURL_Validation(t *testing.T) {
	signer, err := NewSignerFromJSON(storagetest.ServiceAccountJSON(t), nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		bucket  string
		object  string
		expiry  time.Duration
		wantErr error
	}{
		{"empty bucket", "", "obj", time.Hour, ErrInvalidObject},
		{"empty object", "bucket", " ", time.Hour, ErrInvalidObject},
		{"zero expiry", "bucket", "obj", 0, ErrInvalidExpiry},
		{"expiry too long", "bucket", "obj", MaxExpiry + time.Second, ErrInvalidExpiry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := signer.SignedURL(context.Background(), tt.bucket, tt.object, tt.expiry)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
