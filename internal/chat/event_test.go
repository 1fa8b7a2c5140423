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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/agentbridge/internal/answer"
)

func TestParseEvent_Success(t *testing.T) {
	body := []byte(`{
		"type": "MESSAGE",
		"user": {"name": "users/123", "displayName": "Kim", "email": "kim@example.com", "type": "HUMAN"},
		"message": {"name": "spaces/AAA/messages/BBB", "text": "@bot  VPN 설정 방법  ", "argumentText": "  VPN 설정 방법  "},
		"space": {"name": "spaces/AAA", "type": "ROOM"}
	}`)

	event, err := ParseEvent(body)
	require.NoError(t, err)

	assert.Equal(t, "VPN 설정 방법", event.Query())
	assert.Equal(t, answer.User{Email: "kim@example.com", DisplayName: "Kim"}, event.Asker())
	assert.Equal(t, "spaces/AAA", event.SpaceName())
	assert.Equal(t, "spaces/AAA/messages/BBB", event.Message.Name)
}

func TestParseEvent_MinimalEvent(t *testing.T) {
	event, err := ParseEvent([]byte(`{"user":{},"message":{}}`))
	require.NoError(t, err)

	assert.Equal(t, "", event.Query())
	assert.Equal(t, answer.User{}, event.Asker())
	assert.Equal(t, "", event.SpaceName())
}

func TestParseEvent_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ``},
		{name: "invalid json", body: `{"user":`},
		{name: "null", body: `null`},
		{name: "array", body: `[{"user":{},"message":{}}]`},
		{name: "string", body: `"hello"`},
		{name: "empty object", body: `{}`},
		{name: "missing user", body: `{"message":{"argumentText":"hi"}}`},
		{name: "missing message", body: `{"user":{"email":"a@b.com"}}`},
		{name: "null message", body: `{"user":{},"message":null}`},
		{name: "message not object", body: `{"user":{},"message":"hi"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := ParseEvent([]byte(tt.body))
			require.Error(t, err)
			assert.Nil(t, event)
			assert.True(t, errors.Is(err, ErrMalformedEvent))
		})
	}
}

func TestParseStorageLocator(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantOK     bool
	}{
		{uri: "gs://bucket-a/path/to/obj", wantBucket: "bucket-a", wantObject: "path/to/obj", wantOK: true},
		{uri: "gs://b/file.pdf", wantBucket: "b", wantObject: "file.pdf", wantOK: true},
		{uri: "gs://b/한글 문서.pdf", wantBucket: "b", wantObject: "한글 문서.pdf", wantOK: true},
		{uri: "gs://b"},
		{uri: "gs://b/"},
		{uri: "gs:///obj"},
		{uri: "no uri"},
		{uri: ""},
		{uri: "/"},
		{uri: "bucket/path/to/obj"},
		{uri: ":/x/y/z"},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, ok := ParseStorageLocator(tt.uri)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantObject, object)
		})
	}
}
