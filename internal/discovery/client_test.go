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

package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/agentbridge/internal/auth"
	"github.com/your-org/agentbridge/internal/resilience"
	"go.uber.org/zap/zaptest"
)

const enginePrefix = "/v1alpha/projects/123/locations/global/collections/default_collection/engines/app-1/"

type capturedRequest struct {
	Path          string
	Authorization string
	Body          map[string]interface{}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *[]capturedRequest) {
	t.Helper()

	var captured []capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = json.Unmarshal(raw, &body)
		captured = append(captured, capturedRequest{
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			Body:          body,
		})
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	settings := Settings{
		Endpoint:      server.URL,
		ProjectNumber: "123",
		EngineID:      "app-1",
		Timeout:       2 * time.Second,
	}
	client := NewClient(settings, auth.StaticTokenProvider("test-token"), zaptest.NewLogger(t))
	return client, &captured
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func TestSettings_Defaults(t *testing.T) {
	s := Settings{ProjectNumber: "661", EngineID: "engine"}.withDefaults()

	assert.Equal(t, DefaultEndpoint, s.Endpoint)
	assert.Equal(t, DefaultAPIVersion, s.APIVersion)
	assert.Equal(t, DefaultLanguageCode, s.LanguageCode)
	assert.Equal(t, resilience.DefaultTimeout, s.Timeout)
	assert.Equal(t,
		"projects/661/locations/global/collections/default_collection/engines/engine/sessions/-",
		s.SessionTemplate())
	assert.Equal(t,
		"https://discoveryengine.googleapis.com/v1alpha/projects/661/locations/global/collections/default_collection/engines/engine/servingConfigs/default_search:search",
		s.url(searchEndpoint))
}

func TestClient_Search(t *testing.T) {
	client, captured := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"results":[{"id":"a"},{"id":"b"}],"sessionInfo":{"name":"s1","queryId":"q1"}}`)
	})

	resp, err := client.Search(context.Background(), "refund policy")
	require.NoError(t, err)

	assert.True(t, resp.HasResults())
	assert.Equal(t, 2, resp.ResultCount())
	assert.Equal(t, "s1", resp.SessionInfo.Name)
	assert.Equal(t, "q1", resp.SessionInfo.QueryID)

	require.Len(t, *captured, 1)
	req := (*captured)[0]
	assert.Equal(t, enginePrefix+"servingConfigs/default_search:search", req.Path)
	assert.Equal(t, "Bearer test-token", req.Authorization)
	assert.Equal(t, "refund policy", req.Body["query"])
	assert.EqualValues(t, PageSize, req.Body["pageSize"])
	assert.Equal(t, "ko", req.Body["languageCode"])
	assert.Equal(t,
		"projects/123/locations/global/collections/default_collection/engines/app-1/sessions/-",
		req.Body["session"])
	assert.Equal(t, map[string]interface{}{"mode": "AUTO"}, req.Body["spellCorrectionSpec"])
	assert.Equal(t, map[string]interface{}{"returnRelevanceScore": true}, req.Body["relevanceScoreSpec"])
	assert.Equal(t,
		map[string]interface{}{"snippetSpec": map[string]interface{}{"returnSnippet": true}},
		req.Body["contentSearchSpec"])
	assert.Equal(t,
		map[string]interface{}{"filterExtractionCondition": "ENABLED"},
		req.Body["naturalLanguageQueryUnderstandingSpec"])
}

func TestSearchResponse_HasResults(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected bool
	}{
		{"populated", `{"results":[{"id":"a"}]}`, true},
		{"present but empty", `{"results":[]}`, true},
		{"explicit null", `{"results":null}`, false},
		{"absent", `{"sessionInfo":{"name":"s"}}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp SearchResponse
			require.NoError(t, json.Unmarshal([]byte(tt.body), &resp))
			assert.Equal(t, tt.expected, resp.HasResults())
		})
	}

	var nilResp *SearchResponse
	assert.False(t, nilResp.HasResults())
}

func TestClient_Answer(t *testing.T) {
	client, captured := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"answer":{"answerText":"Refunds within 30 days.","references":[
			{"chunkInfo":{"documentMetadata":{"title":"Policy","uri":"gs://docs/policy.pdf","document":"projects/p/documents/1"}}},
			{"unstructuredDocumentInfo":{"title":"FAQ","uri":"https://example.com/faq"}}
		]}}`)
	})

	resp, err := client.Answer(context.Background(), "refund policy", "s1", "q1")
	require.NoError(t, err)
	require.NotNil(t, resp.Answer)
	assert.Equal(t, "Refunds within 30 days.", resp.Answer.AnswerText)
	require.Len(t, resp.Answer.References, 2)
	assert.Equal(t, "Policy", resp.Answer.References[0].DocumentInfo().Title)
	assert.Equal(t, "gs://docs/policy.pdf", resp.Answer.References[0].DocumentInfo().URI)
	assert.Equal(t, "FAQ", resp.Answer.References[1].DocumentInfo().Title)

	req := (*captured)[0]
	assert.Equal(t, enginePrefix+"servingConfigs/default_search:answer", req.Path)
	assert.Equal(t, map[string]interface{}{"text": "refund policy", "queryId": "q1"}, req.Body["query"])
	assert.Equal(t, "s1", req.Body["session"])
	assert.Equal(t, map[string]interface{}{"enable": false}, req.Body["relatedQuestionsSpec"])
	assert.Equal(t, map[string]interface{}{
		"ignoreAdversarialQuery":      false,
		"ignoreNonAnswerSeekingQuery": false,
		"ignoreLowRelevantContent":    false,
		"multimodalSpec":              map[string]interface{}{},
		"includeCitations":            true,
	}, req.Body["answerGenerationSpec"])
}

func TestClient_Assist(t *testing.T) {
	client, captured := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"answer":{"replies":[
			{"groundedContent":{"content":{"text":"See FAQ."}}},
			{"groundedContent":{}}
		]}}`)
	})

	resp, err := client.Assist(context.Background(), "hello")
	require.NoError(t, err)

	replies := resp.Replies()
	require.Len(t, replies, 2)
	assert.Equal(t, "See FAQ.", replies[0].Text())
	assert.Equal(t, "", replies[1].Text())

	req := (*captured)[0]
	assert.Equal(t, enginePrefix+"assistants/cx_assistant:assist", req.Path)
	assert.Equal(t, map[string]interface{}{"text": "hello"}, req.Body["query"])
}

func TestClient_NonSuccessStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		writeJSON(w, `{"error":{"code":403,"message":"denied"}}`)
	})

	_, err := client.Search(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, IsAPIError(err))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "search", apiErr.Endpoint)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "denied")
	assert.Equal(t, "search API error: status 403", apiErr.Error())
}

func TestClient_UndecodableBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"answer":`)
	})

	_, err := client.Answer(context.Background(), "q", "s", "id")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "answer", apiErr.Endpoint)
	assert.Zero(t, apiErr.StatusCode)
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	client.settings.Timeout = 50 * time.Millisecond

	_, err := client.Assist(context.Background(), "slow")
	require.Error(t, err)
	assert.True(t, IsAPIError(err))
	assert.True(t, resilience.IsTimeout(err))
}

func TestClient_TransportFailure(t *testing.T) {
	settings := Settings{Endpoint: "http://127.0.0.1:1", ProjectNumber: "1", EngineID: "e", Timeout: time.Second}
	client := NewClient(settings, auth.StaticTokenProvider("t"), zaptest.NewLogger(t))

	_, err := client.Search(context.Background(), "q")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Zero(t, apiErr.StatusCode)
	assert.Error(t, apiErr.Unwrap())
}

func TestClient_CredentialFailure(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	tokens := auth.TokenFunc(func(ctx context.Context) (string, error) {
		return "", auth.ErrCredentials
	})
	client := NewClient(Settings{Endpoint: server.URL}, tokens, zaptest.NewLogger(t))

	_, err := client.Search(context.Background(), "q")
	assert.ErrorIs(t, err, auth.ErrCredentials)
	assert.False(t, IsAPIError(err))
	assert.False(t, called)
}

func TestClient_TokenFetchBoundedByTimeout(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	hanging := auth.TokenFunc(func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	client := NewClient(Settings{Endpoint: server.URL, Timeout: 50 * time.Millisecond}, hanging, zaptest.NewLogger(t))

	start := time.Now()
	_, err := client.Assist(context.Background(), "q")

	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, IsAPIError(err))
	assert.False(t, called)
}
