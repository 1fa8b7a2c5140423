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
	"bytes"
	"context"
	"encoding/json"
)

// SearchRequest is the body of a default_search:search call
type SearchRequest struct {
	Query                                 string              `json:"query"`
	PageSize                              int                 `json:"pageSize"`
	Session                               string              `json:"session"`
	SpellCorrectionSpec                   SpellCorrectionSpec `json:"spellCorrectionSpec"`
	LanguageCode                          string              `json:"languageCode"`
	RelevanceScoreSpec                    RelevanceScoreSpec  `json:"relevanceScoreSpec"`
	ContentSearchSpec                     ContentSearchSpec   `json:"contentSearchSpec"`
	NaturalLanguageQueryUnderstandingSpec NaturalLanguageSpec `json:"naturalLanguageQueryUnderstandingSpec"`
}

// SpellCorrectionSpec controls query spell correction
type SpellCorrectionSpec struct {
	Mode string `json:"mode"`
}

// RelevanceScoreSpec controls relevance score reporting
type RelevanceScoreSpec struct {
	ReturnRelevanceScore bool `json:"returnRelevanceScore"`
}

// ContentSearchSpec controls snippet extraction
type ContentSearchSpec struct {
	SnippetSpec SnippetSpec `json:"snippetSpec"`
}

// SnippetSpec controls whether snippets are returned
type SnippetSpec struct {
	ReturnSnippet bool `json:"returnSnippet"`
}

// NaturalLanguageSpec controls filter extraction from natural language
type NaturalLanguageSpec struct {
	FilterExtractionCondition string `json:"filterExtractionCondition"`
}

// SessionInfo binds a search to a later answer call
type SessionInfo struct {
	Name    string `json:"name"`
	QueryID string `json:"queryId"`
}

// SearchResponse is the subset of the search response the bridge reads.
// Results stay raw so that an empty list and a missing field remain distinct.
type SearchResponse struct {
	Results     json.RawMessage `json:"results,omitempty"`
	TotalSize   int             `json:"totalSize,omitempty"`
	SessionInfo SessionInfo     `json:"sessionInfo"`
}

// HasResults reports whether the service returned a results field at all,
// including an empty one.
func (r *SearchResponse) HasResults() bool {
	if r == nil {
		return false
	}
	trimmed := bytes.TrimSpace(r.Results)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// ResultCount returns the number of raw result records, or zero
func (r *SearchResponse) ResultCount() int {
	if !r.HasResults() {
		return 0
	}
	var records []json.RawMessage
	if err := json.Unmarshal(r.Results, &records); err != nil {
		return 0
	}
	return len(records)
}

// Search runs the default search for query
func (c *Client) Search(ctx context.Context, query string) (*SearchResponse, error) {
	payload := SearchRequest{
		Query:                                 query,
		PageSize:                              PageSize,
		Session:                               c.settings.SessionTemplate(),
		SpellCorrectionSpec:                   SpellCorrectionSpec{Mode: "AUTO"},
		LanguageCode:                          c.settings.LanguageCode,
		RelevanceScoreSpec:                    RelevanceScoreSpec{ReturnRelevanceScore: true},
		ContentSearchSpec:                     ContentSearchSpec{SnippetSpec: SnippetSpec{ReturnSnippet: true}},
		NaturalLanguageQueryUnderstandingSpec: NaturalLanguageSpec{FilterExtractionCondition: "ENABLED"},
	}

	var resp SearchResponse
	if err := c.post(ctx, searchEndpoint, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
