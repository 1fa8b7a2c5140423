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

import "context"

// AnswerRequest is the body of a default_search:answer call
type AnswerRequest struct {
	Query                AnswerQuery          `json:"query"`
	Session              string               `json:"session"`
	RelatedQuestionsSpec RelatedQuestionsSpec `json:"relatedQuestionsSpec"`
	AnswerGenerationSpec AnswerGenerationSpec `json:"answerGenerationSpec"`
}

// AnswerQuery ties the question to the search that preceded it
type AnswerQuery struct {
	Text    string `json:"text"`
	QueryID string `json:"queryId"`
}

// RelatedQuestionsSpec toggles related question generation
type RelatedQuestionsSpec struct {
	Enable bool `json:"enable"`
}

// AnswerGenerationSpec controls answer generation
type AnswerGenerationSpec struct {
	IgnoreAdversarialQuery      bool     `json:"ignoreAdversarialQuery"`
	IgnoreNonAnswerSeekingQuery bool     `json:"ignoreNonAnswerSeekingQuery"`
	IgnoreLowRelevantContent    bool     `json:"ignoreLowRelevantContent"`
	MultimodalSpec              struct{} `json:"multimodalSpec"`
	IncludeCitations            bool     `json:"includeCitations"`
}

// AnswerResponse is the subset of the answer response the bridge reads
type AnswerResponse struct {
	Answer *GeneratedAnswer `json:"answer,omitempty"`
}

// GeneratedAnswer holds the generated text and its citations
type GeneratedAnswer struct {
	State      string            `json:"state,omitempty"`
	AnswerText string            `json:"answerText"`
	References []AnswerReference `json:"references,omitempty"`
}

// AnswerReference is one cited source. Depending on the data store the
// document details arrive under chunkInfo or unstructuredDocumentInfo.
type AnswerReference struct {
	ChunkInfo                *ChunkInfo    `json:"chunkInfo,omitempty"`
	UnstructuredDocumentInfo *DocumentInfo `json:"unstructuredDocumentInfo,omitempty"`
}

// ChunkInfo describes a cited chunk
type ChunkInfo struct {
	Chunk            string        `json:"chunk,omitempty"`
	Content          string        `json:"content,omitempty"`
	DocumentMetadata *DocumentInfo `json:"documentMetadata,omitempty"`
}

// DocumentInfo identifies a cited document
type DocumentInfo struct {
	Document string `json:"document,omitempty"`
	URI      string `json:"uri,omitempty"`
	Title    string `json:"title,omitempty"`
}

// DocumentInfo returns the document details of the reference, preferring
// chunk metadata.
func (r AnswerReference) DocumentInfo() DocumentInfo {
	if r.ChunkInfo != nil && r.ChunkInfo.DocumentMetadata != nil {
		return *r.ChunkInfo.DocumentMetadata
	}
	if r.UnstructuredDocumentInfo != nil {
		return *r.UnstructuredDocumentInfo
	}
	return DocumentInfo{}
}

// Answer generates a grounded answer for a search identified by session and queryID
func (c *Client) Answer(ctx context.Context, query, session, queryID string) (*AnswerResponse, error) {
	payload := AnswerRequest{
		Query:                AnswerQuery{Text: query, QueryID: queryID},
		Session:              session,
		RelatedQuestionsSpec: RelatedQuestionsSpec{Enable: false},
		AnswerGenerationSpec: AnswerGenerationSpec{
			IgnoreAdversarialQuery:      false,
			IgnoreNonAnswerSeekingQuery: false,
			IgnoreLowRelevantContent:    false,
			IncludeCitations:            true,
		},
	}

	var resp AnswerResponse
	if err := c.post(ctx, answerEndpoint, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
