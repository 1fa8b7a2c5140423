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

// Package answer turns a chat question into a normalized Answer by driving
// the Discovery Engine search, answer and assistant endpoints.
package answer

// Placeholder texts shown to the user when no generated answer is available
const (
	MsgSearchError    = "⚠️ 검색 API 호출 중 오류가 발생했습니다."
	MsgNoSession      = "⚠️ 검색 결과에서 세션 정보를 가져올 수 없습니다."
	MsgAnswerError    = "⚠️ 답변 생성 API 호출 중 오류가 발생했습니다."
	MsgAssistantError = "⚠️ Assistant search에서 오류가 발생했습니다."
	MsgNoResults      = "⚠️ 검색 결과가 없습니다. 다른 질문을 해보세요."
	MsgNoAnswer       = "❌ 답변이 없습니다."
)

// Outcome names the branch that produced an Answer
type Outcome string

const (
	OutcomeAnswered        Outcome = "answered"
	OutcomeAnswerMissing   Outcome = "answer_missing"
	OutcomeAssisted        Outcome = "assisted"
	OutcomeNoReplies       Outcome = "no_replies"
	OutcomeSearchFailed    Outcome = "search_failed"
	OutcomeMissingSession  Outcome = "missing_session"
	OutcomeAnswerFailed    Outcome = "answer_failed"
	OutcomeAssistantFailed Outcome = "assistant_failed"
)

// User identifies who asked. It is passed through, never validated.
type User struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// Reference is a cited source. URI may be a gs://bucket/object locator.
type Reference struct {
	Title    string `json:"title,omitempty"`
	URI      string `json:"uri,omitempty"`
	Document string `json:"document,omitempty"`
}

// Answer is what every orchestration branch resolves to. Text is never
// empty and References is never nil.
type Answer struct {
	Text       string      `json:"text"`
	References []Reference `json:"references"`
	Outcome    Outcome     `json:"-"`
}

func placeholder(outcome Outcome, text string) Answer {
	return Answer{Text: text, References: []Reference{}, Outcome: outcome}
}
