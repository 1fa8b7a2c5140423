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

// AssistRequest is the body of an assistants/cx_assistant:assist call
type AssistRequest struct {
	Query AssistQuery `json:"query"`
}

// AssistQuery carries the free-form text sent to the assistant
type AssistQuery struct {
	Text string `json:"text"`
}

// AssistResponse is the subset of the assist response the bridge reads
type AssistResponse struct {
	Answer *AssistAnswer `json:"answer,omitempty"`
}

// AssistAnswer holds the assistant's replies in order
type AssistAnswer struct {
	Name    string        `json:"name,omitempty"`
	State   string        `json:"state,omitempty"`
	Replies []AssistReply `json:"replies,omitempty"`
}

// AssistReply is one reply of the assistant
type AssistReply struct {
	GroundedContent *GroundedContent `json:"groundedContent,omitempty"`
}

// GroundedContent is reply content attributed to retrieved sources
type GroundedContent struct {
	Content *Content `json:"content,omitempty"`
}

// Content is a piece of assistant output
type Content struct {
	Role string `json:"role,omitempty"`
	Text string `json:"text,omitempty"`
}

// Text returns the grounded text of the reply, or "" when absent
func (r AssistReply) Text() string {
	if r.GroundedContent == nil || r.GroundedContent.Content == nil {
		return ""
	}
	return r.GroundedContent.Content.Text
}

// Replies returns the replies of the response, tolerating a missing answer
func (r *AssistResponse) Replies() []AssistReply {
	if r == nil || r.Answer == nil {
		return nil
	}
	return r.Answer.Replies
}

// Assist asks the assistant. It is used when the default search has no results.
func (c *Client) Assist(ctx context.Context, query string) (*AssistResponse, error) {
	var resp AssistResponse
	if err := c.post(ctx, assistEndpoint, AssistRequest{Query: AssistQuery{Text: query}}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
