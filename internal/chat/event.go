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

// Package chat handles the Google Chat side of the bridge: decoding inbound
// events, verifying their bearer token and rendering answers as cards.
package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/your-org/agentbridge/internal/answer"
)

// ErrMalformedEvent is returned when the body is not a usable chat event
var ErrMalformedEvent = errors.New("malformed chat event")

// Event is an inbound Google Chat interaction event
type Event struct {
	Type    string       `json:"type,omitempty"`
	User    ChatUser     `json:"user"`
	Message EventMessage `json:"message"`
	Space   *Space       `json:"space,omitempty"`
}

// ChatUser is the sender of the message
type ChatUser struct {
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
	Type        string `json:"type,omitempty"`
}

// EventMessage is the message that triggered the event
type EventMessage struct {
	Name         string `json:"name,omitempty"`
	Text         string `json:"text,omitempty"`
	ArgumentText string `json:"argumentText,omitempty"`
}

// Space is the space the message was posted in
type Space struct {
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

// ParseEvent decodes a chat event. The body must be a JSON object carrying
// both "user" and "message".
func ParseEvent(body []byte) (*Event, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedEvent)
	}

	for _, key := range []string{"user", "message"} {
		raw, ok := fields[key]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return nil, fmt.Errorf("%w: missing %s", ErrMalformedEvent, key)
		}
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	return &event, nil
}

// Query returns the message text addressed to the bot, trimmed. It may be empty.
func (e *Event) Query() string {
	return strings.TrimSpace(e.Message.ArgumentText)
}

// Asker returns the sender as an answer.User
func (e *Event) Asker() answer.User {
	return answer.User{Email: e.User.Email, DisplayName: e.User.DisplayName}
}

// SpaceName returns the space resource name, or ""
func (e *Event) SpaceName() string {
	if e.Space == nil {
		return ""
	}
	return e.Space.Name
}
