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
	"fmt"
	"time"

	"github.com/your-org/agentbridge/internal/answer"
	"go.uber.org/zap"
)

const (
	// DefaultLinkExpiry is how long a document button stays usable
	DefaultLinkExpiry = time.Hour

	cardID        = "answerCard"
	cardName      = "Answer Card"
	cardTitle     = "Reference 정보"
	buttonText    = "문서 확인"
	buttonFilled  = "FILLED"
	noTitle       = "No Title"
	noURI         = "no uri"
	noDocumentURI = "No document uri"
)

// URLSigner issues time-limited download links for stored objects
type URLSigner interface {
	SignedURL(ctx context.Context, bucket, object string, expiry time.Duration) (string, error)
}

// Message is the synchronous reply returned to Google Chat
type Message struct {
	Text    string   `json:"text"`
	CardsV2 []CardV2 `json:"cardsV2,omitempty"`
}

// CardV2 wraps a card with its identifier
type CardV2 struct {
	CardID string `json:"cardId"`
	Card   Card   `json:"card"`
}

// Card is a Google Chat card
type Card struct {
	Name     string     `json:"name,omitempty"`
	Header   CardHeader `json:"header"`
	Sections []Section  `json:"sections"`
}

// CardHeader is the card title bar
type CardHeader struct {
	Title string `json:"title"`
}

// Section groups widgets
type Section struct {
	Widgets []Widget `json:"widgets"`
}

// Widget holds exactly one of its fields
type Widget struct {
	Divider       *Divider       `json:"divider,omitempty"`
	TextParagraph *TextParagraph `json:"textParagraph,omitempty"`
	DecoratedText *DecoratedText `json:"decoratedText,omitempty"`
	ButtonList    *ButtonList    `json:"buttonList,omitempty"`
}

// Divider is a horizontal rule; it always encodes as {}
type Divider struct{}

// TextParagraph is a block of formatted text
type TextParagraph struct {
	Text string `json:"text"`
}

// DecoratedText is a single line of text
type DecoratedText struct {
	Text string `json:"text"`
}

// ButtonList is a row of buttons
type ButtonList struct {
	Buttons []Button `json:"buttons"`
}

// Button opens a link when clicked
type Button struct {
	Text    string  `json:"text"`
	Type    string  `json:"type,omitempty"`
	OnClick OnClick `json:"onClick"`
}

// OnClick is the button action
type OnClick struct {
	OpenLink OpenLink `json:"openLink"`
}

// OpenLink targets a URL
type OpenLink struct {
	URL string `json:"url"`
}

// Renderer turns answers into chat messages
type Renderer struct {
	signer URLSigner
	expiry time.Duration
	logger *zap.Logger
}

// NewRenderer creates a renderer. signer may be nil, in which case no
// document buttons are rendered.
func NewRenderer(signer URLSigner, expiry time.Duration, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if expiry <= 0 {
		expiry = DefaultLinkExpiry
	}
	return &Renderer{
		signer: signer,
		expiry: expiry,
		logger: logger,
	}
}

// Render builds the reply for ans. It never fails; a reference whose link
// cannot be produced is rendered without its button.
func (r *Renderer) Render(ctx context.Context, ans answer.Answer) *Message {
	msg := &Message{Text: ans.Text}
	if len(ans.References) == 0 {
		return msg
	}

	widgets := make([]Widget, 0, len(ans.References)*5)
	for i, ref := range ans.References {
		if i > 0 {
			widgets = append(widgets, Widget{Divider: &Divider{}})
		}
		widgets = append(widgets, r.referenceWidgets(ctx, ref)...)
	}

	msg.CardsV2 = []CardV2{
		{
			CardID: cardID,
			Card: Card{
				Name:     cardName,
				Header:   CardHeader{Title: cardTitle},
				Sections: []Section{{Widgets: widgets}},
			},
		},
	}

	return msg
}

func (r *Renderer) referenceWidgets(ctx context.Context, ref answer.Reference) []Widget {
	title := valueOr(ref.Title, noTitle)
	uri := valueOr(ref.URI, noURI)
	document := valueOr(ref.Document, noDocumentURI)

	widgets := []Widget{
		{TextParagraph: &TextParagraph{Text: fmt.Sprintf("<b>📚 데이터 스토어 정보 : %s</b>", title)}},
		{DecoratedText: &DecoratedText{Text: "uri: " + uri}},
		{DecoratedText: &DecoratedText{Text: "document: " + document}},
	}

	if link, ok := r.documentLink(ctx, ref.URI); ok {
		widgets = append(widgets, Widget{ButtonList: &ButtonList{Buttons: []Button{
			{
				Text:    buttonText,
				Type:    buttonFilled,
				OnClick: OnClick{OpenLink: OpenLink{URL: link}},
			},
		}}})
	}

	return widgets
}

func (r *Renderer) documentLink(ctx context.Context, uri string) (string, bool) {
	if uri == "" || r.signer == nil {
		return "", false
	}

	bucket, object, ok := ParseStorageLocator(uri)
	if !ok {
		r.logger.Warn("Reference locator is not a storage object, omitting document button",
			zap.String("uri", uri))
		return "", false
	}

	link, err := r.signer.SignedURL(ctx, bucket, object, r.expiry)
	if err != nil {
		r.logger.Warn("Failed to sign document link, omitting document button",
			zap.String("bucket", bucket),
			zap.String("object", object),
			zap.Error(err))
		return "", false
	}

	return link, true
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
