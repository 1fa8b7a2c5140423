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

package answer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/your-org/agentbridge/internal/discovery"
	"github.com/your-org/agentbridge/internal/metrics"
	"go.uber.org/zap"
)

// Orchestration states, used as the "state" log field
const (
	StateStart     = "start"
	StateAnswering = "answering"
	StateFallback  = "fallback"
	StateFailed    = "failed"
	StateSuccess   = "success"
)

// Searcher runs the default search
type Searcher interface {
	Search(ctx context.Context, query string) (*discovery.SearchResponse, error)
}

// Answerer generates an answer bound to a previous search
type Answerer interface {
	Answer(ctx context.Context, query, session, queryID string) (*discovery.AnswerResponse, error)
}

// Assistant answers free-form when search has nothing
type Assistant interface {
	Assist(ctx context.Context, query string) (*discovery.AssistResponse, error)
}

// Orchestrator chooses between answer generation, the assistant fallback and
// a placeholder. It holds no per-request state.
type Orchestrator struct {
	searcher  Searcher
	answerer  Answerer
	assistant Assistant
	logger    *zap.Logger
}

// NewOrchestrator creates an orchestrator over the three upstream ports
func NewOrchestrator(searcher Searcher, answerer Answerer, assistant Assistant, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		searcher:  searcher,
		answerer:  answerer,
		assistant: assistant,
		logger:    logger,
	}
}

// NewClientOrchestrator wires all three ports to one Discovery Engine client
func NewClientOrchestrator(client *discovery.Client, logger *zap.Logger) *Orchestrator {
	return NewOrchestrator(client, client, client, logger)
}

// ProduceAnswer resolves query into an Answer. Upstream failures become
// placeholder answers; the error is non-nil only for failures that are not
// upstream API errors during the assistant fallback.
func (o *Orchestrator) ProduceAnswer(ctx context.Context, query string, user User) (Answer, error) {
	start := time.Now()
	logger := o.logger.With(zap.String("user_email", user.Email), zap.String("query", query))

	logger.Info("Starting answer orchestration", zap.String("state", StateStart))

	ans, err := o.resolve(ctx, query, user, logger)
	if err != nil {
		metrics.AnswerOutcomes.WithLabelValues("error").Inc()
		logger.Error("Answer orchestration aborted", zap.Error(err))
		return Answer{}, err
	}

	metrics.AnswerOutcomes.WithLabelValues(string(ans.Outcome)).Inc()
	logger.Info("Answer orchestration completed",
		zap.String("outcome", string(ans.Outcome)),
		zap.Int("references", len(ans.References)),
		zap.Duration("duration", time.Since(start)))

	return ans, nil
}

func (o *Orchestrator) resolve(ctx context.Context, query string, user User, logger *zap.Logger) (Answer, error) {
	searchResp, err := o.searcher.Search(ctx, query)
	if err != nil {
		return o.fail(logger, OutcomeSearchFailed, MsgSearchError, err), nil
	}

	if searchResp.HasResults() {
		logger.Info("Search returned results",
			zap.String("state", StateAnswering),
			zap.Int("result_count", searchResp.ResultCount()))
		return o.answering(ctx, query, searchResp.SessionInfo, logger), nil
	}

	logger.Info("Search returned no results field, falling back to assistant",
		zap.String("state", StateFallback))
	return o.fallback(ctx, query, user, logger)
}

func (o *Orchestrator) answering(ctx context.Context, query string, info discovery.SessionInfo, logger *zap.Logger) Answer {
	if info.Name == "" || info.QueryID == "" {
		return o.fail(logger, OutcomeMissingSession, MsgNoSession, nil)
	}

	logger = logger.With(zap.String("session", info.Name), zap.String("query_id", info.QueryID))

	resp, err := o.answerer.Answer(ctx, query, info.Name, info.QueryID)
	if err != nil {
		return o.fail(logger, OutcomeAnswerFailed, MsgAnswerError, err)
	}

	if resp == nil || resp.Answer == nil {
		logger.Info("Answer response carried no answer", zap.String("state", StateSuccess))
		return placeholder(OutcomeAnswerMissing, MsgNoResults)
	}

	ans := fromGenerated(resp.Answer)
	logger.Info("Generated answer received",
		zap.String("state", StateSuccess),
		zap.String("answer_state", resp.Answer.State))
	return ans
}

func (o *Orchestrator) fallback(ctx context.Context, query string, user User, logger *zap.Logger) (Answer, error) {
	resp, err := o.assistant.Assist(ctx, FallbackQuery(user, query))
	if err != nil {
		if discovery.IsAPIError(err) {
			return o.fail(logger, OutcomeAssistantFailed, MsgAssistantError, err), nil
		}
		return Answer{}, fmt.Errorf("assistant fallback: %w", err)
	}

	replies := resp.Replies()
	if len(replies) == 0 {
		logger.Info("Assistant returned no replies", zap.String("state", StateSuccess))
		return placeholder(OutcomeNoReplies, MsgNoResults), nil
	}

	var b strings.Builder
	for _, reply := range replies {
		b.WriteString(reply.Text())
		b.WriteByte(' ')
	}

	logger.Info("Assistant replies received",
		zap.String("state", StateSuccess),
		zap.Int("replies", len(replies)))
	return Answer{Text: b.String(), References: []Reference{}, Outcome: OutcomeAssisted}, nil
}

func (o *Orchestrator) fail(logger *zap.Logger, outcome Outcome, text string, cause error) Answer {
	fields := []zap.Field{
		zap.String("state", StateFailed),
		zap.String("outcome", string(outcome)),
	}

	var apiErr *discovery.APIError
	if errors.As(cause, &apiErr) {
		fields = append(fields,
			zap.String("endpoint", apiErr.Endpoint),
			zap.Int("status_code", apiErr.StatusCode))
	}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}

	logger.Warn("Answer orchestration degraded to placeholder", fields...)
	return placeholder(outcome, text)
}

// FallbackQuery encodes the asking user and the question into the single
// string sent to the assistant.
func FallbackQuery(user User, query string) string {
	raw, err := json.Marshal(struct {
		UserID string `json:"user_id"`
		Query  string `json:"query"`
	}{UserID: user.Email, Query: query})
	if err != nil {
		return fmt.Sprintf("user_id : %s / query : %s", user.Email, query)
	}
	return string(raw)
}

func fromGenerated(g *discovery.GeneratedAnswer) Answer {
	text := g.AnswerText
	if strings.TrimSpace(text) == "" {
		text = MsgNoAnswer
	}

	refs := make([]Reference, 0, len(g.References))
	for _, ref := range g.References {
		doc := ref.DocumentInfo()
		refs = append(refs, Reference{
			Title:    doc.Title,
			URI:      doc.URI,
			Document: doc.Document,
		})
	}

	return Answer{Text: text, References: refs, Outcome: OutcomeAnswered}
}
