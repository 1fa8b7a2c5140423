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

// Package server exposes the chat webhook, health and metrics over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/your-org/agentbridge/internal/answer"
	"github.com/your-org/agentbridge/internal/chat"
	"github.com/your-org/agentbridge/internal/config"
	"github.com/your-org/agentbridge/internal/health"
	"github.com/your-org/agentbridge/internal/resilience"
	"go.uber.org/zap"
)

const (
	// MsgInvalidRequest is the error text for an unusable chat event
	MsgInvalidRequest = "유효하지 않은 요청입니다."
	// MsgUnauthorized is the error text for a request that failed verification
	MsgUnauthorized = "인증되지 않은 요청입니다."
	// MsgAnswerFailed is the error text when no answer could be produced at all
	MsgAnswerFailed = "답변을 생성하는 중 오류가 발생했습니다."
	// MsgNotFound is the error text for an unknown route
	MsgNotFound = "요청한 경로를 찾을 수 없습니다."

	maxEventBytes = 1 << 20
)

// Answerer produces an answer for a question
type Answerer interface {
	ProduceAnswer(ctx context.Context, query string, user answer.User) (answer.Answer, error)
}

// Renderer formats an answer as a chat message
type Renderer interface {
	Render(ctx context.Context, ans answer.Answer) *chat.Message
}

// Verifier authenticates an inbound chat request
type Verifier interface {
	Verify(ctx context.Context, req *http.Request) error
}

// Server handles Google Chat events
type Server struct {
	answerer     Answerer
	renderer     Renderer
	verifier     Verifier
	health       *health.Manager
	errorHandler *resilience.ErrorHandler
	logger       *zap.Logger
}

// New creates a server. verifier and healthManager may be nil.
func New(answerer Answerer, renderer Renderer, verifier Verifier, healthManager *health.Manager, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if healthManager == nil {
		healthManager = health.NewManager("dev", logger)
	}
	return &Server{
		answerer:     answerer,
		renderer:     renderer,
		verifier:     verifier,
		health:       healthManager,
		errorHandler: resilience.NewErrorHandler(logger),
		logger:       logger,
	}
}

// Router builds the gin engine with all routes and middleware
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), AccessLog(s.logger), Recovery(s.logger, s.errorHandler))

	router.POST("/chat", s.handleChat)
	router.GET("/health", s.health.Handler())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.NoRoute(func(c *gin.Context) {
		s.fail(c, resilience.NewNotFoundError(MsgNotFound, fmt.Errorf("no route for %s %s", c.Request.Method, c.Request.URL.Path)))
	})

	return router
}

// Run serves on the configured port until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Starting chat bridge", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err, ok := <-errChan:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	s.logger.Info("Shutting down chat bridge", zap.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// handleChat answers one chat event. Failures while searching or generating
// an answer are rendered as apology text with status 200, so the chat user
// always sees a reply. During the assistant fallback only upstream API and
// transport errors get text; a credential failure there is reported as 500
// with MsgAnswerFailed.
func (s *Server) handleChat(c *gin.Context) {
	ctx := c.Request.Context()
	requestID := RequestIDFrom(c)
	logger := s.logger.With(zap.String("request_id", requestID))

	if s.verifier != nil {
		if err := s.verifier.Verify(ctx, c.Request); err != nil {
			s.fail(c, resilience.NewUnauthorizedError(MsgUnauthorized, err))
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBytes))
	if err != nil {
		s.fail(c, resilience.NewBadRequestError(MsgInvalidRequest, err))
		return
	}

	event, err := chat.ParseEvent(body)
	if err != nil {
		s.fail(c, resilience.NewBadRequestError(MsgInvalidRequest, err))
		return
	}

	query := event.Query()
	user := event.Asker()
	logger.Info("Chat event received",
		zap.String("user_email", user.Email),
		zap.String("space", event.SpaceName()),
		zap.String("message", event.Message.Name),
		zap.String("query", query))

	ans, err := s.answerer.ProduceAnswer(ctx, query, user)
	if err != nil {
		s.fail(c, resilience.NewInternalError(MsgAnswerFailed, err))
		return
	}

	c.PureJSON(http.StatusOK, s.renderer.Render(ctx, ans))
}

func (s *Server) fail(c *gin.Context, err *resilience.ServiceError) {
	fields := []zap.Field{
		zap.String("request_id", RequestIDFrom(c)),
		zap.String("error_code", string(err.Code)),
		zap.Int("status", err.StatusCode),
	}
	if err.Internal != nil {
		fields = append(fields, zap.NamedError("cause", err.Internal))
	}
	if err.StatusCode >= http.StatusInternalServerError {
		s.logger.Error("Chat request failed", fields...)
	} else {
		s.logger.Warn("Chat request rejected", fields...)
	}

	_ = c.Error(err)
	s.errorHandler.WriteErrorResponse(c.Writer, err, RequestIDFrom(c))
	c.Abort()
}
