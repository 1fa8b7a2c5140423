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

// Package health reports whether the bridge is ready to answer chat requests:
// it can authenticate to Discovery Engine, knows which engine to query and,
// optionally, can sign document links.
package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/your-org/agentbridge/internal/auth"
	"github.com/your-org/agentbridge/internal/discovery"
	"github.com/your-org/agentbridge/internal/resilience"
	"github.com/your-org/agentbridge/internal/storage"
	"go.uber.org/zap"
)

const (
	// StatusHealthy means the dependency is usable
	StatusHealthy = "healthy"
	// StatusDegraded means answers are still served, with reduced content
	StatusDegraded = "degraded"
	// StatusUnhealthy means chat requests cannot be answered
	StatusUnhealthy = "unhealthy"

	// DefaultTimeout bounds one full readiness check
	DefaultTimeout = 5 * time.Second
)

// Dependency names used in reports
const (
	DependencyCredentials = "credentials"
	DependencyEngine      = "discovery_engine"
	DependencySigningKey  = "signing_key"
)

// Result is the state of one dependency
type Result struct {
	Status  string        `json:"status"`
	Detail  string        `json:"detail,omitempty"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency_ns"`
}

// Report is the body served on /health
type Report struct {
	Status       string            `json:"status"`
	Version      string            `json:"version"`
	Uptime       string            `json:"uptime"`
	Dependencies map[string]Result `json:"dependencies"`
	CheckedAt    time.Time         `json:"checked_at"`
}

// Checker inspects one dependency
type Checker func(ctx context.Context) Result

type registeredChecker struct {
	name  string
	check Checker
}

// Manager runs the registered checks in registration order
type Manager struct {
	version   string
	startTime time.Time
	checkers  []registeredChecker
	timeout   time.Duration
	logger    *zap.Logger
}

// NewManager creates a manager with no checks
func NewManager(version string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		version:   version,
		startTime: time.Now(),
		timeout:   DefaultTimeout,
		logger:    logger,
	}
}

// Register adds a checker under name
func (m *Manager) Register(name string, checker Checker) {
	m.checkers = append(m.checkers, registeredChecker{name: name, check: checker})
}

// Check runs every checker and folds the results into one status: any
// unhealthy dependency makes the bridge unhealthy, any degraded one degraded.
func (m *Manager) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	report := Report{
		Status:       StatusHealthy,
		Version:      m.version,
		Uptime:       time.Since(m.startTime).Round(time.Second).String(),
		Dependencies: make(map[string]Result, len(m.checkers)),
	}

	for _, p := range m.checkers {
		start := time.Now()
		result := p.check(ctx)
		result.Latency = time.Since(start)
		report.Dependencies[p.name] = result

		switch result.Status {
		case StatusUnhealthy:
			report.Status = StatusUnhealthy
		case StatusDegraded:
			if report.Status == StatusHealthy {
				report.Status = StatusDegraded
			}
		}

		if result.Status != StatusHealthy {
			m.logger.Warn("Dependency not healthy",
				zap.String("dependency", p.name),
				zap.String("status", result.Status),
				zap.String("error", result.Error))
		}
	}

	report.CheckedAt = time.Now()
	return report
}

// Handler serves the report. Only an unhealthy bridge answers 503, so a
// missing signing key does not take the webhook out of rotation.
func (m *Manager) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report := m.Check(c.Request.Context())

		status := http.StatusOK
		if report.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	}
}

// CredentialsChecker checks that an access token for Discovery Engine can be
// obtained. A token request cut short by the check deadline is degraded
// rather than unhealthy.
func CredentialsChecker(tokens auth.TokenProvider) Checker {
	return func(ctx context.Context) Result {
		if tokens == nil {
			return Result{Status: StatusUnhealthy, Error: "no credential provider configured"}
		}

		token, err := tokens.Token(ctx)
		if err == nil && token == "" {
			err = auth.ErrCredentials
		}
		switch {
		case err == nil:
			return Result{Status: StatusHealthy}
		case resilience.IsTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded):
			return Result{Status: StatusDegraded, Error: err.Error()}
		default:
			return Result{Status: StatusUnhealthy, Error: err.Error()}
		}
	}
}

// EngineChecker checks that the engine the bridge queries is fully identified
func EngineChecker(settings discovery.Settings) Checker {
	return func(context.Context) Result {
		if settings.ProjectNumber == "" || settings.EngineID == "" {
			return Result{Status: StatusUnhealthy, Error: "project number and engine id are required"}
		}
		return Result{Status: StatusHealthy, Detail: settings.EnginePath()}
	}
}

// SigningKeyChecker reports whether document links can be signed. Without a
// key, answers are delivered without document buttons.
func SigningKeyChecker(signer *storage.Signer) Checker {
	return func(context.Context) Result {
		if signer == nil {
			return Result{Status: StatusDegraded, Error: "no signing key configured, document links disabled"}
		}
		return Result{Status: StatusHealthy, Detail: signer.ServiceAccount()}
	}
}
