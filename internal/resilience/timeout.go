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

package resilience

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTimeout is applied to a single upstream call when none is configured
	DefaultTimeout = 10 * time.Second
	// MaxTimeout caps any per-call timeout
	MaxTimeout = 60 * time.Second
)

// TimeoutFunc is a function that can be executed with a timeout
type TimeoutFunc func(ctx context.Context) error

// WithTimeout runs fn synchronously under a derived deadline. When the
// deadline expires the returned error is a TimeoutError wrapping fn's error.
func WithTimeout(ctx context.Context, timeout time.Duration, logger *zap.Logger, fn TimeoutFunc) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch {
	case timeout <= 0:
		timeout = DefaultTimeout
	case timeout > MaxTimeout:
		logger.Warn("Timeout capped at maximum",
			zap.Duration("requested_timeout", timeout),
			zap.Duration("max_timeout", MaxTimeout))
		timeout = MaxTimeout
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(timeoutCtx)
	if err == nil {
		return nil
	}

	if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		logger.Warn("Operation timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err))
		return NewTimeoutError("Operation timed out", err)
	}

	return err
}
