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

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/agentbridge/internal/config"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}

	for input, want := range tests {
		assert.Equal(t, want, ParseLevel(input), "level %q", input)
	}
}

func TestNew_FileOutputAndRuntimeLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")

	logger, level, err := New(config.LoggingConfig{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Debug("hidden before level change")
	level.SetLevel(zapcore.DebugLevel)
	logger.Debug("visible after level change")
	_ = logger.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)

	assert.NotContains(t, out, "hidden before level change")
	assert.Contains(t, out, "visible after level change")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "{"), "json format expected")
}

func TestNew_TextFormat(t *testing.T) {
	logger, level, err := New(config.LoggingConfig{Level: "warn", Format: "text"})
	require.NoError(t, err)
	require.NotNil(t, logger)

	assert.Equal(t, zapcore.WarnLevel, level.Level())
}
