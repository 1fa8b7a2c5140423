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

package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/your-org/agentbridge/internal/answer"
	"github.com/your-org/agentbridge/internal/config"
	"github.com/your-org/agentbridge/internal/logging"
)

func newAskCmd(configPath *string) *cobra.Command {
	var email, query string

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Answer one question and print the chat card JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if query == "" {
				return errors.New("--query is required")
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			// stdout carries the card
			if cfg.Logging.Output == "" || cfg.Logging.Output == "stdout" {
				cfg.Logging.Output = "stderr"
			}
			logger, _, err := logging.New(cfg.Logging)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			app, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}

			ans, err := app.orchestrator.ProduceAnswer(ctx, query, answer.User{Email: email})
			if err != nil {
				return fmt.Errorf("failed to produce answer: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			return enc.Encode(app.renderer.Render(ctx, ans))
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Email of the asking user")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Question to ask")
	return cmd
}
