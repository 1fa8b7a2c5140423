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
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/your-org/agentbridge/internal/answer"
	"github.com/your-org/agentbridge/internal/auth"
	"github.com/your-org/agentbridge/internal/chat"
	"github.com/your-org/agentbridge/internal/config"
	"github.com/your-org/agentbridge/internal/discovery"
	"github.com/your-org/agentbridge/internal/health"
	"github.com/your-org/agentbridge/internal/storage"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// newTokenProvider resolves the identity used for Discovery Engine calls
var newTokenProvider = func(ctx context.Context, logger *zap.Logger) (auth.TokenProvider, error) {
	return auth.NewGoogleTokenProvider(ctx, logger)
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "agentbridge",
		Short:        "Google Chat bridge for Discovery Engine search, answers and assistant",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default ./configs/config.yaml)")

	rootCmd.AddCommand(newServeCmd(&configPath), newAskCmd(&configPath))
	return rootCmd
}

// app holds everything a request needs, wired from configuration
type app struct {
	orchestrator *answer.Orchestrator
	renderer     *chat.Renderer
	verifier     *chat.Verifier
	health       *health.Manager
}

func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	tokens, err := newTokenProvider(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve credentials: %w", err)
	}

	client := discovery.NewClient(discovery.Settings{
		Endpoint:      cfg.Discovery.Endpoint,
		APIVersion:    cfg.Discovery.APIVersion,
		ProjectNumber: cfg.Discovery.ProjectNumber,
		Location:      cfg.Discovery.Location,
		Collection:    cfg.Discovery.Collection,
		EngineID:      cfg.Discovery.EngineID,
		LanguageCode:  cfg.Discovery.LanguageCode,
		Timeout:       cfg.Discovery.Timeout,
	}, tokens, logger.Named("discovery"))

	var (
		signer    *storage.Signer
		urlSigner chat.URLSigner
	)
	if cfg.Storage.CredentialsFile != "" {
		signer, err = storage.NewSigner(cfg.Storage.CredentialsFile, logger.Named("storage"))
		if err != nil {
			return nil, fmt.Errorf("failed to load signing key: %w", err)
		}
		urlSigner = signer
	} else {
		logger.Warn("No storage credentials configured, document links are disabled")
	}

	healthManager := health.NewManager(version, logger.Named("health"))
	healthManager.Register(health.DependencyCredentials, health.CredentialsChecker(tokens))
	healthManager.Register(health.DependencyEngine, health.EngineChecker(client.Settings()))
	healthManager.Register(health.DependencySigningKey, health.SigningKeyChecker(signer))

	return &app{
		orchestrator: answer.NewClientOrchestrator(client, logger.Named("answer")),
		renderer:     chat.NewRenderer(urlSigner, cfg.Storage.SignedURLExpiry, logger.Named("chat")),
		verifier:     chat.NewVerifier(cfg.Chat.Audience, logger.Named("chat")),
		health:       healthManager,
	}, nil
}
