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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/your-org/agentbridge/internal/config"
	"github.com/your-org/agentbridge/internal/logging"
	"github.com/your-org/agentbridge/internal/server"
	"go.uber.org/zap"
)

func newServeCmd(configPath *string) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Google Chat webhook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			logger, level, err := logging.New(cfg.Logging)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			logger.Info("Configuration loaded",
				zap.String("environment", cfg.Environment),
				zap.String("overlay_file", cfg.OverlayFile),
				zap.String("env_file", cfg.EnvFile),
				zap.Any("config", cfg.MaskSensitiveValues()))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := buildApp(ctx, cfg, logger)
			if err != nil {
				logger.Error("Failed to initialize chat bridge", zap.Error(err))
				return err
			}

			if err := config.WatchConfig(*configPath, logger, func(updated *config.Config) {
				level.SetLevel(logging.ParseLevel(updated.Logging.Level))
				logger.Info("Log level updated", zap.String("level", updated.Logging.Level))
			}); err != nil {
				logger.Info("Config hot reload disabled", zap.Error(err))
			}

			srv := server.New(app.orchestrator, app.renderer, app.verifier, app.health, logger.Named("server"))
			if err := srv.Run(ctx, cfg.Server); err != nil {
				logger.Error("Chat bridge stopped with error", zap.Error(err))
				return err
			}

			logger.Info("Chat bridge stopped")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on (overrides server.port)")
	return cmd
}
