package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"egl-chat-backend/internal/anthropic"
	"egl-chat-backend/internal/config"
	"egl-chat-backend/internal/ollama"
	"egl-chat-backend/internal/prompt"
	"egl-chat-backend/internal/relay"
	"egl-chat-backend/internal/server"
)

func main() {
	cfg := config.Load()

	logger := newLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	if cfg.AnthropicAPIKey == "" {
		logger.Warn("ANTHROPIC_API_KEY is not set; claude-3-haiku requests will fail until provided")
	}

	persona, err := prompt.Load(cfg.PromptFile)
	if err != nil {
		logger.Fatal("failed to load persona", zap.Error(err))
	}

	local := ollama.NewClient(cfg.OllamaBaseURL,
		ollama.WithTimeout(cfg.OllamaTimeout),
		ollama.WithAPIKey(cfg.OllamaAPIKey),
	)
	hosted := anthropic.NewClient(cfg.AnthropicAPIKey, persona,
		anthropic.WithModel(cfg.AnthropicModel),
		anthropic.WithTimeout(cfg.AnthropicTimeout),
	)
	dispatcher := relay.NewDispatcher(local, hosted, logger)

	s := server.NewServer(cfg, dispatcher,
		server.WithLogger(logger),
		server.WithLocalProbe(local),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Engineer Growth Lab API starting",
		zap.String("addr", cfg.Addr()),
		zap.String("ollama", cfg.OllamaBaseURL),
		zap.String("anthropic_model", cfg.AnthropicModel),
		zap.Strings("origins", cfg.AllowedOrigins))
	if err := s.Start(ctx); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(level string) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewExample()
	}
	return logger
}
