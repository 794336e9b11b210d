package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tomrodww/ai-guessing-game/internal/app"
	"github.com/tomrodww/ai-guessing-game/internal/config"
	"github.com/tomrodww/ai-guessing-game/internal/ratelimit"
	"github.com/tomrodww/ai-guessing-game/internal/server"
	"github.com/tomrodww/ai-guessing-game/internal/sessiontoken"
	"github.com/tomrodww/ai-guessing-game/internal/util"
	"github.com/tomrodww/ai-guessing-game/pkg/oracle"
	"github.com/tomrodww/ai-guessing-game/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := util.InitLogger(cfg.LogLevel)

	dataStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		fatal("failed to init store", err)
	}

	gameOracle, err := oracle.New(oracle.Config{
		Provider: cfg.OracleProvider,
		APIKey:   oracleAPIKey(cfg),
		Model:    cfg.OracleModel,
		BaseURL:  cfg.OracleBaseURL,
	})
	if err != nil {
		fatal("failed to init oracle", err)
	}

	tokenTTL, err := config.ParseSessionTokenTTL(cfg.SessionTokenTTL)
	if err != nil {
		fatal("failed to parse session token ttl", err)
	}
	tokens, err := sessiontoken.New(cfg.SessionTokenSecret, tokenTTL)
	if err != nil {
		fatal("failed to init session tokens", err)
	}

	var limiter *ratelimit.Limiter
	if cfg.QuestionRateLimit > 0 {
		window, err := config.ParseQuestionRateWindow(cfg.QuestionRateWindow)
		if err != nil {
			fatal("failed to parse question rate window", err)
		}
		if window <= 0 {
			window = time.Minute
		}
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		limiter, err = ratelimit.New(redisClient, "guess:questions", cfg.QuestionRateLimit, window)
		if err != nil {
			fatal("failed to init rate limiter", err)
		}
	}

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		fatal("failed to parse trusted proxies", err)
	}

	appCore, err := app.New(app.Config{
		Store:            dataStore,
		Oracle:           gameOracle,
		MaxQuestionLen:   cfg.MaxQuestionLen,
		MinQuestionWords: cfg.MinQuestionWords,
	})
	if err != nil {
		fatal("failed to init app", err)
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		Tokens:         tokens,
		Limiter:        limiter,
		AdminKeyHash:   cfg.AdminKeyHash,
		TrustedProxies: trusted,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("game server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

// oracleAPIKey keeps the long-standing geminiAPIKey field working while the
// generic oracleAPIKey field covers the other providers.
func oracleAPIKey(cfg config.FileConfig) string {
	switch cfg.OracleProvider {
	case "", "gemini":
		return cfg.GeminiAPIKey
	default:
		return cfg.OracleAPIKey
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
