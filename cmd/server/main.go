package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"decision-matrix/backend/internal/ai"
	"decision-matrix/backend/internal/api"
	"decision-matrix/backend/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load configuration: %v", err)
	}
	if cfg.ConfigFile != "" {
		logrus.WithField("path", cfg.ConfigFile).Info("configuration file loaded")
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logrus.Fatalf("create data directory: %v", err)
		}
	}

	analyzer, providerName := buildAnalyzer(cfg)

	server, err := api.NewServer(api.Config{
		DBPath:         cfg.DBPath,
		AllowedOrigins: cfg.AllowedOrigins,
		Analyzer:       analyzer,
		ProviderName:   providerName,
		DisableAI:      cfg.DisableAI,
	})
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	logrus.Infof("starting decision-matrix backend on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}

// buildAnalyzer assembles the provider chain: Gemini primary, OpenAI
// fallback. Either may be absent; with neither configured the server runs
// with analysis endpoints refusing.
func buildAnalyzer(cfg *config.Config) (ai.Analyzer, string) {
	if cfg.DisableAI {
		return nil, ""
	}

	var primary, fallback ai.Analyzer
	providerName := ""

	gemini, err := ai.NewGeminiClient(providerConfig(cfg.Gemini, cfg))
	switch {
	case err == nil:
		primary = gemini
		providerName = "gemini"
	case errors.Is(err, ai.ErrDisabled):
		logrus.Info("gemini provider not configured")
	default:
		logrus.Fatalf("gemini client: %v", err)
	}

	openai, err := ai.NewOpenAIClient(providerConfig(cfg.OpenAI, cfg))
	switch {
	case err == nil:
		fallback = openai
		if providerName == "" {
			providerName = "openai"
		}
	case errors.Is(err, ai.ErrDisabled):
		logrus.Info("openai provider not configured")
	default:
		logrus.Fatalf("openai client: %v", err)
	}

	switch {
	case primary != nil && fallback != nil:
		return ai.WithFallback(primary, fallback), providerName
	case primary != nil:
		return primary, providerName
	case fallback != nil:
		return fallback, providerName
	default:
		return nil, ""
	}
}

func providerConfig(p config.Provider, cfg *config.Config) ai.Config {
	return ai.Config{
		APIKey:      p.APIKey,
		Model:       p.Model,
		BaseURL:     p.BaseURL,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
		Timeout:     cfg.RequestTimeoutDuration,
	}
}
