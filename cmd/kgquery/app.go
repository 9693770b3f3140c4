package main

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"kgquery/internal/config"
	"kgquery/internal/llm"
	"kgquery/internal/nl2sparql"
	"kgquery/internal/operations"
	"kgquery/internal/visualize"
)

// newOperations wires the operations layer from the loaded config
func newOperations(cfg *config.Config, logger *zap.Logger) *operations.Operations {
	return operations.New(operations.Options{
		Build:      cfg.BuildOptions(),
		Translator: nl2sparql.New(newCompleter(cfg, logger), cfg.LLM.APIKeyEnv, logger),
		Viz:        visualize.Options{Height: cfg.Viz.Height, Width: cfg.Viz.Width},
		Logger:     logger,
	})
}

// newCompleter returns nil when the provider credential is missing; the
// translator then reports which variable to set.
func newCompleter(cfg *config.Config, logger *zap.Logger) llm.Completer {
	key := cfg.APIKey()
	if key == "" {
		logger.Warn("no LLM credential, natural-language translation disabled",
			zap.String("env", cfg.LLM.APIKeyEnv))
		return nil
	}

	switch cfg.LLM.Provider {
	case config.ProviderOpenRouter:
		client := llm.NewClient(key, cfg.LLM.Model)
		logger.Info("OpenRouter client initialized", zap.String("model", client.Model()))
		return client
	default:
		client := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:  key,
			Model:   cfg.LLM.Model,
			BaseURL: cfg.LLM.BaseURL,
			Timeout: cfg.LLMTimeout(),
		})
		logger.Info("OpenAI client initialized", zap.String("model", client.Model()))
		return client
	}
}

func shellLogPath() string {
	return filepath.Join(os.TempDir(), "kgquery.log")
}
