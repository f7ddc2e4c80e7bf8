// Package factory builds the configured ai.Provider.
package factory

import (
	"fmt"

	"github.com/Chedidayeh/meeting-bot/pkg/ai"
	"github.com/Chedidayeh/meeting-bot/pkg/gemini"

	"github.com/rs/zerolog"
)

// Config holds AI provider configuration
type Config struct {
	Provider ai.ProviderType

	GeminiAPIKey         string
	GeminiChatModel      string
	GeminiEmbeddingModel string

	OllamaBaseURL        string
	OllamaModel          string
	OllamaEmbeddingModel string
}

// NewProvider switches AI provider by config.Provider. In auto mode Gemini is
// primary when a key is present, with Ollama as the generation fallback.
func NewProvider(cfg Config, log zerolog.Logger) (ai.Provider, error) {
	ollama := ai.NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.OllamaEmbeddingModel)

	switch cfg.Provider {
	case ai.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return gemini.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiChatModel, cfg.GeminiEmbeddingModel), nil

	case ai.ProviderOllama:
		return ollama, nil

	default:
		if cfg.GeminiAPIKey != "" {
			primary := gemini.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiChatModel, cfg.GeminiEmbeddingModel)
			return ai.NewFallbackService(primary, ollama, log), nil
		}
		return ollama, nil
	}
}
