package ai

import "context"

// GenerateOptions tunes a single completion call.
type GenerateOptions struct {
	Temperature     float64
	MaxOutputTokens int
}

// Generator turns a prompt into text. It is used both for structured
// summarization and for free-text question answering.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// Embedder turns text into fixed-length vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Provider is implemented by every AI backend (Gemini, Ollama, ...).
type Provider interface {
	Generator
	Embedder
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)
