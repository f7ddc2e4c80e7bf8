package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog"
)

// FallbackService routes generation to the primary provider and falls back
// to the secondary one on connection or quota errors.
//
// Embeddings never fall back: vectors from different models live in
// different spaces and cannot share one index.
type FallbackService struct {
	primary   Provider
	secondary Generator
	log       zerolog.Logger
}

// NewFallbackService creates a new fallback service with both providers
func NewFallbackService(primary Provider, secondary Generator, log zerolog.Logger) *FallbackService {
	return &FallbackService{
		primary:   primary,
		secondary: secondary,
		log:       log.With().Str("component", "ai").Logger(),
	}
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return containsAny(err.Error(),
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"EOF",
	)
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}

	return containsAny(err.Error(),
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource exhausted",
		"RESOURCE_EXHAUSTED",
		"503",
		"overloaded",
	)
}

func containsAny(s string, indicators ...string) bool {
	lower := strings.ToLower(s)
	for _, indicator := range indicators {
		if strings.Contains(lower, strings.ToLower(indicator)) {
			return true
		}
	}
	return false
}

// Generate tries the primary provider, then the secondary one on transient errors.
func (f *FallbackService) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	result, err := f.primary.Generate(ctx, prompt, opts)
	if err == nil {
		return result, nil
	}

	if f.secondary == nil || !(isQuotaError(err) || isConnectionError(err)) {
		return "", err
	}

	f.log.Warn().Err(err).Msg("primary generation failed, falling back")
	result, fbErr := f.secondary.Generate(ctx, prompt, opts)
	if fbErr != nil {
		return "", fmt.Errorf("primary: %v; fallback: %w", err, fbErr)
	}
	return result, nil
}

func (f *FallbackService) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.primary.Embed(ctx, text)
}

func (f *FallbackService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return f.primary.EmbedBatch(ctx, texts)
}
