package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Chedidayeh/meeting-bot/pkg/ai"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type GeminiService struct {
	ApiKey         string
	ChatModel      string
	EmbeddingModel string
	BaseURL        string
	HTTPClient     *http.Client
}

func NewGeminiService(apiKey, chatModel, embeddingModel string) *GeminiService {
	if chatModel == "" {
		chatModel = "gemini-2.5-flash"
	}
	if embeddingModel == "" {
		embeddingModel = "text-embedding-004"
	}
	return &GeminiService{
		ApiKey:         apiKey,
		ChatModel:      chatModel,
		EmbeddingModel: embeddingModel,
		BaseURL:        defaultBaseURL,
		HTTPClient:     &http.Client{Timeout: 60 * time.Second},
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

// Generate implements ai.Generator
func (g *GeminiService) Generate(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
	payload := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     opts.Temperature,
			MaxOutputTokens: opts.MaxOutputTokens,
		},
	}

	var result generateResponse
	if err := g.post(ctx, g.ChatModel+":generateContent", payload, &result); err != nil {
		return "", err
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no text returned")
	}

	var sb strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

type embedRequest struct {
	Model   string  `json:"model"`
	Content content `json:"content"`
}

type embedding struct {
	Values []float32 `json:"values"`
}

// Embed implements ai.Embedder
func (g *GeminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	payload := embedRequest{
		Model:   "models/" + g.EmbeddingModel,
		Content: content{Parts: []part{{Text: text}}},
	}

	var result struct {
		Embedding embedding `json:"embedding"`
	}
	if err := g.post(ctx, g.EmbeddingModel+":embedContent", payload, &result); err != nil {
		return nil, err
	}
	if len(result.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	return result.Embedding.Values, nil
}

// EmbedBatch implements ai.Embedder with a single batchEmbedContents call.
func (g *GeminiService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	requests := make([]embedRequest, 0, len(texts))
	for _, t := range texts {
		requests = append(requests, embedRequest{
			Model:   "models/" + g.EmbeddingModel,
			Content: content{Parts: []part{{Text: t}}},
		})
	}

	var result struct {
		Embeddings []embedding `json:"embeddings"`
	}
	if err := g.post(ctx, g.EmbeddingModel+":batchEmbedContents", map[string]interface{}{"requests": requests}, &result); err != nil {
		return nil, err
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, e := range result.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}

func (g *GeminiService) post(ctx context.Context, method string, payload interface{}, out interface{}) error {
	url := fmt.Sprintf("%s/models/%s?key=%s", g.BaseURL, method, g.ApiKey)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Gemini API error (%d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
