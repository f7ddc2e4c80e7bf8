package chroma

import (
	"context"
	"fmt"

	"github.com/Chedidayeh/meeting-bot/pkg/config"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/amikos-tech/chroma-go/pkg/embeddings/gemini"
	"github.com/rs/zerolog"
)

// Metadata keys stored with every transcript vector.
const (
	KeyMeetingID    = "meetingId"
	KeyUserID       = "userId"
	KeyChunkIndex   = "chunkIndex"
	KeyContent      = "content"
	KeySpeakerName  = "speakerName"
	KeyMeetingTitle = "meetingTitle"
)

// VectorMetadata is the metadata attached to a transcript chunk vector.
type VectorMetadata struct {
	MeetingID    string
	UserID       string
	ChunkIndex   int
	Content      string
	SpeakerName  string
	MeetingTitle string
}

// Entry is one vector to upsert.
type Entry struct {
	ID        string
	Embedding []float32
	Metadata  VectorMetadata
}

// Filter restricts a query. An empty MeetingID searches all of the user's meetings.
type Filter struct {
	UserID    string
	MeetingID string
}

// Match is one ranked query result. Score is a similarity, higher is better.
type Match struct {
	ID       string
	Score    float64
	Metadata VectorMetadata
}

type ChromaClient struct {
	client     chroma.Client
	collection chroma.Collection
	log        zerolog.Logger
}

// TextEmbedder is the service's own embedding backend.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// embedderFunction exposes a TextEmbedder as a chroma embedding function.
type embedderFunction struct {
	embedder TextEmbedder
}

func (f embedderFunction) EmbedDocuments(ctx context.Context, texts []string) ([]embeddings.Embedding, error) {
	vectors, err := f.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([]embeddings.Embedding, len(vectors))
	for i, v := range vectors {
		out[i] = embeddings.NewEmbeddingFromFloat32(v)
	}
	return out, nil
}

func (f embedderFunction) EmbedQuery(ctx context.Context, text string) (embeddings.Embedding, error) {
	v, err := f.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbeddingFromFloat32(v), nil
}

// embeddingFunction picks the collection's embedding function. It must embed
// the same way as the vectors we write, so Gemini is used only when Gemini is
// the configured embedding backend; otherwise the service's embedder is used.
func embeddingFunction(cfg *config.Config, embedder TextEmbedder) (embeddings.EmbeddingFunction, error) {
	if cfg.GeminiApiKey != "" && cfg.AIProvider != "ollama" {
		model := cfg.GeminiEmbeddingModel
		if model == "" {
			model = gemini.DefaultEmbeddingModel
		}
		ef, err := gemini.NewGeminiEmbeddingFunction(
			gemini.WithAPIKey(cfg.GeminiApiKey),
			gemini.WithDefaultModel(embeddings.EmbeddingModel(model)),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini embedding function: %w", err)
		}
		return ef, nil
	}
	if embedder == nil {
		return nil, fmt.Errorf("an embedder is required when Gemini embeddings are not configured")
	}
	return embedderFunction{embedder: embedder}, nil
}

func NewChromaClient(ctx context.Context, cfg *config.Config, embedder TextEmbedder, log zerolog.Logger) (*ChromaClient, error) {
	if cfg.ChromaURL == "" && cfg.ChromaAPIKey == "" {
		return nil, fmt.Errorf("CHROMA_URL or CHROMA_API_KEY is required")
	}

	embedFunc, err := embeddingFunction(cfg, embedder)
	if err != nil {
		return nil, err
	}

	var client chroma.Client
	switch {
	case cfg.ChromaURL != "":
		client, err = chroma.NewHTTPClient(chroma.WithBaseURL(cfg.ChromaURL))
	case cfg.ChromaDatabase != "" && cfg.ChromaTenant != "":
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(cfg.ChromaAPIKey),
			chroma.WithDatabaseAndTenant(cfg.ChromaDatabase, cfg.ChromaTenant),
		)
	case cfg.ChromaTenant != "":
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(cfg.ChromaAPIKey),
			chroma.WithTenant(cfg.ChromaTenant),
		)
	default:
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(cfg.ChromaAPIKey),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Chroma client: %w", err)
	}

	collection, err := client.GetOrCreateCollection(
		ctx,
		cfg.ChromaCollection,
		chroma.WithEmbeddingFunctionCreate(embedFunc),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	log.Info().Str("collection", cfg.ChromaCollection).Msg("chroma collection ready")

	return &ChromaClient{
		client:     client,
		collection: collection,
		log:        log,
	}, nil
}

// Upsert writes entries keyed by ID, overwriting existing vectors.
func (c *ChromaClient) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	ids := make([]chroma.DocumentID, 0, len(entries))
	vectors := make([]embeddings.Embedding, 0, len(entries))
	metadatas := make([]chroma.DocumentMetadata, 0, len(entries))
	texts := make([]string, 0, len(entries))

	for _, e := range entries {
		metadata, err := chroma.NewDocumentMetadataFromMap(map[string]interface{}{
			KeyMeetingID:    e.Metadata.MeetingID,
			KeyUserID:       e.Metadata.UserID,
			KeyChunkIndex:   e.Metadata.ChunkIndex,
			KeyContent:      e.Metadata.Content,
			KeySpeakerName:  e.Metadata.SpeakerName,
			KeyMeetingTitle: e.Metadata.MeetingTitle,
		})
		if err != nil {
			return fmt.Errorf("failed to create metadata for %s: %w", e.ID, err)
		}

		ids = append(ids, chroma.DocumentID(e.ID))
		vectors = append(vectors, embeddings.NewEmbeddingFromFloat32(e.Embedding))
		metadatas = append(metadatas, metadata)
		texts = append(texts, e.Metadata.Content)
	}

	err := c.collection.Upsert(
		ctx,
		chroma.WithIDs(ids...),
		chroma.WithEmbeddings(vectors...),
		chroma.WithMetadatas(metadatas...),
		chroma.WithTexts(texts...),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert transcript vectors: %w", err)
	}
	return nil
}

// Query returns up to topK matches for vector restricted by filter.
func (c *ChromaClient) Query(ctx context.Context, vector []float32, filter Filter, topK int) ([]Match, error) {
	where := chroma.EqString(KeyUserID, filter.UserID)
	if filter.MeetingID != "" {
		where = chroma.And(
			chroma.EqString(KeyUserID, filter.UserID),
			chroma.EqString(KeyMeetingID, filter.MeetingID),
		)
	}

	results, err := c.collection.Query(
		ctx,
		chroma.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(vector)),
		chroma.WithNResults(topK),
		chroma.WithWhereQuery(where),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	if results == nil || results.CountGroups() == 0 {
		return []Match{}, nil
	}

	idGroups := results.GetIDGroups()
	if len(idGroups) == 0 || len(idGroups[0]) == 0 {
		return []Match{}, nil
	}
	distanceGroups := results.GetDistancesGroups()
	metadataGroups := results.GetMetadatasGroups()

	matches := make([]Match, 0, len(idGroups[0]))
	for i, id := range idGroups[0] {
		m := Match{ID: string(id)}
		if len(distanceGroups) > 0 && i < len(distanceGroups[0]) {
			m.Score = similarity(float64(distanceGroups[0][i]))
		}
		if len(metadataGroups) > 0 && i < len(metadataGroups[0]) && metadataGroups[0][i] != nil {
			m.Metadata = decodeMetadata(metadataGroups[0][i])
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// similarity converts Chroma's squared L2 distance between unit vectors
// into cosine similarity.
func similarity(distance float64) float64 {
	s := 1 - distance/2
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func decodeMetadata(md chroma.DocumentMetadata) VectorMetadata {
	var out VectorMetadata
	out.MeetingID, _ = md.GetString(KeyMeetingID)
	out.UserID, _ = md.GetString(KeyUserID)
	out.Content, _ = md.GetString(KeyContent)
	out.SpeakerName, _ = md.GetString(KeySpeakerName)
	out.MeetingTitle, _ = md.GetString(KeyMeetingTitle)
	if idx, ok := md.GetInt(KeyChunkIndex); ok {
		out.ChunkIndex = int(idx)
	}
	return out
}
