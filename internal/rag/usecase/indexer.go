package usecase

import (
	"context"
	"fmt"
	"time"

	meetingdomain "github.com/Chedidayeh/meeting-bot/internal/meeting/domain"
	"github.com/Chedidayeh/meeting-bot/pkg/ai"
	"github.com/Chedidayeh/meeting-bot/pkg/chroma"
	"github.com/Chedidayeh/meeting-bot/pkg/metrics"

	"github.com/rs/zerolog"
)

// EmbedBatchSize caps how many chunks go into one embedding request.
const EmbedBatchSize = 5

const untitledMeeting = "Untitled Meeting"

// VectorIndex is the vector store contract.
type VectorIndex interface {
	Upsert(ctx context.Context, entries []chroma.Entry) error
	Query(ctx context.Context, vector []float32, filter chroma.Filter, topK int) ([]chroma.Match, error)
}

type ChunkStore interface {
	UpsertChunks(ctx context.Context, chunks []meetingdomain.TranscriptChunk) error
}

type RAGMarker interface {
	MarkRAGProcessed(ctx context.Context, id string, at time.Time) error
}

// VectorID is the deterministic key of chunk index of a meeting.
func VectorID(meetingID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", meetingID, index)
}

type Indexer struct {
	embedder ai.Embedder
	index    VectorIndex
	chunks   ChunkStore
	meetings RAGMarker
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

func NewIndexer(embedder ai.Embedder, index VectorIndex, chunks ChunkStore, meetings RAGMarker, m *metrics.Metrics, log zerolog.Logger) *Indexer {
	return &Indexer{
		embedder: embedder,
		index:    index,
		chunks:   chunks,
		meetings: meetings,
		metrics:  m,
		log:      log.With().Str("component", "rag_indexer").Logger(),
	}
}

// IndexMeeting chunks and embeds the transcript, then writes the chunk rows
// and the vectors. Keys are deterministic so re-indexing overwrites.
func (ix *Indexer) IndexMeeting(ctx context.Context, meeting *meetingdomain.Meeting, transcript string) (int, error) {
	chunks := ChunkTranscript(transcript, MaxChunkChars)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no transcript content to index")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(texts); start += EmbedBatchSize {
		end := start + EmbedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := ix.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return 0, fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(batch) != end-start {
			return 0, fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end-1, len(batch))
		}
		vectors = append(vectors, batch...)
	}

	title := meeting.Title
	if title == "" {
		title = untitledMeeting
	}

	rows := make([]meetingdomain.TranscriptChunk, len(chunks))
	entries := make([]chroma.Entry, len(chunks))
	for i, c := range chunks {
		id := VectorID(meeting.ID, c.Index)
		rows[i] = meetingdomain.TranscriptChunk{
			MeetingID:   meeting.ID,
			ChunkIndex:  c.Index,
			Content:     c.Content,
			SpeakerName: c.SpeakerName,
			VectorID:    id,
		}
		entries[i] = chroma.Entry{
			ID:        id,
			Embedding: vectors[i],
			Metadata: chroma.VectorMetadata{
				MeetingID:    meeting.ID,
				UserID:       meeting.UserID,
				ChunkIndex:   c.Index,
				Content:      c.Content,
				SpeakerName:  c.SpeakerName,
				MeetingTitle: title,
			},
		}
	}

	if err := ix.chunks.UpsertChunks(ctx, rows); err != nil {
		return 0, fmt.Errorf("save chunks: %w", err)
	}
	if err := ix.index.Upsert(ctx, entries); err != nil {
		return 0, fmt.Errorf("upsert vectors: %w", err)
	}
	if err := ix.meetings.MarkRAGProcessed(ctx, meeting.ID, time.Now()); err != nil {
		return 0, fmt.Errorf("mark indexed: %w", err)
	}

	ix.metrics.IndexedChunksTotal.Add(float64(len(chunks)))
	ix.log.Info().Str("meeting_id", meeting.ID).Int("chunks", len(chunks)).Msg("Transcript indexed")
	return len(chunks), nil
}
