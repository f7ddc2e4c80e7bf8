package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	meetingdomain "github.com/Chedidayeh/meeting-bot/internal/meeting/domain"
	userusecase "github.com/Chedidayeh/meeting-bot/internal/user/usecase"
	"github.com/Chedidayeh/meeting-bot/pkg/ai"
	"github.com/Chedidayeh/meeting-bot/pkg/chroma"
)

type fakeEmbedder struct {
	batches [][]string
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text))}, nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, append([]string(nil), texts...))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

type fakeGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, _ ai.GenerateOptions) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeIndex struct {
	mu       sync.Mutex
	entries  map[string]chroma.Entry
	matches  []chroma.Match
	filters  []chroma.Filter
	topKs    []int
	queryErr error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{entries: make(map[string]chroma.Entry)}
}

func (f *fakeIndex) Upsert(_ context.Context, entries []chroma.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range entries {
		f.entries[e.ID] = e
	}
	return nil
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, filter chroma.Filter, topK int) ([]chroma.Match, error) {
	f.filters = append(f.filters, filter)
	f.topKs = append(f.topKs, topK)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.matches, nil
}

type fakeChunkStore struct {
	rows map[string]meetingdomain.TranscriptChunk
}

func (f *fakeChunkStore) UpsertChunks(_ context.Context, chunks []meetingdomain.TranscriptChunk) error {
	if f.rows == nil {
		f.rows = make(map[string]meetingdomain.TranscriptChunk)
	}
	for _, c := range chunks {
		f.rows[c.VectorID] = c
	}
	return nil
}

type fakeMeetings struct {
	byID   map[string]*meetingdomain.Meeting
	marked []string
}

func newFakeMeetings(ms ...*meetingdomain.Meeting) *fakeMeetings {
	f := &fakeMeetings{byID: make(map[string]*meetingdomain.Meeting)}
	for _, m := range ms {
		f.byID[m.ID] = m
	}
	return f
}

func (f *fakeMeetings) FindByID(_ context.Context, id string) (*meetingdomain.Meeting, error) {
	return f.byID[id], nil
}

func (f *fakeMeetings) MarkRAGProcessed(_ context.Context, id string, at time.Time) error {
	f.marked = append(f.marked, id)
	if m, ok := f.byID[id]; ok {
		m.RAGProcessed = true
		m.RAGProcessedAt = &at
	}
	return nil
}

type fakeQuota struct {
	decision userusecase.Decision
	calls    int
}

func (f *fakeQuota) ConsumeChat(_ context.Context, _ string) (userusecase.Decision, error) {
	f.calls++
	return f.decision, nil
}

type fakeHistory struct {
	saved []*meetingdomain.ChatMessage
	limit int
}

func (f *fakeHistory) SaveMessages(_ context.Context, messages ...*meetingdomain.ChatMessage) error {
	f.saved = append(f.saved, messages...)
	return nil
}

func (f *fakeHistory) ListMessages(_ context.Context, userID string, meetingID *string, limit int) ([]*meetingdomain.ChatMessage, error) {
	f.limit = limit
	var out []*meetingdomain.ChatMessage
	for _, m := range f.saved {
		if m.UserID != userID {
			continue
		}
		if (meetingID == nil) != (m.MeetingID == nil) {
			continue
		}
		if meetingID != nil && *meetingID != *m.MeetingID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

var errBoom = errors.New("boom")
