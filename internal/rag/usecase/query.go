package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	meetingdomain "github.com/Chedidayeh/meeting-bot/internal/meeting/domain"
	"github.com/Chedidayeh/meeting-bot/pkg/ai"
	"github.com/Chedidayeh/meeting-bot/pkg/apperrors"
	"github.com/Chedidayeh/meeting-bot/pkg/chroma"
	"github.com/Chedidayeh/meeting-bot/pkg/metrics"

	"github.com/rs/zerolog"
)

const (
	MeetingTopK = 5
	AllTopK     = 8

	noAnswer = "Sorry, I could not generate a response."
)

var chatOptions = ai.GenerateOptions{Temperature: 0.7, MaxOutputTokens: 500}

type Source struct {
	MeetingID    string  `json:"meetingId"`
	MeetingTitle string  `json:"meetingTitle,omitempty"`
	Content      string  `json:"content"`
	SpeakerName  string  `json:"speakerName"`
	Confidence   float64 `json:"confidence"`
}

type Answer struct {
	Answer       string   `json:"answer"`
	MeetingCount int      `json:"meetingCount"`
	Sources      []Source `json:"sources"`
}

type MeetingFinder interface {
	FindByID(ctx context.Context, id string) (*meetingdomain.Meeting, error)
}

type QueryEngine struct {
	embedder  ai.Embedder
	generator ai.Generator
	index     VectorIndex
	meetings  MeetingFinder
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

func NewQueryEngine(embedder ai.Embedder, generator ai.Generator, index VectorIndex, meetings MeetingFinder, m *metrics.Metrics, log zerolog.Logger) *QueryEngine {
	return &QueryEngine{
		embedder:  embedder,
		generator: generator,
		index:     index,
		meetings:  meetings,
		metrics:   m,
		log:       log.With().Str("component", "rag_query").Logger(),
	}
}

// AskMeeting answers question from the content of one of the user's meetings.
func (q *QueryEngine) AskMeeting(ctx context.Context, userID, meetingID, question string) (*Answer, error) {
	meeting, err := q.meetings.FindByID(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("find meeting: %w", err)
	}
	if meeting == nil || meeting.UserID != userID {
		return nil, fmt.Errorf("meeting %s: %w", meetingID, apperrors.ErrNotFound)
	}

	matches, err := q.search(ctx, question, chroma.Filter{UserID: userID, MeetingID: meetingID}, MeetingTopK)
	if err != nil {
		q.metrics.RAGQueriesTotal.WithLabelValues("meeting", "error").Inc()
		return nil, err
	}

	prompt := meetingPrompt(meeting, matches)
	answer, err := q.answer(ctx, prompt, question)
	if err != nil {
		q.metrics.RAGQueriesTotal.WithLabelValues("meeting", "error").Inc()
		return nil, err
	}

	q.metrics.RAGQueriesTotal.WithLabelValues("meeting", "ok").Inc()
	out := &Answer{Answer: answer, MeetingCount: 1, Sources: toSources(matches)}
	if len(matches) == 0 {
		out.MeetingCount = 0
	}
	return out, nil
}

// AskAll answers question from all of the user's meetings. Matches are
// reduced to the best one per meeting so the answer cites each meeting once.
func (q *QueryEngine) AskAll(ctx context.Context, userID, question string) (*Answer, error) {
	matches, err := q.search(ctx, question, chroma.Filter{UserID: userID}, AllTopK)
	if err != nil {
		q.metrics.RAGQueriesTotal.WithLabelValues("all", "error").Inc()
		return nil, err
	}

	best := DedupByMeeting(matches)
	q.log.Debug().Int("chunks", len(matches)).Int("meetings", len(best)).Msg("Retrieved context")

	answer, err := q.answer(ctx, allMeetingsPrompt(best), question)
	if err != nil {
		q.metrics.RAGQueriesTotal.WithLabelValues("all", "error").Inc()
		return nil, err
	}

	q.metrics.RAGQueriesTotal.WithLabelValues("all", "ok").Inc()
	return &Answer{Answer: answer, MeetingCount: len(best), Sources: toSources(best)}, nil
}

func (q *QueryEngine) search(ctx context.Context, question string, filter chroma.Filter, topK int) ([]chroma.Match, error) {
	vector, err := q.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	matches, err := q.index.Query(ctx, vector, filter, topK)
	if err != nil {
		return nil, fmt.Errorf("search vectors: %w", err)
	}
	return matches, nil
}

func (q *QueryEngine) answer(ctx context.Context, systemPrompt, question string) (string, error) {
	text, err := q.generator.Generate(ctx, systemPrompt+"\n\nUser question: "+question, chatOptions)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return noAnswer, nil
	}
	return text, nil
}

// DedupByMeeting keeps the highest-scoring match of every meeting, ordered
// by score. Matches without a meeting id are dropped.
func DedupByMeeting(matches []chroma.Match) []chroma.Match {
	best := make(map[string]chroma.Match)
	for _, m := range matches {
		id := m.Metadata.MeetingID
		if id == "" {
			continue
		}
		if current, ok := best[id]; !ok || m.Score > current.Score {
			best[id] = m
		}
	}

	out := make([]chroma.Match, 0, len(best))
	for _, m := range best {
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].Metadata.MeetingID < out[j].Metadata.MeetingID
		}
		return out[i].Score > out[j].Score
	})
	return out
}

func meetingPrompt(meeting *meetingdomain.Meeting, matches []chroma.Match) string {
	title := meeting.Title
	if title == "" {
		title = untitledMeeting
	}
	date := "Unknown"
	if !meeting.StartTime.IsZero() {
		date = meeting.StartTime.Format("Mon Jan 02 2006")
	}

	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, speakerOf(m)+": "+m.Metadata.Content)
	}

	return fmt.Sprintf(`You are helping someone understand their meeting.
Meeting: %s
Date: %s

Here's what was discussed:
%s

Answer the user's question based only on the meeting content above. If the answer isn't in the meeting, say so`,
		title, date, strings.Join(parts, "\n\n"))
}

func allMeetingsPrompt(best []chroma.Match) string {
	parts := make([]string, 0, len(best))
	for _, m := range best {
		title := m.Metadata.MeetingTitle
		if title == "" {
			title = untitledMeeting
		}
		parts = append(parts, fmt.Sprintf("Meeting: %s\n%s: %s", title, speakerOf(m), m.Metadata.Content))
	}

	n := len(best)
	return fmt.Sprintf(`You are helping someone understand their meeting history.

Found information from %d meeting(s).

Here's what was discussed across their meetings:
%s

Answer the user's question based only on the meeting content above. When you reference something, mention which meetings it's from.
IMPORTANT: You found information from %d different meeting(s), not more.`,
		n, strings.Join(parts, "\n\n---\n\n"), n)
}

func speakerOf(m chroma.Match) string {
	if m.Metadata.SpeakerName == "" {
		return "Unknown"
	}
	return m.Metadata.SpeakerName
}

func toSources(matches []chroma.Match) []Source {
	out := make([]Source, 0, len(matches))
	for _, m := range matches {
		out = append(out, Source{
			MeetingID:    m.Metadata.MeetingID,
			MeetingTitle: m.Metadata.MeetingTitle,
			Content:      m.Metadata.Content,
			SpeakerName:  m.Metadata.SpeakerName,
			Confidence:   m.Score,
		})
	}
	return out
}
