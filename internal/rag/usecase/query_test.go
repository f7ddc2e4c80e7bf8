package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	meetingdomain "github.com/Chedidayeh/meeting-bot/internal/meeting/domain"
	"github.com/Chedidayeh/meeting-bot/pkg/apperrors"
	"github.com/Chedidayeh/meeting-bot/pkg/chroma"
	"github.com/Chedidayeh/meeting-bot/pkg/metrics"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func match(meetingID string, score float64, content string) chroma.Match {
	return chroma.Match{
		ID:    meetingID + "_" + content,
		Score: score,
		Metadata: chroma.VectorMetadata{
			MeetingID:    meetingID,
			UserID:       "u1",
			Content:      content,
			SpeakerName:  "Ann",
			MeetingTitle: "Title " + meetingID,
		},
	}
}

func TestDedupByMeeting(t *testing.T) {
	matches := []chroma.Match{
		match("a", 0.4, "a1"),
		match("b", 0.9, "b1"),
		match("a", 0.8, "a2"),
		match("c", 0.1, "c1"),
		match("b", 0.2, "b2"),
		match("", 0.99, "orphan"),
		match("a", 0.3, "a3"),
	}

	best := DedupByMeeting(matches)
	require.Len(t, best, 3)
	assert.Equal(t, "b1", best[0].Metadata.Content)
	assert.Equal(t, "a2", best[1].Metadata.Content)
	assert.Equal(t, "c1", best[2].Metadata.Content)

	assert.Empty(t, DedupByMeeting(nil))
}

func TestAskAllReportsDistinctMeetings(t *testing.T) {
	index := newFakeIndex()
	for i := 0; i < 8; i++ {
		index.matches = append(index.matches, match(fmt.Sprintf("m%d", i%3), float64(i)/10, fmt.Sprintf("chunk %d", i)))
	}
	gen := &fakeGenerator{reply: "You talked about pricing."}
	q := NewQueryEngine(&fakeEmbedder{}, gen, index, newFakeMeetings(), metrics.NewNop(), zerolog.Nop())

	answer, err := q.AskAll(context.Background(), "u1", "What about pricing?")
	require.NoError(t, err)

	assert.Equal(t, 3, answer.MeetingCount)
	require.Len(t, answer.Sources, 3)
	seen := map[string]bool{}
	for _, s := range answer.Sources {
		assert.False(t, seen[s.MeetingID], s.MeetingID)
		seen[s.MeetingID] = true
	}
	assert.Equal(t, "chunk 7", answer.Sources[0].Content)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Found information from 3 meeting(s).")
	assert.Contains(t, gen.prompts[0], "You found information from 3 different meeting(s), not more.")
	assert.Contains(t, gen.prompts[0], "User question: What about pricing?")

	assert.Equal(t, []chroma.Filter{{UserID: "u1"}}, index.filters)
	assert.Equal(t, []int{AllTopK}, index.topKs)
}

func TestAskMeeting(t *testing.T) {
	start := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	meeting := &meetingdomain.Meeting{ID: "m1", UserID: "u1", Title: "Standup", StartTime: start}
	index := newFakeIndex()
	index.matches = []chroma.Match{match("m1", 0.7, "we ship friday")}
	gen := &fakeGenerator{reply: "Friday."}
	q := NewQueryEngine(&fakeEmbedder{}, gen, index, newFakeMeetings(meeting), metrics.NewNop(), zerolog.Nop())

	answer, err := q.AskMeeting(context.Background(), "u1", "m1", "When do we ship?")
	require.NoError(t, err)
	assert.Equal(t, "Friday.", answer.Answer)
	assert.Equal(t, 1, answer.MeetingCount)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, 0.7, answer.Sources[0].Confidence)

	assert.Equal(t, []chroma.Filter{{UserID: "u1", MeetingID: "m1"}}, index.filters)
	assert.Contains(t, gen.prompts[0], "Meeting: Standup")
	assert.Contains(t, gen.prompts[0], "Date: Tue Mar 05 2024")
	assert.Contains(t, gen.prompts[0], "Ann: we ship friday")
}

func TestAskMeetingOwnership(t *testing.T) {
	meeting := &meetingdomain.Meeting{ID: "m1", UserID: "owner"}
	index := newFakeIndex()
	q := NewQueryEngine(&fakeEmbedder{}, &fakeGenerator{}, index, newFakeMeetings(meeting), metrics.NewNop(), zerolog.Nop())

	_, err := q.AskMeeting(context.Background(), "intruder", "m1", "anything?")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = q.AskMeeting(context.Background(), "owner", "missing", "anything?")
	assert.True(t, apperrors.IsNotFound(err))

	assert.Empty(t, index.filters)
}

func TestAskEmptyReplyAndErrors(t *testing.T) {
	index := newFakeIndex()
	q := NewQueryEngine(&fakeEmbedder{}, &fakeGenerator{reply: "  "}, index, newFakeMeetings(), metrics.NewNop(), zerolog.Nop())

	answer, err := q.AskAll(context.Background(), "u1", "hello?")
	require.NoError(t, err)
	assert.Equal(t, noAnswer, answer.Answer)
	assert.Equal(t, 0, answer.MeetingCount)

	index.queryErr = errBoom
	_, err = q.AskAll(context.Background(), "u1", "hello?")
	assert.ErrorIs(t, err, errBoom)
}
