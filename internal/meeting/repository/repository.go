package repository

import (
	"context"
	"time"

	"github.com/Chedidayeh/meeting-bot/internal/meeting/domain"
)

// CalendarFields are the columns calendar sync owns. BotScheduled is
// deliberately absent.
type CalendarFields struct {
	Title       string
	Description string
	MeetingURL  string
	StartTime   time.Time
	EndTime     time.Time
	Attendees   []string
}

// Artifacts are the raw outputs of a finished recording.
type Artifacts struct {
	RecordingURL    *string
	Speakers        []string
	Transcript      string
	TranscriptReady bool
}

// Finalization is written once when the pipeline finishes a meeting.
type Finalization struct {
	Summary          string
	ActionItems      []domain.ActionItem
	ProcessingFailed bool
	ProcessingError  string
	Speakers         []string
	EmailSent        bool
	EmailError       string
	RAGProcessed     bool
	RAGError         string
	At               time.Time
}

// MeetingRepository persists meetings. Find methods return nil, nil when the
// row does not exist. Writes are field-scoped so calendar sync, dispatch and
// the webhook pipeline never overwrite each other's columns.
type MeetingRepository interface {
	Create(ctx context.Context, meeting *domain.Meeting) error
	FindByID(ctx context.Context, id string) (*domain.Meeting, error)
	FindByBotID(ctx context.Context, botID string) (*domain.Meeting, error)
	FindByCalendarEventID(ctx context.Context, eventID string) (*domain.Meeting, error)

	// FindCalendarMeetingsFrom lists the user's calendar-sourced meetings
	// starting at or after from.
	FindCalendarMeetingsFrom(ctx context.Context, userID string, from time.Time) ([]*domain.Meeting, error)

	// FindDueForDispatch lists meetings starting in [from, to] that the user
	// wants recorded, that have a join URL and no bot yet.
	FindDueForDispatch(ctx context.Context, from, to time.Time) ([]*domain.Meeting, error)

	ListUpcoming(ctx context.Context, userID string, now time.Time, limit int) ([]*domain.Meeting, error)
	ListPast(ctx context.Context, userID string, now time.Time, limit, offset int) ([]*domain.Meeting, int64, error)

	UpdateCalendarFields(ctx context.Context, id string, fields CalendarFields) error
	Delete(ctx context.Context, ids ...string) error

	// SetBotScheduled changes the user intent flag; false when the bot was
	// already sent.
	SetBotScheduled(ctx context.Context, id string, scheduled bool) (bool, error)

	// MarkBotSent sets bot_sent on a meeting that had none. It returns false
	// when another writer set it first.
	MarkBotSent(ctx context.Context, id string, botID *string, at time.Time) (bool, error)

	// CountUsageOnce increments the owner's monthly counter the first time it
	// is called for a meeting and reports whether it did.
	CountUsageOnce(ctx context.Context, id, userID string) (bool, error)

	// ClaimProcessing takes the processing lease of an unprocessed meeting
	// when it is free or older than lease.
	ClaimProcessing(ctx context.Context, id string, now time.Time, lease time.Duration) (bool, error)

	SaveArtifacts(ctx context.Context, id string, artifacts Artifacts) error
	Finalize(ctx context.Context, id string, f Finalization) error
	MarkRAGProcessed(ctx context.Context, id string, at time.Time) error
	MarkRAGFailed(ctx context.Context, id, reason string) error
}

// ChunkRepository persists transcript chunks keyed by vector id.
type ChunkRepository interface {
	UpsertChunks(ctx context.Context, chunks []domain.TranscriptChunk) error
	FindByMeetingID(ctx context.Context, meetingID string) ([]domain.TranscriptChunk, error)
}

// ChatRepository persists chat history.
type ChatRepository interface {
	SaveMessages(ctx context.Context, messages ...*domain.ChatMessage) error
	// ListMessages returns the newest limit messages in chronological order.
	// A nil meetingID selects the all-meetings conversation.
	ListMessages(ctx context.Context, userID string, meetingID *string, limit int) ([]*domain.ChatMessage, error)
}
