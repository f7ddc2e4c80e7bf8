package domain

import (
	"time"

	"github.com/lib/pq"
)

// ActionItem is one concrete follow-up extracted from a transcript.
type ActionItem struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// Meeting moves through scheduled, dispatched, recorded and finalized states.
// Processed is terminal: once true the ingestion pipeline never runs again
// for the meeting. BotSent is never reset once set.
type Meeting struct {
	ID              string  `json:"id" gorm:"primaryKey"`
	UserID          string  `json:"user_id" gorm:"index;not null"`
	CalendarEventID *string `json:"calendar_event_id,omitempty" gorm:"uniqueIndex"`
	IsFromCalendar  bool    `json:"is_from_calendar" gorm:"default:false"`

	Title       string         `json:"title"`
	Description string         `json:"description,omitempty" gorm:"type:text"`
	MeetingURL  *string        `json:"meeting_url,omitempty"`
	StartTime   time.Time      `json:"start_time" gorm:"index"`
	EndTime     time.Time      `json:"end_time"`
	Attendees   pq.StringArray `json:"attendees" gorm:"type:text[]"`

	// BotScheduled is owned by the user; the pipeline never writes it.
	BotScheduled bool       `json:"bot_scheduled" gorm:"default:false"`
	BotSent      bool       `json:"bot_sent" gorm:"default:false;index"`
	BotID        *string    `json:"bot_id,omitempty" gorm:"index"`
	BotSentAt    *time.Time `json:"bot_sent_at,omitempty"`

	MeetingEnded    bool           `json:"meeting_ended" gorm:"default:false"`
	TranscriptReady bool           `json:"transcript_ready" gorm:"default:false"`
	Transcript      string         `json:"transcript,omitempty" gorm:"type:text"`
	RecordingURL    *string        `json:"recording_url,omitempty"`
	Speakers        pq.StringArray `json:"speakers" gorm:"type:text[]"`

	ProcessingStartedAt *time.Time   `json:"-"`
	Processed           bool         `json:"processed" gorm:"default:false;index"`
	ProcessedAt         *time.Time   `json:"processed_at,omitempty"`
	ProcessingFailed    bool         `json:"processing_failed" gorm:"default:false"`
	ProcessingError     string       `json:"processing_error,omitempty"`
	Summary             string       `json:"summary,omitempty" gorm:"type:text"`
	ActionItems         []ActionItem `json:"action_items" gorm:"serializer:json;type:jsonb"`

	RAGProcessed   bool       `json:"rag_processed" gorm:"default:false"`
	RAGProcessedAt *time.Time `json:"rag_processed_at,omitempty"`
	RAGError       string     `json:"rag_error,omitempty"`

	EmailSent   bool       `json:"email_sent" gorm:"default:false"`
	EmailSentAt *time.Time `json:"email_sent_at,omitempty"`
	EmailError  string     `json:"email_error,omitempty"`

	// UsageCounted guards the monthly meeting counter so each meeting is
	// billed once across dispatch and completion.
	UsageCounted bool `json:"-" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Meeting) JoinURL() string {
	if m.MeetingURL == nil {
		return ""
	}
	return *m.MeetingURL
}

// Status is the coarse state shown by the dashboard.
func (m *Meeting) Status() string {
	switch {
	case m.Processed && m.ProcessingFailed:
		return "failed"
	case m.Processed:
		return "completed"
	case m.MeetingEnded:
		return "processing"
	case m.BotSent:
		return "recording"
	case m.BotScheduled:
		return "scheduled"
	default:
		return "upcoming"
	}
}

// TranscriptChunk mirrors one vector index entry so the index can be rebuilt
// without the external store.
type TranscriptChunk struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	MeetingID   string    `json:"meeting_id" gorm:"index;not null"`
	ChunkIndex  int       `json:"chunk_index"`
	Content     string    `json:"content" gorm:"type:text"`
	SpeakerName string    `json:"speaker_name"`
	VectorID    string    `json:"vector_id" gorm:"uniqueIndex;not null"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	ChatRoleUser = "user"
	ChatRoleBot  = "bot"
)

// ChatMessage is one turn of a question-answer exchange. MeetingID is nil
// for questions asked across all meetings.
type ChatMessage struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index;not null"`
	MeetingID *string   `json:"meeting_id,omitempty" gorm:"index"`
	Role      string    `json:"role"`
	Content   string    `json:"content" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
