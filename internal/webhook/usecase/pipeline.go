package usecase

import (
	"context"
	"fmt"
	"time"

	meetingdomain "github.com/Chedidayeh/meeting-bot/internal/meeting/domain"
	meetingrepo "github.com/Chedidayeh/meeting-bot/internal/meeting/repository"
	userdomain "github.com/Chedidayeh/meeting-bot/internal/user/domain"
	"github.com/Chedidayeh/meeting-bot/internal/webhook/domain"
	"github.com/Chedidayeh/meeting-bot/pkg/apperrors"
	"github.com/Chedidayeh/meeting-bot/pkg/lock"
	"github.com/Chedidayeh/meeting-bot/pkg/metrics"

	"github.com/rs/zerolog"
)

// ProcessingLease is how long a claimed meeting stays reserved for one
// delivery before another may take it over.
const ProcessingLease = 5 * time.Minute

// finalizeReserve is the part of the lease kept for writing the result after
// the slow steps are cut off.
const finalizeReserve = 30 * time.Second

const (
	StatusIgnored          = "ignored"
	StatusAlreadyProcessed = "already_processed"
	StatusInProgress       = "in_progress"
	StatusProcessed        = "processed"
)

type MeetingStore interface {
	FindByID(ctx context.Context, id string) (*meetingdomain.Meeting, error)
	FindByBotID(ctx context.Context, botID string) (*meetingdomain.Meeting, error)
	ClaimProcessing(ctx context.Context, id string, now time.Time, lease time.Duration) (bool, error)
	SaveArtifacts(ctx context.Context, id string, artifacts meetingrepo.Artifacts) error
	Finalize(ctx context.Context, id string, f meetingrepo.Finalization) error
	CountUsageOnce(ctx context.Context, id, userID string) (bool, error)
}

type UserStore interface {
	FindByID(ctx context.Context, id string) (*userdomain.User, error)
}

type ArtifactFetcher interface {
	FetchArtifact(ctx context.Context, url string) ([]byte, error)
}

type SummaryGenerator interface {
	Summarize(ctx context.Context, transcript string) (SummaryResult, error)
}

type TranscriptIndexer interface {
	IndexMeeting(ctx context.Context, meeting *meetingdomain.Meeting, transcript string) (int, error)
}

type Notifier interface {
	SendSummaryEmail(ctx context.Context, user *userdomain.User, meeting *meetingdomain.Meeting) error
	NotifyProcessed(ctx context.Context, user *userdomain.User, meeting *meetingdomain.Meeting)
}

// Outcome is the acknowledgement returned for one delivery.
type Outcome struct {
	Status           string `json:"status"`
	MeetingID        string `json:"meetingId,omitempty"`
	ProcessingFailed bool   `json:"processingFailed,omitempty"`
	EmailSent        bool   `json:"emailSent,omitempty"`
	RAGProcessed     bool   `json:"ragProcessed,omitempty"`
	ActionItems      int    `json:"actionItems,omitempty"`
}

// Pipeline turns a completed recording into a finalized meeting.
type Pipeline struct {
	meetings   MeetingStore
	users      UserStore
	artifacts  ArtifactFetcher
	summarizer SummaryGenerator
	indexer    TranscriptIndexer
	notifier   Notifier
	locker     lock.Locker
	metrics    *metrics.Metrics
	log        zerolog.Logger
	now        func() time.Time
	workBudget time.Duration
}

func NewPipeline(
	meetings MeetingStore,
	users UserStore,
	artifacts ArtifactFetcher,
	summarizer SummaryGenerator,
	indexer TranscriptIndexer,
	notifier Notifier,
	locker lock.Locker,
	m *metrics.Metrics,
	log zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		meetings:   meetings,
		users:      users,
		artifacts:  artifacts,
		summarizer: summarizer,
		indexer:    indexer,
		notifier:   notifier,
		locker:     locker,
		metrics:    m,
		log:        log.With().Str("component", "webhook_pipeline").Logger(),
		now:        time.Now,
		workBudget: ProcessingLease - finalizeReserve,
	}
}

// Handle processes one webhook delivery. Deliveries may repeat: a meeting
// that is already processed, or claimed by a concurrent delivery, is
// acknowledged without side effects.
func (p *Pipeline) Handle(ctx context.Context, evt domain.Event) (out *Outcome, err error) {
	eventType := evt.Type()
	defer func() {
		outcome := "error"
		if err == nil && out != nil {
			outcome = out.Status
		}
		p.metrics.WebhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
	}()

	if !evt.IsCompletion() {
		p.log.Debug().Str("event", eventType).Msg("Ignoring webhook event")
		return &Outcome{Status: StatusIgnored}, nil
	}

	meeting, err := p.resolveMeeting(ctx, evt)
	if err != nil {
		return nil, err
	}
	log := p.log.With().Str("meeting_id", meeting.ID).Str("bot_id", evt.Data.BotID).Logger()

	if meeting.Processed {
		log.Info().Msg("Meeting already processed, skipping")
		return &Outcome{Status: StatusAlreadyProcessed, MeetingID: meeting.ID}, nil
	}

	unlock, ok, err := p.locker.TryLock(ctx, "webhook:"+meeting.ID, ProcessingLease)
	if err != nil {
		return nil, fmt.Errorf("acquire webhook lock: %w", err)
	}
	if !ok {
		log.Info().Msg("Meeting is being processed by another delivery")
		return &Outcome{Status: StatusInProgress, MeetingID: meeting.ID}, nil
	}
	defer unlock()

	claimed, err := p.meetings.ClaimProcessing(ctx, meeting.ID, p.now(), ProcessingLease)
	if err != nil {
		return nil, fmt.Errorf("claim meeting: %w", err)
	}
	if !claimed {
		// Either finalized since the read above or leased by another instance.
		current, err := p.meetings.FindByID(ctx, meeting.ID)
		if err == nil && current != nil && current.Processed {
			return &Outcome{Status: StatusAlreadyProcessed, MeetingID: meeting.ID}, nil
		}
		return &Outcome{Status: StatusInProgress, MeetingID: meeting.ID}, nil
	}

	return p.process(ctx, log, meeting, evt.Data)
}

func (p *Pipeline) resolveMeeting(ctx context.Context, evt domain.Event) (*meetingdomain.Meeting, error) {
	if botID := evt.Data.BotID; botID != "" {
		meeting, err := p.meetings.FindByBotID(ctx, botID)
		if err != nil {
			return nil, fmt.Errorf("find meeting by bot: %w", err)
		}
		if meeting != nil {
			return meeting, nil
		}
	}

	if id := evt.Correlation().MeetingID; id != "" {
		meeting, err := p.meetings.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("find meeting: %w", err)
		}
		if meeting != nil {
			return meeting, nil
		}
	}

	return nil, fmt.Errorf("meeting for bot %q: %w", evt.Data.BotID, apperrors.ErrNotFound)
}

func (p *Pipeline) process(ctx context.Context, log zerolog.Logger, meeting *meetingdomain.Meeting, data domain.EventData) (*Outcome, error) {
	// The result must be written while the lease is still held, otherwise a
	// redelivery could claim the meeting and run it a second time.
	leaseCtx, cancelLease := context.WithTimeout(ctx, ProcessingLease)
	defer cancelLease()
	workCtx, cancelWork := context.WithTimeout(leaseCtx, p.workBudget)
	defer cancelWork()

	var recordingURL *string
	if u := data.RecordingURL(); u != "" {
		recordingURL = &u
	}
	speakers := []string(data.Speakers)
	if len(speakers) == 0 {
		speakers = data.Participants
	}

	err := p.step("artifacts", func() error {
		return p.meetings.SaveArtifacts(leaseCtx, meeting.ID, meetingrepo.Artifacts{
			RecordingURL: recordingURL,
			Speakers:     speakers,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("save artifacts: %w", err)
	}

	var transcript Transcript
	_ = p.step("transcript", func() error {
		transcript = p.fetchTranscript(workCtx, log, data)
		return nil
	})
	if len(transcript.Speakers) > 0 {
		speakers = transcript.Speakers
	}

	err = p.meetings.SaveArtifacts(leaseCtx, meeting.ID, meetingrepo.Artifacts{
		Speakers:        speakers,
		Transcript:      transcript.Text,
		TranscriptReady: transcript.Parsed(),
	})
	if err != nil {
		return nil, fmt.Errorf("save transcript: %w", err)
	}
	meeting.MeetingEnded = true
	meeting.Transcript = transcript.Text
	meeting.TranscriptReady = transcript.Parsed()
	meeting.RecordingURL = recordingURL
	meeting.Speakers = speakers

	fin := meetingrepo.Finalization{Speakers: speakers}

	if transcript.Parsed() {
		var summary SummaryResult
		_ = p.step("summarize", func() error {
			summary, err = p.summarizer.Summarize(workCtx, transcript.Text)
			return err
		})
		fin.Summary = summary.Summary
		fin.ActionItems = summary.ActionItems
		if err != nil {
			fin.ProcessingFailed = true
			fin.ProcessingError = err.Error()
			log.Warn().Err(err).Msg("Summarization failed, storing fallback summary")
		}
	} else {
		fin.Summary = FallbackSummary
		fin.ActionItems = []meetingdomain.ActionItem{}
		fin.ProcessingFailed = true
		fin.ProcessingError = UnparsedTranscript
		log.Warn().Str("shape", string(transcript.Shape)).Msg("Transcript could not be parsed")
	}
	meeting.Summary = fin.Summary
	meeting.ActionItems = fin.ActionItems
	meeting.ProcessingFailed = fin.ProcessingFailed

	user, err := p.users.FindByID(leaseCtx, meeting.UserID)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load meeting owner")
	}

	if user == nil {
		fin.EmailError = "meeting owner not found"
	} else {
		err = p.step("email", func() error {
			return p.notifier.SendSummaryEmail(workCtx, user, meeting)
		})
		if err != nil {
			fin.EmailError = err.Error()
			log.Warn().Err(err).Msg("Summary email failed")
		} else {
			fin.EmailSent = true
		}
	}

	if transcript.Parsed() {
		err = p.step("index", func() error {
			_, err := p.indexer.IndexMeeting(workCtx, meeting, transcript.Text)
			return err
		})
		if err != nil {
			fin.RAGError = err.Error()
			log.Warn().Err(err).Msg("Transcript indexing failed")
		} else {
			fin.RAGProcessed = true
		}
	} else {
		fin.RAGError = "no transcript to index"
	}

	fin.At = p.now()
	err = p.step("finalize", func() error {
		return p.meetings.Finalize(leaseCtx, meeting.ID, fin)
	})
	if err != nil {
		return nil, fmt.Errorf("finalize meeting: %w", err)
	}
	meeting.Processed = true
	meeting.EmailSent = fin.EmailSent
	meeting.EmailError = fin.EmailError
	meeting.RAGProcessed = fin.RAGProcessed
	meeting.RAGError = fin.RAGError

	if _, err := p.meetings.CountUsageOnce(ctx, meeting.ID, meeting.UserID); err != nil {
		log.Error().Err(err).Msg("Failed to record meeting usage")
	}

	if user != nil {
		p.notifier.NotifyProcessed(ctx, user, meeting)
	}

	log.Info().
		Bool("processing_failed", fin.ProcessingFailed).
		Bool("email_sent", fin.EmailSent).
		Bool("rag_processed", fin.RAGProcessed).
		Int("action_items", len(fin.ActionItems)).
		Msg("Meeting processed")

	return &Outcome{
		Status:           StatusProcessed,
		MeetingID:        meeting.ID,
		ProcessingFailed: fin.ProcessingFailed,
		EmailSent:        fin.EmailSent,
		RAGProcessed:     fin.RAGProcessed,
		ActionItems:      len(fin.ActionItems),
	}, nil
}

// fetchTranscript tries the artifact URLs in order, then the inline payload.
func (p *Pipeline) fetchTranscript(ctx context.Context, log zerolog.Logger, data domain.EventData) Transcript {
	for _, url := range data.TranscriptURLs() {
		raw, err := p.artifacts.FetchArtifact(ctx, url)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to fetch transcript artifact")
			continue
		}
		if t := NormalizeTranscript(raw); t.Parsed() {
			return t
		}
	}
	if len(data.Transcript) > 0 {
		return NormalizeTranscript(data.Transcript)
	}
	return unrecognized()
}

func (p *Pipeline) step(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.metrics.PipelineStepSeconds.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return err
}
