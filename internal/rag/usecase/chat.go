package usecase

import (
	"context"
	"fmt"
	"strings"

	meetingdomain "github.com/Chedidayeh/meeting-bot/internal/meeting/domain"
	userusecase "github.com/Chedidayeh/meeting-bot/internal/user/usecase"
	"github.com/Chedidayeh/meeting-bot/pkg/apperrors"

	"github.com/rs/zerolog"
)

const historyLimit = 50

type ChatQuota interface {
	ConsumeChat(ctx context.Context, userID string) (userusecase.Decision, error)
}

type ChatHistory interface {
	SaveMessages(ctx context.Context, messages ...*meetingdomain.ChatMessage) error
	ListMessages(ctx context.Context, userID string, meetingID *string, limit int) ([]*meetingdomain.ChatMessage, error)
}

type Asker interface {
	AskMeeting(ctx context.Context, userID, meetingID, question string) (*Answer, error)
	AskAll(ctx context.Context, userID, question string) (*Answer, error)
}

type MeetingIndexer interface {
	IndexMeeting(ctx context.Context, meeting *meetingdomain.Meeting, transcript string) (int, error)
}

// ChatResult is an answer or a quota denial.
type ChatResult struct {
	*Answer
	Denied bool                 `json:"denied,omitempty"`
	Quota  userusecase.Decision `json:"quota"`
}

// ProcessResult reports a manual re-index.
type ProcessResult struct {
	Chunks           int  `json:"chunks"`
	AlreadyProcessed bool `json:"alreadyProcessed"`
}

// ChatService puts the chat allowance and history around the query engine.
type ChatService struct {
	asker    Asker
	quota    ChatQuota
	history  ChatHistory
	meetings MeetingFinder
	indexer  MeetingIndexer
	log      zerolog.Logger
}

func NewChatService(asker Asker, quota ChatQuota, history ChatHistory, meetings MeetingFinder, indexer MeetingIndexer, log zerolog.Logger) *ChatService {
	return &ChatService{
		asker:    asker,
		quota:    quota,
		history:  history,
		meetings: meetings,
		indexer:  indexer,
		log:      log.With().Str("component", "rag_chat").Logger(),
	}
}

func (s *ChatService) AskMeeting(ctx context.Context, userID, meetingID, question string) (*ChatResult, error) {
	return s.ask(ctx, userID, &meetingID, question, func() (*Answer, error) {
		return s.asker.AskMeeting(ctx, userID, meetingID, question)
	})
}

func (s *ChatService) AskAll(ctx context.Context, userID, question string) (*ChatResult, error) {
	return s.ask(ctx, userID, nil, question, func() (*Answer, error) {
		return s.asker.AskAll(ctx, userID, question)
	})
}

func (s *ChatService) ask(ctx context.Context, userID string, meetingID *string, question string, run func() (*Answer, error)) (*ChatResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is required: %w", apperrors.ErrValidation)
	}

	decision, err := s.quota.ConsumeChat(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return &ChatResult{Denied: true, Quota: decision}, nil
	}

	answer, err := run()
	if err != nil {
		return nil, err
	}

	err = s.history.SaveMessages(ctx,
		&meetingdomain.ChatMessage{UserID: userID, MeetingID: meetingID, Role: meetingdomain.ChatRoleUser, Content: question},
		&meetingdomain.ChatMessage{UserID: userID, MeetingID: meetingID, Role: meetingdomain.ChatRoleBot, Content: answer.Answer},
	)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to save chat history")
	}

	return &ChatResult{Answer: answer, Quota: decision}, nil
}

// History lists the newest messages of a conversation, oldest first. A nil
// meetingID selects the all-meetings conversation.
func (s *ChatService) History(ctx context.Context, userID string, meetingID *string) ([]*meetingdomain.ChatMessage, error) {
	if meetingID != nil {
		meeting, err := s.meetings.FindByID(ctx, *meetingID)
		if err != nil {
			return nil, err
		}
		if meeting == nil || meeting.UserID != userID {
			return nil, fmt.Errorf("meeting %s: %w", *meetingID, apperrors.ErrNotFound)
		}
	}
	return s.history.ListMessages(ctx, userID, meetingID, historyLimit)
}

// ProcessMeeting indexes a finished meeting whose indexing has not succeeded yet.
func (s *ChatService) ProcessMeeting(ctx context.Context, userID, meetingID string) (*ProcessResult, error) {
	meeting, err := s.meetings.FindByID(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if meeting == nil || meeting.UserID != userID {
		return nil, fmt.Errorf("meeting %s: %w", meetingID, apperrors.ErrNotFound)
	}
	if meeting.RAGProcessed {
		return &ProcessResult{AlreadyProcessed: true}, nil
	}
	if strings.TrimSpace(meeting.Transcript) == "" || !meeting.TranscriptReady {
		return nil, fmt.Errorf("meeting has no transcript: %w", apperrors.ErrInvalidState)
	}

	n, err := s.indexer.IndexMeeting(ctx, meeting, meeting.Transcript)
	if err != nil {
		return nil, err
	}
	return &ProcessResult{Chunks: n}, nil
}
