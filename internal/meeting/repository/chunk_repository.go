package repository

import (
	"context"
	"time"

	"github.com/Chedidayeh/meeting-bot/internal/meeting/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormChunkRepository struct {
	db *gorm.DB
}

func NewGormChunkRepository(db *gorm.DB) ChunkRepository {
	return &gormChunkRepository{db: db}
}

// UpsertChunks replaces chunks sharing a vector id, so re-indexing a meeting
// never duplicates rows.
func (r *gormChunkRepository) UpsertChunks(ctx context.Context, chunks []domain.TranscriptChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	now := time.Now()
	for i := range chunks {
		if chunks[i].ID == "" {
			chunks[i].ID = uuid.New().String()
		}
		if chunks[i].CreatedAt.IsZero() {
			chunks[i].CreatedAt = now
		}
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "vector_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "speaker_name", "chunk_index"}),
	}).Create(&chunks).Error
}

func (r *gormChunkRepository) FindByMeetingID(ctx context.Context, meetingID string) ([]domain.TranscriptChunk, error) {
	var chunks []domain.TranscriptChunk
	err := r.db.WithContext(ctx).Where("meeting_id = ?", meetingID).Order("chunk_index ASC").Find(&chunks).Error
	return chunks, err
}

type gormChatRepository struct {
	db *gorm.DB
}

func NewGormChatRepository(db *gorm.DB) ChatRepository {
	return &gormChatRepository{db: db}
}

func (r *gormChatRepository) SaveMessages(ctx context.Context, messages ...*domain.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	now := time.Now()
	for i, m := range messages {
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		if m.CreatedAt.IsZero() {
			// keep question before answer when both land in the same call
			m.CreatedAt = now.Add(time.Duration(i) * time.Millisecond)
		}
	}
	return r.db.WithContext(ctx).Create(messages).Error
}

func (r *gormChatRepository) ListMessages(ctx context.Context, userID string, meetingID *string, limit int) ([]*domain.ChatMessage, error) {
	var messages []*domain.ChatMessage

	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if meetingID == nil {
		query = query.Where("meeting_id IS NULL")
	} else {
		query = query.Where("meeting_id = ?", *meetingID)
	}
	if err := query.Order("created_at DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
