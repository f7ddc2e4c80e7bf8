package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Chedidayeh/meeting-bot/internal/meeting/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// gormMeetingRepository implements MeetingRepository using GORM
type gormMeetingRepository struct {
	db *gorm.DB
}

func NewGormMeetingRepository(db *gorm.DB) MeetingRepository {
	return &gormMeetingRepository{db: db}
}

func (r *gormMeetingRepository) Create(ctx context.Context, meeting *domain.Meeting) error {
	if meeting.ID == "" {
		meeting.ID = uuid.New().String()
	}
	now := time.Now()
	meeting.CreatedAt = now
	meeting.UpdatedAt = now
	return r.db.WithContext(ctx).Create(meeting).Error
}

func (r *gormMeetingRepository) findOne(ctx context.Context, query string, args ...interface{}) (*domain.Meeting, error) {
	var meeting domain.Meeting
	err := r.db.WithContext(ctx).Where(query, args...).First(&meeting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &meeting, nil
}

func (r *gormMeetingRepository) FindByID(ctx context.Context, id string) (*domain.Meeting, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *gormMeetingRepository) FindByBotID(ctx context.Context, botID string) (*domain.Meeting, error) {
	return r.findOne(ctx, "bot_id = ?", botID)
}

func (r *gormMeetingRepository) FindByCalendarEventID(ctx context.Context, eventID string) (*domain.Meeting, error) {
	return r.findOne(ctx, "calendar_event_id = ?", eventID)
}

func (r *gormMeetingRepository) FindCalendarMeetingsFrom(ctx context.Context, userID string, from time.Time) ([]*domain.Meeting, error) {
	var meetings []*domain.Meeting
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_from_calendar = ? AND start_time >= ?", userID, true, from).
		Find(&meetings).Error
	return meetings, err
}

func (r *gormMeetingRepository) FindDueForDispatch(ctx context.Context, from, to time.Time) ([]*domain.Meeting, error) {
	var meetings []*domain.Meeting
	err := r.db.WithContext(ctx).
		Where("start_time >= ? AND start_time <= ?", from, to).
		Where("bot_scheduled = ? AND bot_sent = ?", true, false).
		Where("meeting_url IS NOT NULL AND meeting_url <> ''").
		Order("start_time ASC").
		Find(&meetings).Error
	return meetings, err
}

func (r *gormMeetingRepository) ListUpcoming(ctx context.Context, userID string, now time.Time, limit int) ([]*domain.Meeting, error) {
	var meetings []*domain.Meeting
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND start_time >= ? AND is_from_calendar = ?", userID, now, true).
		Order("start_time ASC").
		Limit(limit).
		Find(&meetings).Error
	return meetings, err
}

func (r *gormMeetingRepository) ListPast(ctx context.Context, userID string, now time.Time, limit, offset int) ([]*domain.Meeting, int64, error) {
	var meetings []*domain.Meeting
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Meeting{}).Where("user_id = ? AND start_time < ?", userID, now)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("start_time DESC").Limit(limit).Offset(offset).Find(&meetings).Error
	if err != nil {
		return nil, 0, err
	}
	return meetings, total, nil
}

func (r *gormMeetingRepository) UpdateCalendarFields(ctx context.Context, id string, f CalendarFields) error {
	return r.db.WithContext(ctx).Model(&domain.Meeting{}).Where("id = ?", id).Updates(map[string]interface{}{
		"title":       f.Title,
		"description": f.Description,
		"meeting_url": f.MeetingURL,
		"start_time":  f.StartTime,
		"end_time":    f.EndTime,
		"attendees":   pq.StringArray(f.Attendees),
		"updated_at":  time.Now(),
	}).Error
}

func (r *gormMeetingRepository) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.Meeting{}).Error
}

func (r *gormMeetingRepository) SetBotScheduled(ctx context.Context, id string, scheduled bool) (bool, error) {
	result := r.db.WithContext(ctx).Model(&domain.Meeting{}).
		Where("id = ? AND bot_sent = ?", id, false).
		Updates(map[string]interface{}{
			"bot_scheduled": scheduled,
			"updated_at":    time.Now(),
		})
	return result.RowsAffected == 1, result.Error
}

func (r *gormMeetingRepository) MarkBotSent(ctx context.Context, id string, botID *string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&domain.Meeting{}).
		Where("id = ? AND bot_sent = ?", id, false).
		Updates(map[string]interface{}{
			"bot_sent":    true,
			"bot_id":      botID,
			"bot_sent_at": at,
			"updated_at":  time.Now(),
		})
	return result.RowsAffected == 1, result.Error
}

func (r *gormMeetingRepository) CountUsageOnce(ctx context.Context, id, userID string) (bool, error) {
	counted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&domain.Meeting{}).
			Where("id = ? AND usage_counted = ?", id, false).
			Update("usage_counted", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		counted = true
		return tx.Table("users").Where("id = ?", userID).
			UpdateColumn("meetings_this_month", gorm.Expr("meetings_this_month + 1")).Error
	})
	if err != nil {
		return false, err
	}
	return counted, nil
}

func (r *gormMeetingRepository) ClaimProcessing(ctx context.Context, id string, now time.Time, lease time.Duration) (bool, error) {
	result := r.db.WithContext(ctx).Model(&domain.Meeting{}).
		Where("id = ? AND processed = ?", id, false).
		Where("processing_started_at IS NULL OR processing_started_at < ?", now.Add(-lease)).
		Update("processing_started_at", now)
	return result.RowsAffected == 1, result.Error
}

func (r *gormMeetingRepository) SaveArtifacts(ctx context.Context, id string, a Artifacts) error {
	updates := map[string]interface{}{
		"meeting_ended":    true,
		"transcript_ready": a.TranscriptReady,
		"updated_at":       time.Now(),
	}
	if a.RecordingURL != nil {
		updates["recording_url"] = *a.RecordingURL
	}
	if len(a.Speakers) > 0 {
		updates["speakers"] = pq.StringArray(a.Speakers)
	}
	if a.Transcript != "" {
		updates["transcript"] = a.Transcript
	}
	return r.db.WithContext(ctx).Model(&domain.Meeting{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormMeetingRepository) Finalize(ctx context.Context, id string, f Finalization) error {
	meeting := domain.Meeting{ID: id, ActionItems: f.ActionItems}
	if meeting.ActionItems == nil {
		meeting.ActionItems = []domain.ActionItem{}
	}

	updates := map[string]interface{}{
		"summary":           f.Summary,
		"processed":         true,
		"processed_at":      f.At,
		"processing_failed": f.ProcessingFailed,
		"processing_error":  f.ProcessingError,
		"email_sent":        f.EmailSent,
		"email_error":       f.EmailError,
		"rag_processed":     f.RAGProcessed,
		"rag_error":         f.RAGError,
		"updated_at":        time.Now(),
	}
	if f.EmailSent {
		updates["email_sent_at"] = f.At
	}
	if f.RAGProcessed {
		updates["rag_processed_at"] = f.At
	}
	if len(f.Speakers) > 0 {
		updates["speakers"] = pq.StringArray(f.Speakers)
	}

	// Updating through the struct's model lets the json serializer encode
	// action_items.
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&meeting).Select("action_items").Updates(&meeting).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Meeting{}).Where("id = ?", id).Updates(updates).Error
	})
}

func (r *gormMeetingRepository) MarkRAGProcessed(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Meeting{}).Where("id = ?", id).Updates(map[string]interface{}{
		"rag_processed":    true,
		"rag_processed_at": at,
		"rag_error":        "",
	}).Error
}

func (r *gormMeetingRepository) MarkRAGFailed(ctx context.Context, id, reason string) error {
	return r.db.WithContext(ctx).Model(&domain.Meeting{}).Where("id = ?", id).Update("rag_error", reason).Error
}
