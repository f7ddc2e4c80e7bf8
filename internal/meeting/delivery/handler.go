package delivery

import (
	"context"
	"net/http"
	"strconv"
	"time"

	dispatchusecase "github.com/Chedidayeh/meeting-bot/internal/dispatch/usecase"
	"github.com/Chedidayeh/meeting-bot/internal/meeting/domain"
	"github.com/Chedidayeh/meeting-bot/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

const (
	upcomingLimit   = 10
	defaultPageSize = 10
	maxPageSize     = 50
)

type MeetingReader interface {
	FindByID(ctx context.Context, id string) (*domain.Meeting, error)
	ListUpcoming(ctx context.Context, userID string, now time.Time, limit int) ([]*domain.Meeting, error)
	ListPast(ctx context.Context, userID string, now time.Time, limit, offset int) ([]*domain.Meeting, int64, error)
	SetBotScheduled(ctx context.Context, id string, scheduled bool) (bool, error)
}

type BotSender interface {
	SendBot(ctx context.Context, userID, meetingID string, now time.Time) (*dispatchusecase.Result, error)
}

// MeetingHandler serves the dashboard meeting endpoints.
type MeetingHandler struct {
	meetings MeetingReader
	bots     BotSender
	now      func() time.Time
}

func NewMeetingHandler(meetings MeetingReader, bots BotSender) *MeetingHandler {
	return &MeetingHandler{
		meetings: meetings,
		bots:     bots,
		now:      time.Now,
	}
}

// MeetingResponse adds the derived dashboard status to a meeting.
type MeetingResponse struct {
	*domain.Meeting
	Status string `json:"status"`
}

func toResponse(meetings []*domain.Meeting) []MeetingResponse {
	out := make([]MeetingResponse, 0, len(meetings))
	for _, m := range meetings {
		out = append(out, MeetingResponse{Meeting: m, Status: m.Status()})
	}
	return out
}

type BotToggleRequest struct {
	BotScheduled *bool `json:"botScheduled" binding:"required"`
}

func respondError(c *gin.Context, err error) {
	c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
}

func (h *MeetingHandler) ownedMeeting(c *gin.Context) (*domain.Meeting, bool) {
	meeting, err := h.meetings.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if meeting == nil || meeting.UserID != c.GetString("userID") {
		c.JSON(http.StatusNotFound, gin.H{"error": "Meeting not found"})
		return nil, false
	}
	return meeting, true
}

// GetUpcoming lists the next calendar meetings
// GET /api/meetings/upcoming
func (h *MeetingHandler) GetUpcoming(c *gin.Context) {
	meetings, err := h.meetings.ListUpcoming(c.Request.Context(), c.GetString("userID"), h.now(), upcomingLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meetings": toResponse(meetings)})
}

// GetPast lists finished meetings, newest first
// GET /api/meetings/past?page=1&limit=10
func (h *MeetingHandler) GetPast(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	meetings, total, err := h.meetings.ListPast(c.Request.Context(), c.GetString("userID"), h.now(), limit, (page-1)*limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"meetings": toResponse(meetings),
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

// GetMeeting returns one meeting with its summary and transcript
// GET /api/meetings/:id
func (h *MeetingHandler) GetMeeting(c *gin.Context) {
	meeting, ok := h.ownedMeeting(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, MeetingResponse{Meeting: meeting, Status: meeting.Status()})
}

// SendBot dispatches a recording bot now
// POST /api/meetings/:id/send-bot
func (h *MeetingHandler) SendBot(c *gin.Context) {
	result, err := h.bots.SendBot(c.Request.Context(), c.GetString("userID"), c.Param("id"), h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	if result.Denied {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": result.Reason})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "botId": result.BotID})
}

// ToggleBot records whether the user wants the meeting recorded
// PATCH /api/meetings/:id/bot-toggle
func (h *MeetingHandler) ToggleBot(c *gin.Context) {
	var req BotToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meeting, ok := h.ownedMeeting(c)
	if !ok {
		return
	}

	updated, err := h.meetings.SetBotScheduled(c.Request.Context(), meeting.ID, *req.BotScheduled)
	if err != nil {
		respondError(c, err)
		return
	}
	if !updated {
		c.JSON(http.StatusConflict, gin.H{"error": "Bot already sent"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "botScheduled": *req.BotScheduled})
}
