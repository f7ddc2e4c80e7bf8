package delivery

import (
	"context"
	"net/http"

	meetingdomain "github.com/Chedidayeh/meeting-bot/internal/meeting/domain"
	"github.com/Chedidayeh/meeting-bot/internal/rag/usecase"
	"github.com/Chedidayeh/meeting-bot/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

type ChatService interface {
	AskMeeting(ctx context.Context, userID, meetingID, question string) (*usecase.ChatResult, error)
	AskAll(ctx context.Context, userID, question string) (*usecase.ChatResult, error)
	History(ctx context.Context, userID string, meetingID *string) ([]*meetingdomain.ChatMessage, error)
	ProcessMeeting(ctx context.Context, userID, meetingID string) (*usecase.ProcessResult, error)
}

// RAGHandler serves questions over meeting transcripts and chat history.
type RAGHandler struct {
	chat ChatService
}

func NewRAGHandler(chat ChatService) *RAGHandler {
	return &RAGHandler{chat: chat}
}

type ChatRequest struct {
	Question string `json:"question" binding:"required"`
}

func respondError(c *gin.Context, err error) {
	c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
}

func respondChat(c *gin.Context, res *usecase.ChatResult) {
	if res.Denied {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": res.Quota.Reason,
			"used":  res.Quota.Used,
			"limit": res.Quota.Limit,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"answer":       res.Answer.Answer,
		"sources":      res.Answer.Sources,
		"meetingCount": res.Answer.MeetingCount,
		"usage":        res.Quota,
	})
}

// ChatMeeting answers a question about one meeting
// POST /api/rag/chat/:meetingId
func (h *RAGHandler) ChatMeeting(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	res, err := h.chat.AskMeeting(c.Request.Context(), c.GetString("userID"), c.Param("meetingId"), req.Question)
	if err != nil {
		respondError(c, err)
		return
	}
	respondChat(c, res)
}

// ChatAll answers a question across every meeting of the user
// POST /api/rag/chat-all
func (h *RAGHandler) ChatAll(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	res, err := h.chat.AskAll(c.Request.Context(), c.GetString("userID"), req.Question)
	if err != nil {
		respondError(c, err)
		return
	}
	respondChat(c, res)
}

// ProcessMeeting indexes a finished meeting for questions
// POST /api/rag/process/:meetingId
func (h *RAGHandler) ProcessMeeting(c *gin.Context) {
	res, err := h.chat.ProcessMeeting(c.Request.Context(), c.GetString("userID"), c.Param("meetingId"))
	if err != nil {
		respondError(c, err)
		return
	}
	if res.AlreadyProcessed {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Meeting already processed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "chunks": res.Chunks})
}

// GetHistory lists the conversation about one meeting
// GET /api/chat/:meetingId
func (h *RAGHandler) GetHistory(c *gin.Context) {
	meetingID := c.Param("meetingId")
	h.history(c, &meetingID)
}

// GetGlobalHistory lists the all-meetings conversation
// GET /api/chat/global
func (h *RAGHandler) GetGlobalHistory(c *gin.Context) {
	h.history(c, nil)
}

func (h *RAGHandler) history(c *gin.Context, meetingID *string) {
	messages, err := h.chat.History(c.Request.Context(), c.GetString("userID"), meetingID)
	if err != nil {
		respondError(c, err)
		return
	}
	if messages == nil {
		messages = []*meetingdomain.ChatMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}
