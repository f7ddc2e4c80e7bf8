package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	meetingdomain "github.com/Chedidayeh/meeting-bot/internal/meeting/domain"
	"github.com/Chedidayeh/meeting-bot/internal/rag/usecase"
	userusecase "github.com/Chedidayeh/meeting-bot/internal/user/usecase"
	"github.com/Chedidayeh/meeting-bot/pkg/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChat struct {
	denied      bool
	historyFor  []*string
	processed   bool
	lastMeeting string
}

func (s *stubChat) result() *usecase.ChatResult {
	if s.denied {
		return &usecase.ChatResult{Denied: true, Quota: userusecase.Decision{Reason: "Daily chat limit reached (30/30)", Used: 30, Limit: 30}}
	}
	return &usecase.ChatResult{
		Answer: &usecase.Answer{Answer: "42", MeetingCount: 2, Sources: []usecase.Source{{MeetingID: "m1"}, {MeetingID: "m2"}}},
		Quota:  userusecase.Decision{Allowed: true, Used: 1, Limit: 30},
	}
}

func (s *stubChat) AskMeeting(_ context.Context, _, meetingID, _ string) (*usecase.ChatResult, error) {
	if meetingID == "foreign" {
		return nil, fmt.Errorf("meeting %s: %w", meetingID, apperrors.ErrNotFound)
	}
	s.lastMeeting = meetingID
	return s.result(), nil
}

func (s *stubChat) AskAll(_ context.Context, _, _ string) (*usecase.ChatResult, error) {
	return s.result(), nil
}

func (s *stubChat) History(_ context.Context, _ string, meetingID *string) ([]*meetingdomain.ChatMessage, error) {
	s.historyFor = append(s.historyFor, meetingID)
	return nil, nil
}

func (s *stubChat) ProcessMeeting(_ context.Context, _, _ string) (*usecase.ProcessResult, error) {
	if s.processed {
		return &usecase.ProcessResult{AlreadyProcessed: true}, nil
	}
	return &usecase.ProcessResult{Chunks: 4}, nil
}

func newRouter(h *RAGHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("userID", "u1") })
	r.POST("/api/rag/chat/:meetingId", h.ChatMeeting)
	r.POST("/api/rag/chat-all", h.ChatAll)
	r.POST("/api/rag/process/:meetingId", h.ProcessMeeting)
	r.GET("/api/chat/global", h.GetGlobalHistory)
	r.GET("/api/chat/:meetingId", h.GetHistory)
	return r
}

func send(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestChatAll(t *testing.T) {
	r := newRouter(NewRAGHandler(&stubChat{}))

	w := send(r, http.MethodPost, "/api/rag/chat-all", `{"question":"what did we decide?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Answer       string           `json:"answer"`
		MeetingCount int              `json:"meetingCount"`
		Sources      []usecase.Source `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "42", body.Answer)
	assert.Equal(t, 2, body.MeetingCount)
	assert.Len(t, body.Sources, 2)

	assert.Equal(t, http.StatusBadRequest, send(r, http.MethodPost, "/api/rag/chat-all", `{}`).Code)
}

func TestChatQuotaDeniedIs429(t *testing.T) {
	r := newRouter(NewRAGHandler(&stubChat{denied: true}))
	w := send(r, http.MethodPost, "/api/rag/chat/m1", `{"question":"hi"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Daily chat limit reached (30/30)")
}

func TestChatMeetingNotOwned(t *testing.T) {
	chat := &stubChat{}
	r := newRouter(NewRAGHandler(chat))

	assert.Equal(t, http.StatusNotFound, send(r, http.MethodPost, "/api/rag/chat/foreign", `{"question":"hi"}`).Code)
	assert.Equal(t, http.StatusOK, send(r, http.MethodPost, "/api/rag/chat/m7", `{"question":"hi"}`).Code)
	assert.Equal(t, "m7", chat.lastMeeting)
}

func TestHistoryRoutes(t *testing.T) {
	chat := &stubChat{}
	r := newRouter(NewRAGHandler(chat))

	w := send(r, http.MethodGet, "/api/chat/global", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"messages":[]}`, w.Body.String())

	send(r, http.MethodGet, "/api/chat/m1", "")
	require.Len(t, chat.historyFor, 2)
	assert.Nil(t, chat.historyFor[0])
	require.NotNil(t, chat.historyFor[1])
	assert.Equal(t, "m1", *chat.historyFor[1])
}

func TestProcessMeeting(t *testing.T) {
	w := send(newRouter(NewRAGHandler(&stubChat{})), http.MethodPost, "/api/rag/process/m1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"chunks":4`)

	w = send(newRouter(NewRAGHandler(&stubChat{processed: true})), http.MethodPost, "/api/rag/process/m1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "already processed")
}
