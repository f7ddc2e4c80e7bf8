package delivery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Chedidayeh/meeting-bot/internal/webhook/domain"
	"github.com/Chedidayeh/meeting-bot/internal/webhook/usecase"
	"github.com/Chedidayeh/meeting-bot/pkg/apperrors"
	"github.com/Chedidayeh/meeting-bot/pkg/meetingbaas"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPipeline struct {
	events []domain.Event
	err    error
}

func (s *stubPipeline) Handle(_ context.Context, evt domain.Event) (*usecase.Outcome, error) {
	s.events = append(s.events, evt)
	if s.err != nil {
		return nil, s.err
	}
	return &usecase.Outcome{Status: usecase.StatusProcessed, MeetingID: "m1"}, nil
}

const payload = `{"event":"bot.completed","data":{"bot_id":"bot-1","speakers":[{"id":1,"name":"Ann"}]},"extra":{"meeting_id":"m1","user_id":"u1"}}`

func post(h *WebhookHandler, body string, headers map[string]string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/webhooks/meetingbaas", h.MeetingBaas)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/meetingbaas", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookDecodesAndProcesses(t *testing.T) {
	p := &stubPipeline{}
	w := post(NewWebhookHandler(p, "", zerolog.Nop()), payload, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"processed"`)
	require.Len(t, p.events, 1)
	assert.Equal(t, "bot-1", p.events[0].Data.BotID)
	assert.Equal(t, domain.Names{"Ann"}, p.events[0].Data.Speakers)
	assert.Equal(t, "m1", p.events[0].Correlation().MeetingID)
}

func TestWebhookSignature(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong", map[string]string{"x-meeting-baas-signature": meetingbaas.Sign("other", []byte(payload))}, http.StatusUnauthorized},
		{"primary header", map[string]string{"x-meeting-baas-signature": meetingbaas.Sign("s3cret", []byte(payload))}, http.StatusOK},
		{"fallback header", map[string]string{"x-signature": meetingbaas.Sign("s3cret", []byte(payload))}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &stubPipeline{}
			w := post(NewWebhookHandler(p, "s3cret", zerolog.Nop()), payload, tt.headers)
			assert.Equal(t, tt.want, w.Code)
			if tt.want != http.StatusOK {
				assert.Empty(t, p.events)
			}
		})
	}
}

func TestWebhookErrors(t *testing.T) {
	w := post(NewWebhookHandler(&stubPipeline{}, "", zerolog.Nop()), "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	p := &stubPipeline{err: fmt.Errorf("meeting for bot: %w", apperrors.ErrNotFound)}
	w = post(NewWebhookHandler(p, "", zerolog.Nop()), payload, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	p = &stubPipeline{err: fmt.Errorf("finalize meeting: db down")}
	w = post(NewWebhookHandler(p, "", zerolog.Nop()), payload, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
