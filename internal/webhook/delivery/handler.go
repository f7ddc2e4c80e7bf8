package delivery

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/Chedidayeh/meeting-bot/internal/webhook/domain"
	"github.com/Chedidayeh/meeting-bot/internal/webhook/usecase"
	"github.com/Chedidayeh/meeting-bot/pkg/apperrors"
	"github.com/Chedidayeh/meeting-bot/pkg/meetingbaas"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 10 << 20

type EventHandler interface {
	Handle(ctx context.Context, evt domain.Event) (*usecase.Outcome, error)
}

// WebhookHandler receives recording-bot deliveries.
type WebhookHandler struct {
	pipeline EventHandler
	secret   string
	log      zerolog.Logger
}

func NewWebhookHandler(pipeline EventHandler, secret string, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		pipeline: pipeline,
		secret:   secret,
		log:      log.With().Str("component", "webhook_handler").Logger(),
	}
}

func signatureHeader(c *gin.Context) string {
	if sig := c.GetHeader("x-meeting-baas-signature"); sig != "" {
		return sig
	}
	return c.GetHeader("x-signature")
}

// MeetingBaas handles a bot lifecycle event
// POST /api/webhooks/meetingbaas
func (h *WebhookHandler) MeetingBaas(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	if h.secret != "" && !meetingbaas.VerifySignature(h.secret, body, signatureHeader(c)) {
		h.log.Warn().Str("remote", c.ClientIP()).Msg("Rejected webhook with invalid signature")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var evt domain.Event
	if err := json.Unmarshal(body, &evt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	h.log.Info().Str("event", evt.Type()).Str("bot_id", evt.Data.BotID).Msg("Webhook received")

	// The bot service may drop the connection before a long run finishes;
	// processing continues regardless.
	ctx := context.WithoutCancel(c.Request.Context())
	out, err := h.pipeline.Handle(ctx, evt)
	if err != nil {
		status := apperrors.HTTPStatus(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Str("bot_id", evt.Data.BotID).Msg("Webhook processing failed")
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "status": out.Status, "result": out})
}
