package api

import (
	"net/http"
	"time"

	meetingDelivery "github.com/Chedidayeh/meeting-bot/internal/meeting/delivery"
	ragDelivery "github.com/Chedidayeh/meeting-bot/internal/rag/delivery"
	userDelivery "github.com/Chedidayeh/meeting-bot/internal/user/delivery"
	webhookDelivery "github.com/Chedidayeh/meeting-bot/internal/webhook/delivery"
	"github.com/Chedidayeh/meeting-bot/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Handler owns the HTTP surface of the service.
type Handler struct {
	meetingHandler *meetingDelivery.MeetingHandler
	ragHandler     *ragDelivery.RAGHandler
	userHandler    *userDelivery.UserHandler
	webhookHandler *webhookDelivery.WebhookHandler
	metrics        http.Handler
	config         *config.Config
	log            zerolog.Logger
}

func NewHandler(
	meetingHandler *meetingDelivery.MeetingHandler,
	ragHandler *ragDelivery.RAGHandler,
	userHandler *userDelivery.UserHandler,
	webhookHandler *webhookDelivery.WebhookHandler,
	metrics http.Handler,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		meetingHandler: meetingHandler,
		ragHandler:     ragHandler,
		userHandler:    userHandler,
		webhookHandler: webhookHandler,
		metrics:        metrics,
		config:         cfg,
		log:            log.With().Str("component", "http").Logger(),
	}
}

// Engine builds the gin engine with middleware and routes.
func (h *Handler) Engine() *gin.Engine {
	if h.config.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(h.log))
	r.Use(CORS())

	SetupRoutes(r, h)
	return r
}

// Server wraps the engine in an http.Server listening on addr.
func (h *Handler) Server(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
