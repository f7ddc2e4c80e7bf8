package delivery

import (
	"net/http"

	"github.com/Chedidayeh/meeting-bot/internal/user/usecase"
	"github.com/Chedidayeh/meeting-bot/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

// UserHandler serves account settings, usage and device registration.
type UserHandler struct {
	userUsecase usecase.UserUsecase
}

func NewUserHandler(userUsecase usecase.UserUsecase) *UserHandler {
	return &UserHandler{
		userUsecase: userUsecase,
	}
}

type BotSettingsRequest struct {
	BotName  string `json:"botName"`
	BotImage string `json:"botImage"`
}

type RegisterDeviceRequest struct {
	Token      string `json:"token" binding:"required"`
	DeviceInfo string `json:"device_info"`
}

func respondError(c *gin.Context, err error) {
	c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
}

// GetUsage returns plan, counters and allowances
// GET /api/user/usage
func (h *UserHandler) GetUsage(c *gin.Context) {
	usage, err := h.userUsecase.GetUsage(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

// UpdateBotSettings sets the bot display name and avatar
// PUT /api/user/bot-settings
func (h *UserHandler) UpdateBotSettings(c *gin.Context) {
	var req BotSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.userUsecase.UpdateBotSettings(c.Request.Context(), c.GetString("userID"), req.BotName, req.BotImage); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DisconnectCalendar clears the Google Calendar grant
// POST /api/calendar/disconnect
func (h *UserHandler) DisconnectCalendar(c *gin.Context) {
	if err := h.userUsecase.DisconnectCalendar(c.Request.Context(), c.GetString("userID")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Calendar disconnected"})
}

// RegisterDevice stores an FCM token
// POST /api/fcm/register
func (h *UserHandler) RegisterDevice(c *gin.Context) {
	var req RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.userUsecase.RegisterDevice(c.Request.Context(), c.GetString("userID"), req.Token, req.DeviceInfo); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UnregisterDevice forgets an FCM token
// DELETE /api/fcm/:token
func (h *UserHandler) UnregisterDevice(c *gin.Context) {
	if err := h.userUsecase.UnregisterDevice(c.Request.Context(), c.GetString("userID"), c.Param("token")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
