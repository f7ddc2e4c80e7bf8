package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Chedidayeh/meeting-bot/internal/user/domain"
	"github.com/Chedidayeh/meeting-bot/internal/user/usecase"
	"github.com/Chedidayeh/meeting-bot/pkg/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsecase struct {
	usecase.UserUsecase
	botName string
}

func (s *stubUsecase) GetUsage(_ context.Context, userID string) (*usecase.Usage, error) {
	if userID != "u1" {
		return nil, fmt.Errorf("user %s: %w", userID, apperrors.ErrNotFound)
	}
	return &usecase.Usage{Plan: domain.PlanPro, Limits: usecase.PlanLimitsFor(domain.PlanPro)}, nil
}

func (s *stubUsecase) UpdateBotSettings(_ context.Context, _, botName, _ string) error {
	if botName == "bad" {
		return fmt.Errorf("bad name: %w", apperrors.ErrValidation)
	}
	s.botName = botName
	return nil
}

func router(h *UserHandler, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("userID", userID) })
	r.GET("/api/user/usage", h.GetUsage)
	r.PUT("/api/user/bot-settings", h.UpdateBotSettings)
	return r
}

func TestGetUsage(t *testing.T) {
	h := NewUserHandler(&stubUsecase{})

	w := httptest.NewRecorder()
	router(h, "u1").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/user/usage", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var usage usecase.Usage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &usage))
	assert.Equal(t, 30, usage.Limits.MeetingsPerMonth)

	w = httptest.NewRecorder()
	router(h, "ghost").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/user/usage", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateBotSettings(t *testing.T) {
	stub := &stubUsecase{}
	r := router(NewUserHandler(stub), "u1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/user/bot-settings", strings.NewReader(`{"botName":"Notes"}`)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Notes", stub.botName)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/user/bot-settings", strings.NewReader(`{"botName":"bad"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
