package settings

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rc-portal/allocation-portal-backend/internal/auth"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/settings", h.Get)
	rg.PUT("/settings", h.Update)
}

func (h *Handler) Get(c *gin.Context) {
	claims := auth.MustClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	settings, err := h.service.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("Failed to load user settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "something went wrong; contact an administrator"})
		return
	}
	c.JSON(http.StatusOK, settings)
}

type updatePayload struct {
	Timezone             *string `json:"timezone"`
	Phone                *string `json:"phone"`
	NotifyOnStatusChange *bool   `json:"notify_on_status_change"`
	NotifyOnNewRequest   *bool   `json:"notify_on_new_request"`
}

func (h *Handler) Update(c *gin.Context) {
	claims := auth.MustClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var payload updatePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	settings, err := h.service.Update(c.Request.Context(), claims.UserID, UpdateInput{
		Timezone:             payload.Timezone,
		Phone:                payload.Phone,
		NotifyOnStatusChange: payload.NotifyOnStatusChange,
		NotifyOnNewRequest:   payload.NotifyOnNewRequest,
	})
	if err != nil {
		h.logger.Error("Failed to update user settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "something went wrong; contact an administrator"})
		return
	}
	c.JSON(http.StatusOK, settings)
}
