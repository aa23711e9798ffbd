package onboarding

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clearinvoice/onboarding-portal/onboarding-portal-backend/internal/auth"
)

// Handler handles HTTP requests for onboarding progress operations
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new onboarding handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers onboarding routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	onboarding := router.Group("/onboarding/:role")
	{
		onboarding.GET("/progress", h.getProgress)
		onboarding.POST("/steps/:stepId/complete", h.completeStep)
		onboarding.POST("/steps/:stepId/advance", h.advanceStep)
		onboarding.GET("/resume", h.getResume)
		onboarding.POST("/restart", h.restart)
		onboarding.GET("/autosave", h.getAutosaveStatus)
	}
}

// getProgress handles GET /api/v1/onboarding/:role/progress
func (h *Handler) getProgress(c *gin.Context) {
	userID := auth.UserID(c)
	role := Role(c.Param("role"))

	metrics, status, err := h.service.GetProgress(c.Request.Context(), userID, role)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"progress": metrics,
		"autosave": status,
	})
}

// completeStep handles POST /api/v1/onboarding/:role/steps/:stepId/complete
func (h *Handler) completeStep(c *gin.Context) {
	h.recordStep(c, true)
}

// advanceStep handles POST /api/v1/onboarding/:role/steps/:stepId/advance.
// It moves the current-step pointer without marking the step completed
// (the user navigated to it).
func (h *Handler) advanceStep(c *gin.Context) {
	h.recordStep(c, false)
}

func (h *Handler) recordStep(c *gin.Context, markComplete bool) {
	userID := auth.UserID(c)
	role := Role(c.Param("role"))
	stepID := c.Param("stepId")

	metrics, status, err := h.service.RecordStep(c.Request.Context(), userID, role, stepID, markComplete)
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": cfgErr.Error()})
			return
		}
		// The save failed; the returned state is the last confirmed one, so
		// the UI can show an inline error with a retry without losing the
		// progress indicator.
		c.JSON(http.StatusBadGateway, gin.H{
			"error":    err.Error(),
			"progress": metrics,
			"autosave": status,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"progress": metrics,
		"autosave": status,
	})
}

// getResume handles GET /api/v1/onboarding/:role/resume
func (h *Handler) getResume(c *gin.Context) {
	userID := auth.UserID(c)
	role := Role(c.Param("role"))

	session, err := h.service.AnalyzeResume(c.Request.Context(), userID, role)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if session == nil {
		c.JSON(http.StatusOK, gin.H{"resumable": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"resumable": true,
		"session":   session,
	})
}

// restart handles POST /api/v1/onboarding/:role/restart
func (h *Handler) restart(c *gin.Context) {
	userID := auth.UserID(c)
	role := Role(c.Param("role"))

	metrics, err := h.service.Restart(c.Request.Context(), userID, role)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"progress": metrics})
}

// getAutosaveStatus handles GET /api/v1/onboarding/:role/autosave
func (h *Handler) getAutosaveStatus(c *gin.Context) {
	userID := auth.UserID(c)
	role := Role(c.Param("role"))

	status, err := h.service.AutosaveStatus(c.Request.Context(), userID, role)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": cfgErr.Error()})
		return
	}

	h.logger.Error("Onboarding request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
