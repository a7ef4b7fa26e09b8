package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"barter-service/internal/models"
	"barter-service/internal/service"
	"barter-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	matcherService *service.MatcherService
	chainService   *service.ChainService
}

// NewHandler creates a new HTTP handler
func NewHandler(matcherService *service.MatcherService, chainService *service.ChainService) *Handler {
	return &Handler{
		matcherService: matcherService,
		chainService:   chainService,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/matches/search", h.findMatches)
		v1.GET("/matches/direct/:offerId", h.findDirectMatches)
		v1.POST("/chains", h.proposeChain)
		v1.POST("/chains/validate", h.validateChain)
		v1.GET("/chains/:id", h.getChain)
		v1.POST("/chains/:id/accept", h.acceptParticipant)
		v1.POST("/chains/:id/reject", h.rejectParticipant)
		v1.POST("/chains/:id/cancel", h.cancelChain)
		v1.GET("/stats", h.getStats)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type findMatchesRequest struct {
	OfferID  int64                  `json:"offer_id" binding:"required"`
	Criteria service.SearchCriteria `json:"criteria"`
}

// findMatches handles full cycle search for an offer
func (h *Handler) findMatches(c *gin.Context) {
	var req findMatchesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.matcherService.FindMatches(c.Request.Context(), req.OfferID, req.Criteria)
	if err != nil {
		respondError(c, err, "Failed to search matches")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// findDirectMatches handles the 2-party fast path
func (h *Handler) findDirectMatches(c *gin.Context) {
	offerID, err := strconv.ParseInt(c.Param("offerId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offer ID"})
		return
	}

	var criteria service.SearchCriteria
	if tol := c.Query("tolerance"); tol != "" {
		criteria.ValueTolerancePct, _ = strconv.ParseFloat(tol, 64)
	}

	resp, err := h.matcherService.FindDirectMatches(c.Request.Context(), offerID, criteria)
	if err != nil {
		respondError(c, err, "Failed to search direct matches")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// proposeChain handles chain creation from a selected cycle
func (h *Handler) proposeChain(c *gin.Context) {
	var req service.ProposeChainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	chain, err := h.chainService.ProposeChain(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to propose chain")
		return
	}

	c.JSON(http.StatusCreated, chain)
}

// validateChain checks a cycle's invariants without persisting anything
func (h *Handler) validateChain(c *gin.Context) {
	var req service.ProposeChainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.chainService.ValidateCycle(c.Request.Context(), req.Cycle, req.TolerancePercent); err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "reason": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// getChain handles get chain by ID
func (h *Handler) getChain(c *gin.Context) {
	chainID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chain ID"})
		return
	}

	chain, participants, err := h.chainService.GetChain(c.Request.Context(), chainID)
	if err != nil {
		respondError(c, err, "Failed to get chain")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"chain":        chain,
		"participants": participants,
	})
}

type respondRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// acceptParticipant handles a participant accepting their position
func (h *Handler) acceptParticipant(c *gin.Context) {
	h.respond(c, h.chainService.AcceptParticipant)
}

// rejectParticipant handles a participant rejecting their position
func (h *Handler) rejectParticipant(c *gin.Context) {
	h.respond(c, h.chainService.RejectParticipant)
}

func (h *Handler) respond(c *gin.Context, action func(ctx context.Context, chainID, userID int64) (*models.BarterChain, error)) {
	chainID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chain ID"})
		return
	}

	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	chain, err := action(c.Request.Context(), chainID, req.UserID)
	if err != nil {
		respondError(c, err, "Failed to record response")
		return
	}

	c.JSON(http.StatusOK, chain)
}

// cancelChain handles creator withdrawal
func (h *Handler) cancelChain(c *gin.Context) {
	chainID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chain ID"})
		return
	}

	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.chainService.CancelChain(c.Request.Context(), chainID, req.UserID); err != nil {
		respondError(c, err, "Failed to cancel chain")
		return
	}

	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

// getStats handles aggregate barter statistics
func (h *Handler) getStats(c *gin.Context) {
	stats, err := h.matcherService.GetStats(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to get stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// respondError maps domain errors onto HTTP statuses
func respondError(c *gin.Context, err error, msg string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrStaleItem):
		status = http.StatusConflict
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrChainInvariant),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrAlreadyResponded):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrChainNotFound),
		errors.Is(err, models.ErrOfferNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrNotParticipant):
		status = http.StatusForbidden
	}

	c.JSON(status, gin.H{
		"error":   msg,
		"details": err.Error(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
