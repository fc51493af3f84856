package delivery

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"notion-sync-backend/internal/sync/domain"
	"notion-sync-backend/internal/sync/dto"
	"notion-sync-backend/internal/sync/usecase"

	"github.com/gin-gonic/gin"
)

// SyncHandler handles sync-related HTTP requests
type SyncHandler struct {
	syncUsecase usecase.SyncUsecase
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(syncUsecase usecase.SyncUsecase) *SyncHandler {
	return &SyncHandler{
		syncUsecase: syncUsecase,
	}
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrStatusNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotConnected):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNoPageAccess):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrSyncInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("[Sync] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

func bindRequest(c *gin.Context) (domain.SyncRequest, bool) {
	var req domain.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body: " + err.Error()})
		return req, false
	}
	return req, true
}

// TriggerSync accepts a sync and returns before it runs
// POST /api/notion/sync
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	req, ok := bindRequest(c)
	if !ok {
		return
	}

	info, err := h.syncUsecase.TriggerSync(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Sync started. Poll the sync status for progress.",
		"info":    info,
	})
}

// Compare reports the assignments missing from Notion
// POST /api/notion/compare
func (h *SyncHandler) Compare(c *gin.Context) {
	req, ok := bindRequest(c)
	if !ok {
		return
	}

	comparison, err := h.syncUsecase.Compare(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"comparison": comparison,
	})
}

// GetStatus returns the latest sync status with its derived message
// GET /api/notion/sync/status?email=...
func (h *SyncHandler) GetStatus(c *gin.Context) {
	status, err := h.syncUsecase.GetStatus(c.Request.Context(), c.Query("email"))
	if err != nil {
		respondError(c, err)
		return
	}

	view, err := dto.StatusView(*status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"syncStatus": view,
	})
}

// History lists the caller's recent sync runs
// GET /api/notion/sync/history?limit=20
func (h *SyncHandler) History(c *gin.Context) {
	userID := c.GetString("userID")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "limit must be a positive integer",
		})
		return
	}

	runs, err := h.syncUsecase.History(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]dto.SyncRunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, dto.NewSyncRunResponse(run))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"runs":    out,
	})
}
