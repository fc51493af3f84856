package delivery

import (
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"notion-sync-backend/internal/notion/usecase"
	"notion-sync-backend/pkg/notion"

	"github.com/gin-gonic/gin"
)

// NotionHandler handles the workspace connection endpoints
type NotionHandler struct {
	notionUsecase usecase.NotionUsecase
	frontendURL   string
}

// NewNotionHandler creates a new NotionHandler
func NewNotionHandler(notionUsecase usecase.NotionUsecase, frontendURL string) *NotionHandler {
	return &NotionHandler{
		notionUsecase: notionUsecase,
		frontendURL:   strings.TrimRight(frontendURL, "/"),
	}
}

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrMissingEmail):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, usecase.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, usecase.ErrNotConnected), notion.IsUnauthorized(err):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Notion is not connected or the token was revoked"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
	}
}

// Connect returns the Notion consent URL for the authenticated user
// GET /api/notion/connect
func (h *NotionHandler) Connect(c *gin.Context) {
	authURL, err := h.notionUsecase.AuthURL(c.GetString("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "url": authURL})
}

// Callback completes the OAuth flow and redirects back to the frontend
// GET /api/notion/callback?code=...&state=...
func (h *NotionHandler) Callback(c *gin.Context) {
	query := url.Values{}

	if denied := c.Query("error"); denied != "" {
		query.Set("notion", "error")
		query.Set("reason", denied)
	} else if err := h.notionUsecase.HandleCallback(c.Request.Context(), c.Query("code"), c.Query("state")); err != nil {
		log.Printf("[Notion] OAuth callback failed: %v", err)
		query.Set("notion", "error")
		if errors.Is(err, usecase.ErrInvalidState) {
			query.Set("reason", "invalid_state")
		} else {
			query.Set("reason", "exchange_failed")
		}
	} else {
		query.Set("notion", "connected")
	}

	c.Redirect(http.StatusFound, h.frontendURL+"/?"+query.Encode())
}

// Connected reports whether the user has a stored Notion token
// GET /api/notion/connected?email=...
func (h *NotionHandler) Connected(c *gin.Context) {
	connected, err := h.notionUsecase.IsConnected(c.Request.Context(), c.Query("email"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "connected": connected})
}

// Disconnect clears the caller's stored Notion token
// POST /api/notion/disconnect
func (h *NotionHandler) Disconnect(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	// Only the signed-in user may disconnect their own workspace.
	if !strings.EqualFold(strings.TrimSpace(req.Email), strings.TrimSpace(c.GetString("email"))) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "email does not match the signed-in user"})
		return
	}

	if err := h.notionUsecase.Disconnect(c.Request.Context(), c.GetString("email")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "connected": false})
}

// Pages refreshes and returns the pages shared with the integration
// GET /api/notion/pages
func (h *NotionHandler) Pages(c *gin.Context) {
	pages, err := h.notionUsecase.RefreshPages(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "pages": pages})
}
