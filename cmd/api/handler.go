package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	authDelivery "notion-sync-backend/internal/auth/delivery"
	authUsecase "notion-sync-backend/internal/auth/usecase"
	notionDelivery "notion-sync-backend/internal/notion/delivery"
	notionUsecasePkg "notion-sync-backend/internal/notion/usecase"
	syncDelivery "notion-sync-backend/internal/sync/delivery"
	syncUsecasePkg "notion-sync-backend/internal/sync/usecase"
	"notion-sync-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	authUsecase   authUsecase.AuthUsecase
	authHandler   *authDelivery.AuthHandler
	notionHandler *notionDelivery.NotionHandler
	syncHandler   *syncDelivery.SyncHandler
	config        *config.Config
}

func NewHandler(authUc authUsecase.AuthUsecase, notionUc notionUsecasePkg.NotionUsecase, syncUc syncUsecasePkg.SyncUsecase, cfg *config.Config) *Handler {
	return &Handler{
		authUsecase:   authUc,
		authHandler:   authDelivery.NewAuthHandler(authUc, cfg.SessionCookieSecure),
		notionHandler: notionDelivery.NewNotionHandler(notionUc, cfg.FrontendURL),
		syncHandler:   syncDelivery.NewSyncHandler(syncUc),
		config:        cfg,
	}
}

// Router builds the gin engine with CORS and every route registered
func (h *Handler) Router() *gin.Engine {
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.authUsecase, h.authHandler, h.notionHandler, h.syncHandler)
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (h *Handler) Start(ctx context.Context, addr string) error {
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    addr,
		Handler: h.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Println("Shutting down server...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
