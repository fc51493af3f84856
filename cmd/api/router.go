package api

import (
	"net/http"

	"notion-sync-backend/internal/auth/delivery"
	authUsecase "notion-sync-backend/internal/auth/usecase"
	notionDelivery "notion-sync-backend/internal/notion/delivery"
	syncDelivery "notion-sync-backend/internal/sync/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authUsecase authUsecase.AuthUsecase, authHandler *delivery.AuthHandler, notionHandler *notionDelivery.NotionHandler, syncHandler *syncDelivery.SyncHandler) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/session", authHandler.CreateSession)
			auth.DELETE("/session", authHandler.DeleteSession)
			auth.GET("/me", delivery.AuthMiddleware(authUsecase), authHandler.Me)
		}

		// Profile routes (protected)
		api.GET("/profile", delivery.AuthMiddleware(authUsecase), authHandler.GetProfile)
		api.PUT("/profile", delivery.AuthMiddleware(authUsecase), authHandler.UpdateProfile)

		// FCM routes (protected)
		fcm := api.Group("/fcm")
		fcm.Use(delivery.AuthMiddleware(authUsecase))
		{
			fcm.POST("/register", authHandler.RegisterFCMToken)
			fcm.DELETE("/:token", authHandler.UnregisterFCMToken)
		}

		// Notion connection and sync routes
		notion := api.Group("/notion")
		{
			notion.GET("/connect", delivery.AuthMiddleware(authUsecase), notionHandler.Connect)
			notion.GET("/callback", notionHandler.Callback)
			notion.GET("/connected", notionHandler.Connected)
			notion.POST("/disconnect", delivery.AuthMiddleware(authUsecase), notionHandler.Disconnect)
			notion.GET("/pages", delivery.AuthMiddleware(authUsecase), notionHandler.Pages)

			// Sync endpoints identify the user by email in the payload
			notion.POST("/sync", syncHandler.TriggerSync)
			notion.POST("/compare", syncHandler.Compare)
			notion.GET("/sync/status", syncHandler.GetStatus)
			notion.GET("/sync/history", delivery.AuthMiddleware(authUsecase), syncHandler.History)
		}
	}
}
