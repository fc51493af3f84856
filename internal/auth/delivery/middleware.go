package delivery

import (
	"net/http"
	"strings"

	"notion-sync-backend/internal/auth/usecase"
	"notion-sync-backend/pkg/firebase"

	"github.com/gin-gonic/gin"
)

// SessionCookieName is the cookie set by POST /api/auth/session
const SessionCookieName = "session"

// AuthMiddleware accepts a Firebase ID token as a bearer token, or a session cookie.
func AuthMiddleware(authUsecase usecase.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			identity *firebase.Identity
			err      error
		)

		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid authorization header format"})
				c.Abort()
				return
			}
			identity, err = authUsecase.ValidateToken(c.Request.Context(), parts[1])
		} else if cookie, cookieErr := c.Cookie(SessionCookieName); cookieErr == nil && cookie != "" {
			identity, err = authUsecase.ValidateSession(c.Request.Context(), cookie)
		} else {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authorization header or session cookie required"})
			c.Abort()
			return
		}

		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("userID", identity.UID)
		c.Set("email", identity.Email)
		c.Next()
	}
}
