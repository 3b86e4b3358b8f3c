package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ramadhanik/go-auth-service/internal/infrastructure/session"
	"github.com/ramadhanik/go-auth-service/pkg/helpers"
	"github.com/ramadhanik/go-auth-service/pkg/response"
)

// Auth validates the access token cookie and requires a live Redis session
// whose sid matches the token. It sets userID, userName, and userEmail in
// the Gin context on success.
func Auth(sessions *session.Store, jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie("access_token")
		if err != nil || token == "" {
			response.Error[any](c, http.StatusUnauthorized, "missing access token", nil)
			c.Abort()
			return
		}
		claims, err := jwt.ParseAccessToken(token)
		if err != nil {
			response.Error[any](c, http.StatusUnauthorized, "invalid access token", nil)
			c.Abort()
			return
		}

		rec, err := sessions.Get(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error[any](c, http.StatusUnauthorized, "session not found", nil)
			c.Abort()
			return
		}
		if rec.SID != claims.SessionID {
			response.Error[any](c, http.StatusUnauthorized, "session superseded", nil)
			c.Abort()
			return
		}

		c.Set("userID", rec.UserID)
		c.Set("userName", rec.Name)
		c.Set("userEmail", rec.Email)
		c.Next()
	}
}
