package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ramadhanik/go-auth-service/internal/container"
	handlers "github.com/ramadhanik/go-auth-service/internal/interface/http"
	"github.com/ramadhanik/go-auth-service/internal/interface/middleware"
	"github.com/ramadhanik/go-auth-service/pkg/helpers"
)

// AuthModule wires the core auth surface:
// Public: POST /auth/signup, POST /auth/login, POST /auth/refresh,
// GET /auth/logout, POST /auth/verify/confirm, POST /auth/reset/init,
// POST /auth/reset/confirm
// Protected: GET /auth/me, POST /auth/verify/init
type AuthModule struct {
	Users *handlers.UserHandler
	Auth  *handlers.AuthHandler
	JWT   *helpers.JWTManager
}

func NewAuthModule(users *handlers.UserHandler, auth *handlers.AuthHandler, jwt *helpers.JWTManager) *AuthModule {
	return &AuthModule{Users: users, Auth: auth, JWT: jwt}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	rdb := container.GetRedis()

	signupLimiter := middleware.RateLimit(rdb, 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	loginLimiter := middleware.RateLimit(rdb, 10, time.Minute, middleware.KeyByIP(), nil)
	refreshLimiter := middleware.RateLimit(rdb, 60, time.Minute, middleware.KeyByIP(), nil)
	verifyConfirmLimiter := middleware.RateLimit(rdb, 30, time.Minute, middleware.KeyByIPAndPath(), nil)
	resetInitLimiter := middleware.RateLimit(rdb, 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	resetConfirmLimiter := middleware.RateLimit(rdb, 30, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/auth/signup", signupLimiter, m.Users.Signup)
	rg.POST("/auth/login", loginLimiter, m.Users.Login)
	rg.POST("/auth/refresh", refreshLimiter, m.Users.Refresh)
	rg.GET("/auth/logout", m.Users.Logout)

	rg.POST("/auth/verify/confirm", verifyConfirmLimiter, m.Auth.VerifyConfirm)
	rg.POST("/auth/reset/init", resetInitLimiter, m.Auth.ResetInit)
	rg.POST("/auth/reset/confirm", resetConfirmLimiter, m.Auth.ResetConfirm)

	// Protected
	auth := rg.Group("/")
	auth.Use(middleware.Auth(container.GetSessions(), m.JWT))
	auth.Use(middleware.RateLimit(rdb, 120, time.Minute, middleware.KeyByUserID(), nil))
	{
		auth.GET("/auth/me", m.Users.Me)
		auth.POST("/auth/verify/init", m.Auth.VerifyInit)
	}
}
