package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ramadhanik/go-auth-service/internal/container"
	handlers "github.com/ramadhanik/go-auth-service/internal/interface/http"
	"github.com/ramadhanik/go-auth-service/internal/interface/middleware"
	"github.com/ramadhanik/go-auth-service/pkg/helpers"
)

// ProfileModule wires the protected profile surface:
// GET /profile, PUT /profile, POST /profile/avatar, GET /users/search
type ProfileModule struct {
	Handler *handlers.UserHandler
	JWT     *helpers.JWTManager
}

func NewProfileModule(h *handlers.UserHandler, jwt *helpers.JWTManager) *ProfileModule {
	return &ProfileModule{Handler: h, JWT: jwt}
}

func (m *ProfileModule) Register(rg *gin.RouterGroup) {
	rdb := container.GetRedis()

	auth := rg.Group("/")
	auth.Use(middleware.Auth(container.GetSessions(), m.JWT))
	auth.Use(
		middleware.RateLimit(rdb, 300, time.Minute, middleware.KeyByIP(), nil),
		middleware.RateLimit(rdb, 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		auth.GET("/profile", m.Handler.Me)
		auth.PUT("/profile", m.Handler.UpdateProfile)
		auth.POST("/profile/avatar", m.Handler.UploadAvatar)
		auth.GET("/users/search", m.Handler.Search)
	}
}
