package router

import (
	userapp "github.com/ramadhanik/go-auth-service/internal/application"
	"github.com/ramadhanik/go-auth-service/internal/container"
	repouser "github.com/ramadhanik/go-auth-service/internal/domain/repository"
	pginfra "github.com/ramadhanik/go-auth-service/internal/infrastructure/postgres"
	handlers "github.com/ramadhanik/go-auth-service/internal/interface/http"
	"github.com/ramadhanik/go-auth-service/internal/router/modules"
)

type UserModuleDeps struct {
	Repo        repouser.UserRepository
	Service     *userapp.Service
	UserHandler *handlers.UserHandler
	AuthHandler *handlers.AuthHandler
}

func buildUserDeps() UserModuleDeps {
	repo := pginfra.NewUserRepository(container.GetPGPool())

	service := userapp.NewService(
		repo,
		container.GetJWT(),
		container.GetSessions(),
		container.GetGCS(),
		container.GetConfig().GCSBucket,
		container.GetLogger(),
		container.GetES(),
		container.GetConfig().ESUsersIndex,
	)

	userHandler := handlers.NewUserHandler(
		service,
		container.GetRedis(),
		container.GetLogger(),
		container.GetConfig(),
		container.GetRabbitPub(),
		container.GetAudit(),
	)

	authHandler := handlers.NewAuthHandler(
		service,
		container.GetRedis(),
		container.GetLogger(),
		container.GetConfig(),
		container.GetRabbitPub(),
		container.GetAudit(),
	)

	return UserModuleDeps{
		Repo:        repo,
		Service:     service,
		UserHandler: userHandler,
		AuthHandler: authHandler,
	}
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) {
	deps := buildUserDeps()
	r.Add(modules.NewAuthModule(deps.UserHandler, deps.AuthHandler, container.GetJWT()))
	r.Add(modules.NewProfileModule(deps.UserHandler, container.GetJWT()))
	r.Add(modules.NewDebugModule())
}
