package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ramadhanik/go-auth-service/config"
	userapp "github.com/ramadhanik/go-auth-service/internal/application"
	"github.com/ramadhanik/go-auth-service/internal/infrastructure/postgres"
	"github.com/ramadhanik/go-auth-service/pkg/helpers"
	"github.com/ramadhanik/go-auth-service/pkg/mailer"
	"github.com/ramadhanik/go-auth-service/pkg/response"
	"github.com/ramadhanik/go-auth-service/pkg/validation"
)

// AuthHandler serves the email verification and password reset flows.
type AuthHandler struct {
	Svc    *userapp.Service
	RDB    *redis.Client
	Logger *logrus.Logger
	Cfg    *config.Config
	Pub    *helpers.RabbitPublisher
	Audit  *postgres.AuditRecorder
}

func NewAuthHandler(svc *userapp.Service, rdb *redis.Client, logger *logrus.Logger, cfg *config.Config, pub *helpers.RabbitPublisher, audit *postgres.AuditRecorder) *AuthHandler {
	return &AuthHandler{Svc: svc, RDB: rdb, Logger: logger, Cfg: cfg, Pub: pub, Audit: audit}
}

func (h *AuthHandler) audit(c *gin.Context, userID, email, action string, metadata map[string]any) {
	if h.Audit == nil {
		return
	}
	h.Audit.Record(c.Request.Context(), postgres.AuditEvent{
		UserID:    userID,
		Email:     email,
		Action:    action,
		IP:        clientIP(c),
		UserAgent: c.GetHeader("User-Agent"),
		Metadata:  metadata,
	})
}

func (h *AuthHandler) enqueueEmail(c *gin.Context, job mailer.EmailJob) {
	if h.Pub == nil || h.Cfg == nil || !h.Cfg.MailSendEnabled {
		return
	}
	if err := h.Pub.PublishJSON(c.Request.Context(), job); err != nil && h.Logger != nil {
		h.Logger.WithError(err).WithField("template", job.Template).Warn("email enqueue failed")
	}
}

// VerifyInit POST /auth/verify/init (auth required)
// Issues a verification token and enqueues the verification email.
func (h *AuthHandler) VerifyInit(c *gin.Context) {
	uid := c.GetString("userID")
	if uid == "" {
		response.Error[any](c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	// Already verified in DB or Redis: idempotent OK
	if ok, err := h.Svc.Repo.IsVerified(uid); err == nil && ok {
		if h.RDB != nil {
			_ = h.RDB.Set(c.Request.Context(), helpers.KeyVerified(uid), "1", 0).Err()
		}
		h.audit(c, uid, "", "verify_init_already", nil)
		response.Success(c, http.StatusOK, gin.H{"already_verified": true}, "already verified", nil)
		return
	}
	if h.RDB != nil {
		if v, _ := h.RDB.Get(c.Request.Context(), helpers.KeyVerified(uid)).Result(); v == "1" {
			h.audit(c, uid, "", "verify_init_already", map[string]any{"source": "redis"})
			response.Success(c, http.StatusOK, gin.H{"already_verified": true}, "already verified", nil)
			return
		}
	}
	tok, err := helpers.GenToken(32)
	if err != nil {
		response.Error[any](c, http.StatusInternalServerError, "token generation failed", nil)
		return
	}
	if h.RDB != nil {
		h.RDB.Set(c.Request.Context(), helpers.KeyVerifyToken(tok), uid, 24*time.Hour)
	}
	link := h.Cfg.VerifyEmailURL + "?token=" + tok
	h.audit(c, uid, "", "verify_init_issue", nil)

	if u, err := h.Svc.GetProfile(uid); err == nil {
		h.enqueueEmail(c, mailer.EmailJob{
			To:       u.Email,
			Template: mailer.VerifyEmail,
			Data: map[string]any{
				"Name":      u.Name,
				"AppName":   h.Cfg.AppName,
				"ActionURL": link,
				"ExpiresIn": (24 * time.Hour).String(),
			},
		})
	}

	response.Success(c, http.StatusOK, gin.H{"verify_link": link}, "verification link", nil)
}

// VerifyConfirm POST /auth/verify/confirm {token}
func (h *AuthHandler) VerifyConfirm(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if h.RDB == nil {
		response.Error[any](c, http.StatusInternalServerError, "verification unavailable", nil)
		return
	}
	uid, err := h.RDB.Get(c.Request.Context(), helpers.KeyVerifyToken(req.Token)).Result()
	if err != nil || uid == "" {
		response.Error[any](c, http.StatusBadRequest, "invalid or expired token", nil)
		return
	}
	_ = h.Svc.Repo.SetVerified(uid)
	h.RDB.Set(c.Request.Context(), helpers.KeyVerified(uid), "1", 0)
	h.RDB.Del(c.Request.Context(), helpers.KeyVerifyToken(req.Token))
	h.audit(c, uid, "", "verify_confirm", nil)
	response.Success[any](c, http.StatusOK, gin.H{"verified": true}, "email verified", nil)
}

// ResetInit POST /auth/reset/init {email}
// Always returns 200 to avoid user enumeration.
func (h *AuthHandler) ResetInit(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil || h.RDB == nil {
		h.audit(c, "", req.Email, "reset_init_unknown", nil)
		response.Success[any](c, http.StatusOK, gin.H{"sent": true}, "reset requested", nil)
		return
	}
	tok, err := helpers.GenToken(32)
	if err != nil {
		response.Error[any](c, http.StatusInternalServerError, "token generation failed", nil)
		return
	}
	h.RDB.Set(c.Request.Context(), helpers.KeyResetToken(tok), u.ID, 30*time.Minute)
	link := h.Cfg.ResetPasswordURL + "?token=" + tok
	h.enqueueEmail(c, mailer.EmailJob{
		To:       u.Email,
		Template: mailer.ForgotPassword,
		Data: map[string]any{
			"Name":      u.Name,
			"Email":     u.Email,
			"AppName":   h.Cfg.AppName,
			"ActionURL": link,
			"ExpiresIn": (30 * time.Minute).String(),
		},
	})
	h.audit(c, u.ID, u.Email, "reset_init_issue", nil)
	response.Success[any](c, http.StatusOK, gin.H{"sent": true}, "reset requested", nil)
}

// ResetConfirm POST /auth/reset/confirm {token, new_password}
func (h *AuthHandler) ResetConfirm(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required,pwd"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if h.RDB == nil {
		response.Error[any](c, http.StatusInternalServerError, "reset unavailable", nil)
		return
	}
	uid, err := h.RDB.Get(c.Request.Context(), helpers.KeyResetToken(req.Token)).Result()
	if err != nil || uid == "" {
		response.Error[any](c, http.StatusBadRequest, "invalid or expired token", nil)
		return
	}
	hash, err := helpers.HashPassword(req.NewPassword)
	if err != nil {
		response.Error[any](c, http.StatusInternalServerError, "hash fail", nil)
		return
	}
	if err := h.Svc.Repo.UpdatePassword(uid, hash); err != nil {
		response.Error[any](c, http.StatusInternalServerError, "update fail", nil)
		return
	}
	h.RDB.Del(c.Request.Context(), helpers.KeyResetToken(req.Token))
	// force re-login everywhere after a password change
	_ = h.Svc.Logout(c.Request.Context(), uid)
	h.audit(c, uid, "", "reset_confirm", nil)
	response.Success[any](c, http.StatusOK, gin.H{"reset": true}, "password updated", nil)
}
