package handlers

import (
	"errors"
	"net/http"
	"strconv"
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

// UserHandler serves the signup/login/logout/me/refresh surface plus the
// profile endpoints.
type UserHandler struct {
	Svc     *userapp.Service
	RDB     *redis.Client
	Logger  *logrus.Logger
	Cfg     *config.Config
	Pub     *helpers.RabbitPublisher
	Audit   *postgres.AuditRecorder
	Cookies *helpers.Manager
}

func NewUserHandler(svc *userapp.Service, rdb *redis.Client, logger *logrus.Logger, cfg *config.Config, pub *helpers.RabbitPublisher, audit *postgres.AuditRecorder) *UserHandler {
	return &UserHandler{
		Svc:     svc,
		RDB:     rdb,
		Logger:  logger,
		Cfg:     cfg,
		Pub:     pub,
		Audit:   audit,
		Cookies: helpers.NewCookie(cfg.CookieDomain, cfg.CookieSecure),
	}
}

func clientIP(c *gin.Context) string {
	if ip := c.GetString("real_ip"); ip != "" {
		return ip
	}
	return c.ClientIP()
}

func (h *UserHandler) audit(c *gin.Context, userID, email, action string, metadata map[string]any) {
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

func (h *UserHandler) enqueueEmail(c *gin.Context, job mailer.EmailJob) {
	if h.Pub == nil || h.Cfg == nil || !h.Cfg.MailSendEnabled {
		return
	}
	if err := h.Pub.PublishJSON(c.Request.Context(), job); err != nil && h.Logger != nil {
		h.Logger.WithError(err).WithField("template", job.Template).Warn("email enqueue failed")
	}
}

type signupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,pwd"`
	Name     string `json:"name" binding:"max=100"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,pwd"`
}

type updateProfileRequest struct {
	Name      string `json:"name" binding:"max=100"`
	AvatarURL string `json:"avatar_url" binding:"omitempty,url"`
}

// Signup POST /auth/signup
func (h *UserHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, pair, err := h.Svc.Signup(c.Request.Context(), userapp.SignupInput{Email: req.Email, Password: req.Password, Name: req.Name})
	if err != nil {
		if errors.Is(err, userapp.ErrEmailTaken) {
			h.audit(c, "", req.Email, "signup_conflict", nil)
			response.Error[any](c, http.StatusConflict, "email already registered", nil)
			return
		}
		response.Error[any](c, http.StatusInternalServerError, "signup failed", nil)
		return
	}

	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	h.audit(c, u.ID, u.Email, "signup", nil)
	h.sendVerifyEmail(c, u.ID, u.Name, u.Email)

	response.Success(c, http.StatusCreated, gin.H{
		"id":         u.ID,
		"email":      u.Email,
		"name":       u.Name,
		"created_at": u.CreatedAt,
	}, "account created", map[string]any{"access_expires_at": pair.AccessTokenExpiry, "refresh_expires_at": pair.RefreshTokenExpiry})
}

func (h *UserHandler) sendVerifyEmail(c *gin.Context, uid, name, email string) {
	if h.RDB == nil {
		return
	}
	tok, err := helpers.GenToken(32)
	if err != nil {
		return
	}
	h.RDB.Set(c.Request.Context(), helpers.KeyVerifyToken(tok), uid, 24*time.Hour)
	link := h.Cfg.VerifyEmailURL + "?token=" + tok
	h.enqueueEmail(c, mailer.EmailJob{
		To:       email,
		Template: mailer.VerifyEmail,
		Data: map[string]any{
			"Name":      name,
			"AppName":   h.Cfg.AppName,
			"ActionURL": link,
			"ExpiresIn": (24 * time.Hour).String(),
		},
	})
}

// Login POST /auth/login
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	res, pair, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.audit(c, "", req.Email, "login_failed", nil)
		response.Error[any](c, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	h.audit(c, res.UserID, res.Email, "login", nil)
	h.enqueueEmail(c, mailer.EmailJob{
		To:       res.Email,
		Template: mailer.LoginNotification,
		Data: map[string]any{
			"Name":      res.Name,
			"AppName":   h.Cfg.AppName,
			"IP":        clientIP(c),
			"UserAgent": c.GetHeader("User-Agent"),
		},
	})
	response.Success(c, http.StatusOK, res, "login successful", map[string]any{"access_expires_at": pair.AccessTokenExpiry, "refresh_expires_at": pair.RefreshTokenExpiry})
}

// Refresh POST /auth/refresh
func (h *UserHandler) Refresh(c *gin.Context) {
	refresh, err := c.Cookie("refresh_token")
	if err != nil || refresh == "" {
		response.Error[any](c, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}
	pair, uid, err := h.Svc.Refresh(c.Request.Context(), refresh)
	if err != nil {
		response.Error[any](c, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	h.audit(c, uid, "", "refresh", nil)
	response.Success[any](c, http.StatusOK, map[string]any{"refreshed": true}, "token refreshed", map[string]any{"access_expires_at": pair.AccessTokenExpiry, "refresh_expires_at": pair.RefreshTokenExpiry})
}

// Logout GET /auth/logout
// Destroys the server-side session when the access token still parses, and
// clears cookies either way.
func (h *UserHandler) Logout(c *gin.Context) {
	if token, err := c.Cookie("access_token"); err == nil && token != "" {
		if claims, err := h.Svc.JWT.ParseAccessToken(token); err == nil {
			_ = h.Svc.Logout(c.Request.Context(), claims.UserID)
			h.audit(c, claims.UserID, "", "logout", nil)
		}
	}
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, map[string]any{"logged_out": true}, "logged out", nil)
}

// Me GET /auth/me and GET /profile (auth required)
func (h *UserHandler) Me(c *gin.Context) {
	uid := c.GetString("userID")
	u, err := h.Svc.GetProfile(uid)
	if err != nil {
		response.Error[any](c, http.StatusNotFound, "user not found", nil)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"id":          u.ID,
		"email":       u.Email,
		"name":        u.Name,
		"avatar_url":  u.AvatarURL,
		"is_verified": u.IsVerified,
		"created_at":  u.CreatedAt,
		"updated_at":  u.UpdatedAt,
	}, "profile", nil)
}

// UpdateProfile PUT /profile (auth required)
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	uid := c.GetString("userID")
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.UpdateProfile(c.Request.Context(), uid, userapp.UpdateProfileInput{Name: req.Name, AvatarURL: req.AvatarURL})
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "failed to update profile", nil)
		return
	}
	h.audit(c, uid, u.Email, "profile_update", nil)
	response.Success(c, http.StatusOK, gin.H{
		"id":         u.ID,
		"email":      u.Email,
		"name":       u.Name,
		"avatar_url": u.AvatarURL,
		"updated_at": u.UpdatedAt,
	}, "profile updated", nil)
}

// UploadAvatar POST /profile/avatar (auth required, multipart)
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	uid := c.GetString("userID")
	file, err := c.FormFile("avatar")
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "missing avatar file", nil)
		return
	}
	src, err := file.Open()
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "unreadable avatar file", nil)
		return
	}
	defer func() { _ = src.Close() }()

	url, err := h.Svc.UploadAvatar(c.Request.Context(), uid, src, file.Filename, file.Header.Get("Content-Type"))
	if err != nil {
		response.Error[any](c, http.StatusInternalServerError, "avatar upload failed", nil)
		return
	}
	h.audit(c, uid, "", "avatar_upload", map[string]any{"url": url})
	response.Success(c, http.StatusOK, gin.H{"avatar_url": url}, "avatar uploaded", nil)
}

// Search GET /users/search?q=&size= (auth required)
func (h *UserHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.Error[any](c, http.StatusBadRequest, "missing query", nil)
		return
	}
	size := 10
	if s := c.Query("size"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			size = n
		}
	}
	hits, err := h.Svc.SearchUsers(c.Request.Context(), q, size)
	if err != nil {
		response.Error[any](c, http.StatusInternalServerError, "search failed", nil)
		return
	}
	response.Success(c, http.StatusOK, hits, "search results", map[string]any{"count": len(hits)})
}
