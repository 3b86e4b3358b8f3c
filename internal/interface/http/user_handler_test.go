package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramadhanik/go-auth-service/config"
	userapp "github.com/ramadhanik/go-auth-service/internal/application"
	"github.com/ramadhanik/go-auth-service/internal/domain/entity"
	repo "github.com/ramadhanik/go-auth-service/internal/domain/repository"
	"github.com/ramadhanik/go-auth-service/internal/infrastructure/session"
	"github.com/ramadhanik/go-auth-service/internal/interface/middleware"
	"github.com/ramadhanik/go-auth-service/pkg/helpers"
	"github.com/ramadhanik/go-auth-service/pkg/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
	validation.Init()
}

// memRepo is an in-memory repository.UserRepository.
type memRepo struct {
	byID    map[string]*entity.User
	byEmail map[string]*entity.User
}

func newMemRepo() *memRepo {
	return &memRepo{byID: map[string]*entity.User{}, byEmail: map[string]*entity.User{}}
}

func (f *memRepo) Create(u *entity.User) error {
	if _, ok := f.byEmail[u.Email]; ok {
		return repo.ErrDuplicateEmail
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	f.byID[u.ID] = &cp
	f.byEmail[u.Email] = &cp
	return nil
}

func (f *memRepo) GetByID(id string) (*entity.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *memRepo) GetByEmail(email string) (*entity.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *memRepo) Update(u *entity.User) error {
	cur, ok := f.byID[u.ID]
	if !ok {
		return repo.ErrNotFound
	}
	delete(f.byEmail, cur.Email)
	cp := *u
	f.byID[u.ID] = &cp
	f.byEmail[u.Email] = &cp
	return nil
}

func (f *memRepo) UpdatePassword(id, hash string) error {
	u, ok := f.byID[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.Password = hash
	return nil
}

func (f *memRepo) SetVerified(id string) error {
	u, ok := f.byID[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.IsVerified = true
	return nil
}

func (f *memRepo) IsVerified(id string) (bool, error) {
	u, ok := f.byID[id]
	if !ok {
		return false, repo.ErrNotFound
	}
	return u.IsVerified, nil
}

var _ repo.UserRepository = (*memRepo)(nil)

type testServer struct {
	router *gin.Engine
	repo   *memRepo
	rdb    *redis.Client
	mr     *miniredis.Miniredis
	svc    *userapp.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		AppName:          "go-auth-service",
		CookieDomain:     "localhost",
		VerifyEmailURL:   "http://localhost:3000/verify-email",
		ResetPasswordURL: "http://localhost:3000/reset-password",
		MailSendEnabled:  false,
	}
	users := newMemRepo()
	jwt := helpers.NewJWTManager("test-access", "test-refresh", time.Minute, time.Hour)
	sessions := session.NewStore(rdb, time.Hour)
	svc := userapp.NewService(users, jwt, sessions, nil, "", nil, nil, "")

	uh := NewUserHandler(svc, rdb, nil, cfg, nil, nil)
	ah := NewAuthHandler(svc, rdb, nil, cfg, nil, nil)

	r := gin.New()
	r.Use(middleware.RequestIDMiddleware())
	r.POST("/auth/signup", uh.Signup)
	r.POST("/auth/login", uh.Login)
	r.POST("/auth/refresh", uh.Refresh)
	r.GET("/auth/logout", uh.Logout)
	r.POST("/auth/verify/confirm", ah.VerifyConfirm)
	r.POST("/auth/reset/init", ah.ResetInit)
	r.POST("/auth/reset/confirm", ah.ResetConfirm)

	auth := r.Group("/")
	auth.Use(middleware.Auth(sessions, jwt))
	auth.GET("/auth/me", uh.Me)
	auth.POST("/auth/verify/init", ah.VerifyInit)
	auth.PUT("/profile", uh.UpdateProfile)

	return &testServer{router: r, repo: users, rdb: rdb, mr: mr, svc: svc}
}

func (ts *testServer) do(method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func responseCookies(w *httptest.ResponseRecorder) []*http.Cookie {
	res := http.Response{Header: w.Header()}
	return res.Cookies()
}

func signup(t *testing.T, ts *testServer, email, password string) []*http.Cookie {
	t.Helper()
	w := ts.do(http.MethodPost, "/auth/signup", gin.H{"email": email, "password": password, "name": "Jane"}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return responseCookies(w)
}

func TestSignup(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/auth/signup", gin.H{"email": "jane@example.com", "password": "hunter2hunter2", "name": "Jane"}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	names := map[string]bool{}
	for _, ck := range responseCookies(w) {
		names[ck.Name] = true
		assert.True(t, ck.HttpOnly)
	}
	assert.True(t, names["access_token"])
	assert.True(t, names["refresh_token"])

	u, err := ts.repo.GetByEmail("jane@example.com")
	require.NoError(t, err)
	assert.True(t, helpers.CompareHashAndPassword(u.Password, "hunter2hunter2"))

	// a verification token was parked in redis for the email flow
	keys := ts.mr.Keys()
	found := false
	for _, k := range keys {
		if strings.HasPrefix(k, "email:verify:token:") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSignupValidation(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/auth/signup", gin.H{"email": "not-an-email", "password": "short"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Error map[string]string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "email")
	assert.Contains(t, body.Error, "password")
}

func TestSignupDuplicateEmail(t *testing.T) {
	ts := newTestServer(t)
	signup(t, ts, "jane@example.com", "hunter2hunter2")

	w := ts.do(http.MethodPost, "/auth/signup", gin.H{"email": "jane@example.com", "password": "anotherpass123"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	signup(t, ts, "jane@example.com", "hunter2hunter2")

	w := ts.do(http.MethodPost, "/auth/login", gin.H{"email": "jane@example.com", "password": "hunter2hunter2"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, responseCookies(w))

	w = ts.do(http.MethodPost, "/auth/login", gin.H{"email": "jane@example.com", "password": "wrong-password"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodPost, "/auth/login", gin.H{"email": "nobody@example.com", "password": "hunter2hunter2"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMe(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	cookies := signup(t, ts, "jane@example.com", "hunter2hunter2")
	w = ts.do(http.MethodGet, "/auth/me", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "jane@example.com", body.Data["email"])
	assert.NotContains(t, body.Data, "password")
	assert.NotContains(t, body.Data, "password_hash")
}

func TestMeRejectsForgedToken(t *testing.T) {
	ts := newTestServer(t)
	signup(t, ts, "jane@example.com", "hunter2hunter2")

	w := ts.do(http.MethodGet, "/auth/me", nil, []*http.Cookie{{Name: "access_token", Value: "garbage"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshRotation(t *testing.T) {
	ts := newTestServer(t)
	cookies := signup(t, ts, "jane@example.com", "hunter2hunter2")

	w := ts.do(http.MethodPost, "/auth/refresh", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)
	fresh := responseCookies(w)
	assert.NotEmpty(t, fresh)

	// the old refresh token was rotated out
	w = ts.do(http.MethodPost, "/auth/refresh", nil, cookies)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// the fresh one still works
	w = ts.do(http.MethodPost, "/auth/refresh", nil, fresh)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefreshWithoutCookie(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/auth/refresh", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t)
	cookies := signup(t, ts, "jane@example.com", "hunter2hunter2")

	w := ts.do(http.MethodGet, "/auth/logout", nil, cookies)
	assert.Equal(t, http.StatusOK, w.Code)
	for _, ck := range responseCookies(w) {
		assert.Empty(t, ck.Value)
	}

	// session destroyed server-side: the old access token no longer works
	w = ts.do(http.MethodGet, "/auth/me", nil, cookies)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// logging out again is fine
	w = ts.do(http.MethodGet, "/auth/logout", nil, cookies)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestVerifyFlow(t *testing.T) {
	ts := newTestServer(t)
	cookies := signup(t, ts, "jane@example.com", "hunter2hunter2")

	var token string
	for _, k := range ts.mr.Keys() {
		if strings.HasPrefix(k, "email:verify:token:") {
			token = strings.TrimPrefix(k, "email:verify:token:")
		}
	}
	require.NotEmpty(t, token)

	w := ts.do(http.MethodPost, "/auth/verify/confirm", gin.H{"token": token}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	u, err := ts.repo.GetByEmail("jane@example.com")
	require.NoError(t, err)
	assert.True(t, u.IsVerified)

	// init is idempotent once verified
	w = ts.do(http.MethodPost, "/auth/verify/init", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body.Data["already_verified"])

	// stale token cannot be replayed
	w = ts.do(http.MethodPost, "/auth/verify/confirm", gin.H{"token": token}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResetFlow(t *testing.T) {
	ts := newTestServer(t)
	cookies := signup(t, ts, "jane@example.com", "hunter2hunter2")

	// unknown email still answers 200
	w := ts.do(http.MethodPost, "/auth/reset/init", gin.H{"email": "nobody@example.com"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodPost, "/auth/reset/init", gin.H{"email": "jane@example.com"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var token string
	for _, k := range ts.mr.Keys() {
		if strings.HasPrefix(k, "pwd:reset:token:") {
			token = strings.TrimPrefix(k, "pwd:reset:token:")
		}
	}
	require.NotEmpty(t, token)

	w = ts.do(http.MethodPost, "/auth/reset/confirm", gin.H{"token": token, "new_password": "brandnewpass99"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// password changed and existing sessions were revoked
	w = ts.do(http.MethodPost, "/auth/login", gin.H{"email": "jane@example.com", "password": "hunter2hunter2"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = ts.do(http.MethodPost, "/auth/login", gin.H{"email": "jane@example.com", "password": "brandnewpass99"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = ts.do(http.MethodGet, "/auth/me", nil, cookies)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// token is single use
	w = ts.do(http.MethodPost, "/auth/reset/confirm", gin.H{"token": token, "new_password": "yetanotherpass1"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateProfile(t *testing.T) {
	ts := newTestServer(t)
	cookies := signup(t, ts, "jane@example.com", "hunter2hunter2")

	w := ts.do(http.MethodPut, "/profile", gin.H{"name": "Jane Doe"}, cookies)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Jane Doe", body.Data["name"])

	u, err := ts.repo.GetByEmail("jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", u.Name)
}
