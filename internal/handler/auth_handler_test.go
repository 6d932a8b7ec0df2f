package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/13g7895123/crm-questionnaire-sub001/internal/domain"
	"github.com/13g7895123/crm-questionnaire-sub001/internal/middleware"
	"github.com/13g7895123/crm-questionnaire-sub001/internal/service"
	"github.com/13g7895123/crm-questionnaire-sub001/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// mockUserRepository is a mock implementation of repository.UserRepository
type mockUserRepository struct {
	users map[string]*domain.User
}

func (r *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.users[id], nil
}

func (r *mockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, nil
}

func (r *mockUserRepository) Update(ctx context.Context, user *domain.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *mockUserRepository) Delete(ctx context.Context, id string) error {
	delete(r.users, id)
	return nil
}

const testSecret = "test-secret"

type authFixture struct {
	router  *gin.Engine
	service service.AuthService
	user    *domain.User
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret!"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:           "user-1",
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: string(hash),
		Name:         "Alice",
		Role:         domain.RoleHost,
		OrgID:        "org-1",
		DeptID:       "dept-1",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	repo := &mockUserRepository{users: map[string]*domain.User{user.ID: user}}

	svc := service.NewAuthService(repo, &service.AuthServiceConfig{
		JWTSecret:       testSecret,
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		BcryptCost:      bcrypt.MinCost,
	})

	h := NewAuthHandler(svc, nil, nil, &AuthHandlerConfig{
		AccessTokenTTL: 15 * time.Minute,
	})

	r := gin.New()
	auth := r.Group("/api/v1/auth")
	auth.POST("/login", h.Login)
	auth.POST("/verify", h.Verify)
	auth.POST("/refresh", h.RefreshToken)
	auth.POST("/logout", middleware.RequireAuth(svc), h.Logout)
	auth.GET("/me", middleware.RequireAuth(svc), h.Me)

	return &authFixture{router: r, service: svc, user: user}
}

func (f *authFixture) post(path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	f.router.ServeHTTP(w, req)
	return w
}

func (f *authFixture) login(t *testing.T) (*http.Cookie, map[string]interface{}) {
	t.Helper()

	w := f.post("/api/v1/auth/login", gin.H{"username": "alice", "password": "s3cret!"})
	if w.Code != http.StatusOK {
		t.Fatalf("Login returned %d: %s", w.Code, w.Body.String())
	}

	var cookie *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == middleware.AccessTokenCookie {
			cookie = ck
		}
	}
	if cookie == nil {
		t.Fatal("Expected access_token cookie on login response")
	}

	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Unexpected login payload: %v", resp.Data)
	}
	return cookie, data
}

func TestLogin_SetsHTTPOnlyCookie(t *testing.T) {
	f := newAuthFixture(t)

	cookie, data := f.login(t)

	if !cookie.HttpOnly {
		t.Error("Expected http-only cookie")
	}
	if cookie.Value == "" {
		t.Error("Expected non-empty cookie value")
	}
	if cookie.MaxAge != int((15 * time.Minute).Seconds()) {
		t.Errorf("Unexpected cookie max-age: %d", cookie.MaxAge)
	}
	if cookie.Value != data["access_token"] {
		t.Error("Cookie value should match the access token in the body")
	}
	if data["refresh_token"] == "" {
		t.Error("Expected refresh token in the body")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newAuthFixture(t)

	w := f.post("/api/v1/auth/login", gin.H{"username": "alice", "password": "wrong"})

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != response.CodeInvalidCredentials {
		t.Errorf("Expected %s, got %+v", response.CodeInvalidCredentials, resp.Error)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("Expected no cookie on failed login")
	}
}

func TestLogin_MissingFields(t *testing.T) {
	f := newAuthFixture(t)

	w := f.post("/api/v1/auth/login", gin.H{"username": "alice"})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestMe_WithLoginCookie(t *testing.T) {
	f := newAuthFixture(t)
	cookie, _ := f.login(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(cookie)
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	data := resp.Data.(map[string]interface{})
	if data["id"] != f.user.ID {
		t.Errorf("Expected user %s, got %v", f.user.ID, data["id"])
	}
	if _, leaked := data["password_hash"]; leaked {
		t.Error("Password hash must never be serialized")
	}
}

func TestMe_ExpiredToken(t *testing.T) {
	f := newAuthFixture(t)

	// Same secret, already-expired tokens: simulates the access token
	// running out between two requests of a browsing session
	repo := &mockUserRepository{users: map[string]*domain.User{f.user.ID: f.user}}
	expired := service.NewAuthService(repo, &service.AuthServiceConfig{
		JWTSecret:      testSecret,
		AccessTokenTTL: -time.Minute,
		BcryptCost:     bcrypt.MinCost,
	})
	result, err := expired.Login(context.Background(), "alice", "s3cret!")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.AccessTokenCookie, Value: result.Tokens.AccessToken})
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != response.CodeTokenInvalid {
		t.Errorf("Expected %s, got %+v", response.CodeTokenInvalid, resp.Error)
	}
}

func TestVerify(t *testing.T) {
	f := newAuthFixture(t)
	cookie, _ := f.login(t)

	w := f.post("/api/v1/auth/verify", gin.H{"token": cookie.Value})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	data := resp.Data.(map[string]interface{})
	if data["user_id"] != f.user.ID {
		t.Errorf("Expected user %s, got %v", f.user.ID, data["user_id"])
	}
	if data["role"] != string(domain.RoleHost) {
		t.Errorf("Expected role HOST, got %v", data["role"])
	}

	w = f.post("/api/v1/auth/verify", gin.H{"token": "forged"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for forged token, got %d", w.Code)
	}
}

func TestRefreshToken(t *testing.T) {
	f := newAuthFixture(t)
	_, data := f.login(t)

	w := f.post("/api/v1/auth/refresh", gin.H{"refresh_token": data["refresh_token"]})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var cookie *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == middleware.AccessTokenCookie {
			cookie = ck
		}
	}
	if cookie == nil || cookie.Value == "" {
		t.Fatal("Expected refreshed access_token cookie")
	}

	// The new access token must be usable straight away
	me := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(cookie)
	f.router.ServeHTTP(me, req)
	if me.Code != http.StatusOK {
		t.Errorf("Expected 200 with refreshed token, got %d", me.Code)
	}
}

func TestRefreshToken_RejectsAccessToken(t *testing.T) {
	f := newAuthFixture(t)
	cookie, _ := f.login(t)

	w := f.post("/api/v1/auth/refresh", gin.H{"refresh_token": cookie.Value})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestLogout_ClearsCookie(t *testing.T) {
	f := newAuthFixture(t)
	cookie, _ := f.login(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.AddCookie(cookie)
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var cleared *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == middleware.AccessTokenCookie {
			cleared = ck
		}
	}
	if cleared == nil {
		t.Fatal("Expected a clearing access_token cookie")
	}
	if cleared.Value != "" || cleared.MaxAge >= 0 {
		t.Errorf("Expected empty expired cookie, got value=%q maxAge=%d", cleared.Value, cleared.MaxAge)
	}
}

func TestLogout_WithoutToken(t *testing.T) {
	f := newAuthFixture(t)

	w := f.post("/api/v1/auth/logout", nil)

	// Logout sits behind the auth filter; a session-less caller gets 401
	// and simply clears its own state
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}
