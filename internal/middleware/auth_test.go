package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/13g7895123/crm-questionnaire-sub001/internal/domain"
	"github.com/13g7895123/crm-questionnaire-sub001/internal/service"
	"github.com/13g7895123/crm-questionnaire-sub001/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// mockAuthService is a mock implementation of service.AuthService. A
// single well-known token string is treated as valid.
type mockAuthService struct {
	validToken string
	identity   *domain.Identity
}

func (m *mockAuthService) Login(ctx context.Context, username, password string) (*service.LoginResult, error) {
	return nil, service.ErrInvalidCredentials
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	return "", 0, service.ErrInvalidToken
}

func (m *mockAuthService) ValidateToken(ctx context.Context, token string) (*domain.Identity, error) {
	if token == m.validToken {
		return m.identity, nil
	}
	return nil, service.ErrInvalidToken
}

func (m *mockAuthService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return nil, nil
}

func newMockAuthService(role domain.Role) *mockAuthService {
	now := time.Now()
	return &mockAuthService{
		validToken: "valid-token",
		identity: &domain.Identity{
			UserID:    "user-1",
			Role:      role,
			OrgID:     "org-1",
			DeptID:    "dept-1",
			IssuedAt:  now,
			ExpiresAt: now.Add(15 * time.Minute),
		},
	}
}

func newProtectedRouter(auth *mockAuthService, roles ...domain.Role) *gin.Engine {
	r := gin.New()
	handlers := []gin.HandlerFunc{RequireAuth(auth)}
	if roles != nil {
		handlers = append(handlers, RequireRoles(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		identity, _ := IdentityFromContext(c)
		c.JSON(http.StatusOK, gin.H{"user_id": identity.UserID})
	})
	r.GET("/protected", handlers...)
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *response.Response {
	t.Helper()

	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return &resp
}

func TestRequireAuth_MissingToken(t *testing.T) {
	router := newProtectedRouter(newMockAuthService(domain.RoleHost))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
	resp := decodeError(t, w)
	if resp.Success {
		t.Error("Expected success=false")
	}
	if resp.Error == nil || resp.Error.Code != response.CodeTokenInvalid {
		t.Errorf("Expected error code %s, got %+v", response.CodeTokenInvalid, resp.Error)
	}
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	router := newProtectedRouter(newMockAuthService(domain.RoleHost))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "forged"})
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
	resp := decodeError(t, w)
	if resp.Error == nil || resp.Error.Code != response.CodeTokenInvalid {
		t.Errorf("Expected error code %s, got %+v", response.CodeTokenInvalid, resp.Error)
	}
}

func TestRequireAuth_CookieToken(t *testing.T) {
	router := newProtectedRouter(newMockAuthService(domain.RoleHost))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "valid-token"})
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRequireAuth_BearerHeader(t *testing.T) {
	router := newProtectedRouter(newMockAuthService(domain.RoleHost))

	// Scheme keyword matching is case-insensitive
	for _, scheme := range []string{"Bearer", "bearer", "BEARER"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", scheme+" valid-token")
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Scheme %q: expected 200, got %d", scheme, w.Code)
		}
	}
}

func TestRequireAuth_CookiePrecedesHeader(t *testing.T) {
	router := newProtectedRouter(newMockAuthService(domain.RoleHost))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "stale-cookie"})
	req.Header.Set("Authorization", "Bearer valid-token")
	router.ServeHTTP(w, req)

	// The cookie wins even when a valid header is present
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestRequireAuth_MalformedAuthorizationHeader(t *testing.T) {
	router := newProtectedRouter(newMockAuthService(domain.RoleHost))

	for _, header := range []string{"valid-token", "Basic valid-token", "Bearer", "Bearer "} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", header)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("Header %q: expected 401, got %d", header, w.Code)
		}
	}
}

func TestRequireRoles_Allowed(t *testing.T) {
	router := newProtectedRouter(newMockAuthService(domain.RoleAdmin), domain.RoleHost, domain.RoleAdmin)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "valid-token"})
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestRequireRoles_Forbidden(t *testing.T) {
	router := newProtectedRouter(newMockAuthService(domain.RoleSupplier), domain.RoleHost, domain.RoleAdmin)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "valid-token"})
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", w.Code)
	}
	resp := decodeError(t, w)
	if resp.Error == nil || resp.Error.Code != response.CodeInsufficientPermission {
		t.Errorf("Expected error code %s, got %+v", response.CodeInsufficientPermission, resp.Error)
	}
}

func TestRequireRoles_EmptyListAllowsAnyRole(t *testing.T) {
	router := newProtectedRouter(newMockAuthService(domain.RoleSupplier), []domain.Role{}...)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "valid-token"})
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestRequireRoles_WithoutRequireAuth(t *testing.T) {
	r := gin.New()
	r.GET("/misconfigured", RequireRoles(domain.RoleHost), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/misconfigured", nil)
	r.ServeHTTP(w, req)

	// No identity in context means the chain is misconfigured; reject as
	// unauthenticated rather than letting the request through
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}
