package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/13g7895123/crm-questionnaire-sub001/internal/audit"
	"github.com/13g7895123/crm-questionnaire-sub001/internal/domain"
	"github.com/13g7895123/crm-questionnaire-sub001/internal/dto"
	"github.com/13g7895123/crm-questionnaire-sub001/internal/middleware"
	"github.com/13g7895123/crm-questionnaire-sub001/internal/ratelimit"
	"github.com/13g7895123/crm-questionnaire-sub001/internal/service"
	"github.com/13g7895123/crm-questionnaire-sub001/pkg/response"
)

// AuthHandlerConfig holds transport-level settings for the auth endpoints
type AuthHandlerConfig struct {
	AccessTokenTTL time.Duration
	CookieDomain   string
	CookieSecure   bool
}

// AuthHandler handles authentication HTTP requests
type AuthHandler struct {
	authService service.AuthService
	limiter     *ratelimit.LoginLimiter
	publisher   audit.Publisher
	config      *AuthHandlerConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService service.AuthService, limiter *ratelimit.LoginLimiter, publisher audit.Publisher, config *AuthHandlerConfig) *AuthHandler {
	if publisher == nil {
		publisher = audit.NopPublisher{}
	}
	return &AuthHandler{
		authService: authService,
		limiter:     limiter,
		publisher:   publisher,
		config:      config,
	}
}

// Login handles user login
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ip := c.ClientIP()
	if h.limiter != nil && !h.limiter.Allow(c.Request.Context(), req.Username, ip) {
		response.Error(c, http.StatusTooManyRequests, response.CodeRateLimited, "too many login attempts, try again later")
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.publisher.Publish(c.Request.Context(), &audit.Event{
			Type:      audit.EventLoginFailed,
			Username:  req.Username,
			IP:        ip,
			UserAgent: c.Request.UserAgent(),
		})
		if errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrUserInactive) {
			response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, "invalid username or password")
			return
		}
		response.InternalError(c, err)
		return
	}

	if h.limiter != nil {
		h.limiter.Reset(c.Request.Context(), req.Username, ip)
	}

	h.publisher.Publish(c.Request.Context(), &audit.Event{
		Type:      audit.EventLoginSucceeded,
		UserID:    result.User.ID,
		Username:  req.Username,
		IP:        ip,
		UserAgent: c.Request.UserAgent(),
	})

	h.setAccessTokenCookie(c, result.Tokens.AccessToken, int(h.config.AccessTokenTTL.Seconds()))

	response.Success(c, dto.AuthResponse{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		ExpiresIn:    result.Tokens.ExpiresIn,
		User:         toUserResponse(result.User),
	})
}

// Verify validates a caller-supplied token and returns its decoded identity
// POST /api/v1/auth/verify
func (h *AuthHandler) Verify(c *gin.Context) {
	var req dto.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	identity, err := h.authService.ValidateToken(c.Request.Context(), req.Token)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, response.CodeTokenInvalid, "token invalid or expired")
		return
	}

	response.Success(c, dto.IdentityResponse{
		UserID:         identity.UserID,
		Role:           string(identity.Role),
		OrganizationID: identity.OrgID,
		DepartmentID:   identity.DeptID,
		IssuedAt:       identity.IssuedAt.Format(time.RFC3339),
		ExpiresAt:      identity.ExpiresAt.Format(time.RFC3339),
	})
}

// RefreshToken handles token refresh
// POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	accessToken, expiresIn, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, response.CodeTokenInvalid, "token invalid or expired")
		return
	}

	h.publisher.Publish(c.Request.Context(), &audit.Event{
		Type:      audit.EventTokenRefreshed,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})

	h.setAccessTokenCookie(c, accessToken, int(expiresIn))

	response.Success(c, dto.RefreshResponse{
		AccessToken: accessToken,
		ExpiresIn:   expiresIn,
	})
}

// Logout clears the transport cookie. The server keeps no session state;
// discarding both tokens is the client's obligation.
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if identity, ok := middleware.IdentityFromContext(c); ok {
		h.publisher.Publish(c.Request.Context(), &audit.Event{
			Type:   audit.EventLoggedOut,
			UserID: identity.UserID,
			IP:     c.ClientIP(),
		})
	}

	h.setAccessTokenCookie(c, "", -1)

	response.Success(c, gin.H{"message": "logged out"})
}

// Me returns the current user's profile
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), identity.UserID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if user == nil {
		response.NotFound(c, "user not found")
		return
	}

	response.Success(c, toUserResponse(user))
}

func (h *AuthHandler) setAccessTokenCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, token, maxAge, "/", h.config.CookieDomain, h.config.CookieSecure, true)
}

func toUserResponse(user *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:             user.ID,
		Username:       user.Username,
		Email:          user.Email,
		Name:           user.Name,
		Role:           string(user.Role),
		OrganizationID: user.OrgID,
		DepartmentID:   user.DeptID,
		CreatedAt:      user.CreatedAt.Format(time.RFC3339),
	}
}
