package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/13g7895123/crm-questionnaire-sub001/internal/domain"
	"github.com/13g7895123/crm-questionnaire-sub001/internal/service"
	"github.com/13g7895123/crm-questionnaire-sub001/pkg/response"
)

// AccessTokenCookie is the http-only cookie carrying the access token
const AccessTokenCookie = "access_token"

// identityKey is the single context key under which the decoded identity
// travels through the filter chain.
const identityKey = "auth.identity"

// IdentityFromContext returns the identity attached by RequireAuth.
func IdentityFromContext(c *gin.Context) (*domain.Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return nil, false
	}
	identity, ok := v.(*domain.Identity)
	return identity, ok
}

// RequireAuth gates every protected request. The token is read from the
// access_token cookie first; the Authorization bearer header is the
// fallback for non-browser clients. A request proceeds only when the
// validator accepts signature and expiry.
func RequireAuth(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, found := extractToken(c)
		if !found {
			response.AbortError(c, http.StatusUnauthorized, response.CodeTokenInvalid, "token not provided")
			return
		}

		identity, err := authService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			response.AbortError(c, http.StatusUnauthorized, response.CodeTokenInvalid, "token invalid or expired")
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireRoles gates a route on an explicit role allow-list. It must be
// composed after RequireAuth; a missing identity means the chain was
// misconfigured and the request is rejected as unauthenticated.
func RequireRoles(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFromContext(c)
		if !ok {
			response.AbortError(c, http.StatusUnauthorized, response.CodeTokenInvalid, "authentication required")
			return
		}

		if len(roles) == 0 {
			c.Next()
			return
		}

		for _, role := range roles {
			if identity.Role == role {
				c.Next()
				return
			}
		}

		response.AbortError(c, http.StatusForbidden, response.CodeInsufficientPermission, "insufficient permission for this resource")
	}
}

func extractToken(c *gin.Context) (string, bool) {
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie, true
	}

	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}

	// Scheme keyword is case-insensitive per RFC 7235
	const bearer = "bearer "
	if len(header) <= len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", false
	}

	token := header[len(bearer):]
	return token, token != ""
}
