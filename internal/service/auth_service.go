package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"

	"github.com/13g7895123/crm-questionnaire-sub001/internal/domain"
	"github.com/13g7895123/crm-questionnaire-sub001/internal/repository"
	"github.com/13g7895123/crm-questionnaire-sub001/pkg/telemetry"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user is inactive")

	// ErrInvalidToken covers malformed, badly signed and expired tokens
	// alike. Callers must not be able to tell an attack attempt from an
	// expiry by error shape.
	ErrInvalidToken = errors.New("invalid token")
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims are the signed claims carried by both token kinds.
type Claims struct {
	Role      string `json:"role"`
	OrgID     string `json:"org_id"`
	DeptID    string `json:"dept_id"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// AuthServiceConfig holds configuration for AuthService
type AuthServiceConfig struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Issuer          string
	BcryptCost      int
}

// LoginResult is the outcome of a successful credential exchange
type LoginResult struct {
	Tokens domain.TokenPair
	User   *domain.User
}

// AuthService issues and validates bearer credentials. The server keeps no
// session state; everything needed for authorization is inside the token.
type AuthService interface {
	// Login verifies credentials and mints an access/refresh token pair
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	// Refresh validates a refresh token and mints a new access token
	Refresh(ctx context.Context, refreshToken string) (string, int64, error)
	// ValidateToken validates an access token and returns the decoded identity
	ValidateToken(ctx context.Context, token string) (*domain.Identity, error)
	// GetUser retrieves a user by ID
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

type authService struct {
	userRepo repository.UserRepository
	config   *AuthServiceConfig
}

// NewAuthService creates a new AuthService
func NewAuthService(userRepo repository.UserRepository, config *AuthServiceConfig) AuthService {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = 15 * time.Minute
	}
	if config.RefreshTokenTTL == 0 {
		config.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	return &authService{
		userRepo: userRepo,
		config:   config,
	}
}

// Login verifies credentials against the user store and mints both tokens
func (s *authService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.login")
	defer span.End()

	span.SetAttributes(attribute.String("username", username))

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if user == nil {
		span.SetStatus(codes.Error, "invalid credentials")
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		span.SetStatus(codes.Error, "user inactive")
		return nil, ErrUserInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		span.SetStatus(codes.Error, "invalid credentials")
		return nil, ErrInvalidCredentials
	}

	tokens, err := s.mintTokenPair(user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("user_id", user.ID))
	span.SetStatus(codes.Ok, "")

	return &LoginResult{
		Tokens: *tokens,
		User:   user,
	}, nil
}

// Refresh validates a refresh token and mints a fresh access token carrying
// the same claims
func (s *authService) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.refresh")
	defer span.End()

	claims, err := s.parseToken(refreshToken, tokenTypeRefresh)
	if err != nil {
		span.SetStatus(codes.Error, "invalid refresh token")
		return "", 0, ErrInvalidToken
	}

	span.SetAttributes(attribute.String("user_id", claims.Subject))

	accessToken, err := s.signToken(claims.Subject, claims.Role, claims.OrgID, claims.DeptID, tokenTypeAccess, s.config.AccessTokenTTL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", 0, err
	}

	span.SetStatus(codes.Ok, "")
	return accessToken, int64(s.config.AccessTokenTTL.Seconds()), nil
}

// ValidateToken decodes and checks an access token. Signature is verified
// before expiry; every failure mode collapses to ErrInvalidToken.
func (s *authService) ValidateToken(ctx context.Context, tokenString string) (*domain.Identity, error) {
	_, span := telemetry.StartSpan(ctx, "service.auth.validate_token")
	defer span.End()

	claims, err := s.parseToken(tokenString, tokenTypeAccess)
	if err != nil {
		span.SetStatus(codes.Error, "invalid token")
		return nil, ErrInvalidToken
	}

	span.SetAttributes(attribute.String("user_id", claims.Subject))
	span.SetStatus(codes.Ok, "")

	identity := &domain.Identity{
		UserID: claims.Subject,
		Role:   domain.Role(claims.Role),
		OrgID:  claims.OrgID,
		DeptID: claims.DeptID,
	}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}

// GetUser retrieves a user by ID
func (s *authService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.get_user")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", id))

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return user, nil
}

func (s *authService) mintTokenPair(user *domain.User) (*domain.TokenPair, error) {
	accessToken, err := s.signToken(user.ID, string(user.Role), user.OrgID, user.DeptID, tokenTypeAccess, s.config.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.signToken(user.ID, string(user.Role), user.OrgID, user.DeptID, tokenTypeRefresh, s.config.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.config.AccessTokenTTL.Seconds()),
	}, nil
}

func (s *authService) signToken(userID, role, orgID, deptID, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role:      role,
		OrgID:     orgID,
		DeptID:    deptID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// parseToken verifies signature and expiry and rejects tokens of the wrong
// kind, so a refresh token can never pass as an access token.
func (s *authService) parseToken(tokenString, wantType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
