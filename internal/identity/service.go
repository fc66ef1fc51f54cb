package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mercuriabank/backend/internal/common/apierr"
	"github.com/mercuriabank/backend/internal/common/config"
	"github.com/mercuriabank/backend/internal/common/logger"
)

const (
	scopeAccess  = "access"
	scopeRefresh = "refresh"
)

// claims is the set the Identity service signs, upgraded from
// original_source's HS256 create_token to RS256 per spec §9: sub, scope,
// iss, aud, iat, exp plus a jti so each token is individually traceable.
type claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

type Service struct {
	repo    *Repository
	keys    *KeyManager
	jwt     config.JWTConfig
	ttl     config.IdentityConfig
	logger  *logger.Logger
}

func NewService(repo *Repository, keys *KeyManager, jwtCfg config.JWTConfig, identityCfg config.IdentityConfig, log *logger.Logger) *Service {
	return &Service{repo: repo, keys: keys, jwt: jwtCfg, ttl: identityCfg, logger: log}
}

func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*TokenResponse, error) {
	if err := ValidateRegisterRequest(req); err != nil {
		return nil, apierr.Validation(err.Error())
	}

	if _, err := s.repo.GetUserByEmail(ctx, req.Email); err == nil {
		return nil, apierr.Conflict("user with this email already exists")
	}

	passwordHash, err := HashPassword(req.Password)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "failed to hash password", err)
	}

	user, err := s.repo.CreateUser(ctx, &User{Email: req.Email, PasswordHash: passwordHash})
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "failed to create user", err)
	}

	s.logger.Infof("user registered: %s", user.Email)
	return s.issueTokens(ctx, user)
}

func (s *Service) Login(ctx context.Context, req *LoginRequest) (*TokenResponse, error) {
	if err := ValidateLoginRequest(req); err != nil {
		return nil, apierr.Validation(err.Error())
	}

	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, apierr.Unauthenticated("invalid email or password")
	}
	if !VerifyPassword(user.PasswordHash, req.Password) {
		return nil, apierr.Unauthenticated("invalid email or password")
	}

	s.logger.Infof("user logged in: %s", user.Email)
	return s.issueTokens(ctx, user)
}

// RefreshAccessToken rotates the refresh token, mirroring original_source's
// routes/auth.py refresh endpoint plus the teacher's revoke-then-reissue
// idiom (internal/auth/service.go's "Rotate refresh token" step).
func (s *Service) RefreshAccessToken(ctx context.Context, refreshTokenString string) (*TokenResponse, error) {
	if refreshTokenString == "" {
		return nil, apierr.Validation("refresh_token is required")
	}

	tokenHash := hashToken(refreshTokenString)
	stored, err := s.repo.GetRefreshToken(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	if stored.Revoked {
		return nil, apierr.Unauthenticated("refresh token has been revoked")
	}
	if time.Now().After(stored.ExpiresAt) {
		return nil, apierr.Unauthenticated("refresh token has expired")
	}

	parsed, err := jwt.ParseWithClaims(refreshTokenString, &claims{}, func(t *jwt.Token) (interface{}, error) {
		key, keyErr := s.keys.PrivateKey()
		if keyErr != nil {
			return nil, keyErr
		}
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil || !parsed.Valid {
		return nil, apierr.Unauthenticated("invalid refresh token")
	}
	parsedClaims, ok := parsed.Claims.(*claims)
	if !ok || parsedClaims.Scope != scopeRefresh {
		return nil, apierr.Unauthenticated("invalid token scope")
	}

	user, err := s.repo.GetUserByID(ctx, stored.UserID)
	if err != nil {
		return nil, apierr.Unauthenticated("user not found")
	}

	if err := s.repo.RevokeRefreshToken(ctx, tokenHash); err != nil {
		s.logger.Warnf("failed to revoke rotated refresh token: %v", err)
	}

	s.logger.Infof("access token refreshed for user: %s", user.Email)
	return s.issueTokens(ctx, user)
}

func (s *Service) GetCurrentUser(ctx context.Context, userID string) (*User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

func (s *Service) issueTokens(ctx context.Context, user *User) (*TokenResponse, error) {
	accessToken, err := s.signToken(user.ID, scopeAccess, s.ttl.AccessTokenTTL)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "failed to sign access token", err)
	}
	refreshToken, err := s.signToken(user.ID, scopeRefresh, s.ttl.RefreshTokenTTL)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "failed to sign refresh token", err)
	}

	record := &RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(refreshToken),
		ExpiresAt: time.Now().Add(s.ttl.RefreshTokenTTL),
	}
	if _, err := s.repo.CreateRefreshToken(ctx, record); err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "failed to store refresh token", err)
	}

	return &TokenResponse{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenType:        "bearer",
		ExpiresIn:        int(s.ttl.AccessTokenTTL.Seconds()),
		RefreshExpiresIn: int(s.ttl.RefreshTokenTTL.Seconds()),
	}, nil
}

func (s *Service) signToken(subject, scope string, ttl time.Duration) (string, error) {
	key, err := s.keys.PrivateKey()
	if err != nil {
		return "", err
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.jwt.Issuer,
			Audience:  jwt.ClaimStrings{s.jwt.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Scope: scope,
	})
	token.Header["kid"] = s.keys.keyID

	return token.SignedString(key)
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
