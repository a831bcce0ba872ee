package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/bekberov/go-user-service/app/observability/metrics"
	"github.com/bekberov/go-user-service/config"
	"github.com/bekberov/go-user-service/internal/api/user"
	"github.com/bekberov/go-user-service/internal/types"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService verifies credentials and issues access tokens.
type AuthService interface {
	// Login checks the email/password pair and returns a signed access token.
	// Wrong email and wrong password both return types.ErrUnauthenticated.
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
}

// AuthServiceImpl issues HMAC-signed JWTs over the user service's
// credential store.
type AuthServiceImpl struct {
	logger      *slog.Logger
	userService user.UserService
	jwtCfg      config.JWTConfig
}

func NewAuthService(userService user.UserService, jwtCfg config.JWTConfig, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger:      logger,
		userService: userService,
		jwtCfg:      jwtCfg,
	}
}

func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	l := s.logger.With(slog.String("method", "Login"), slog.String("email", email))
	metrics.Get().LoginRequestsTotal.Add(ctx, 1)

	u, err := s.userService.FindByEmail(ctx, email)
	if err != nil {
		l.ErrorContext(ctx, "Credential lookup failed", slog.Any("error", err))
		return nil, fmt.Errorf("look up credentials: %w", err)
	}
	if u == nil {
		l.WarnContext(ctx, "Login attempt for unknown email")
		return nil, types.ErrUnauthenticated
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		l.WarnContext(ctx, "Password mismatch")
		return nil, types.ErrUnauthenticated
	}

	token, err := s.generateAccessToken(u)
	if err != nil {
		l.ErrorContext(ctx, "Token signing failed", slog.Any("error", err))
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	l.InfoContext(ctx, "Login successful", slog.String("userID", u.ID.String()))
	return &LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.jwtCfg.AccessTokenTTL.Seconds()),
	}, nil
}

func (s *AuthServiceImpl) generateAccessToken(u *types.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: u.ID.String(),
		Email:  u.Email,
		Role:   string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			Issuer:    s.jwtCfg.Issuer,
			Audience:  jwt.ClaimStrings{s.jwtCfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtCfg.AccessTokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtCfg.SecretKey))
}
