package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/docstore-labs/deptdocs-api/internal/models"
	"github.com/docstore-labs/deptdocs-api/pkg/config"
	appErrors "github.com/docstore-labs/deptdocs-api/pkg/errors"
)

type userFinder interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// AuthService issues and validates access tokens.
type AuthService struct {
	users userFinder
	cfg   config.JWTConfig
}

// NewAuthService constructs the service.
func NewAuthService(users userFinder, cfg config.JWTConfig) *AuthService {
	return &AuthService{users: users, cfg: cfg}
}

// Login verifies credentials and issues a signed token carrying the
// user's identity, role and department.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Internal(err, "look up user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, appErrors.ErrInactiveAccount
	}

	now := time.Now().UTC()
	claims := models.JWTClaims{
		UserID:       user.ID,
		Role:         user.Role,
		DepartmentID: user.DepartmentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.Expiration)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, appErrors.Internal(err, "sign token")
	}

	return &models.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.cfg.Expiration.Seconds()),
		IssuedAt:    now,
		User: models.UserInfo{
			ID:           user.ID,
			Username:     user.Username,
			Role:         user.Role,
			DepartmentID: user.DepartmentID,
		},
	}, nil
}

// ValidateToken parses and verifies a signed token string.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.ErrUnauthenticated
	}
	return claims, nil
}

// Authenticate validates the token and re-checks the account against the
// database so deactivated users lose access before their token expires.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrUnauthenticated
		}
		return nil, appErrors.Internal(err, "look up user")
	}
	if !user.IsActive {
		return nil, appErrors.ErrInactiveAccount
	}

	return claims, nil
}
