package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/eblago/backend/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

// Claims holds JWT claims including user ID and role.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
	Type   string    `json:"typ"`
	jwt.RegisteredClaims
}

// JWTService issues and validates access and refresh tokens. Each kind has its own secret.
type JWTService struct {
	secret        []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewJWTService creates a JWT service.
func NewJWTService(secret, refreshSecret string, expireHours, refreshExpireHours int) *JWTService {
	return &JWTService{
		secret:        []byte(secret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     time.Duration(expireHours) * time.Hour,
		refreshTTL:    time.Duration(refreshExpireHours) * time.Hour,
		now:           time.Now,
	}
}

// Generate creates a new access token for the user.
func (s *JWTService) Generate(userID uuid.UUID, email, role string) (string, error) {
	return s.sign(s.secret, s.accessTTL, tokenAccess, userID, email, role)
}

// GenerateRefresh creates a refresh token for the user.
func (s *JWTService) GenerateRefresh(userID uuid.UUID, email, role string) (string, error) {
	return s.sign(s.refreshSecret, s.refreshTTL, tokenRefresh, userID, email, role)
}

func (s *JWTService) sign(secret []byte, ttl time.Duration, typ string, userID uuid.UUID, email, role string) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Validate parses and validates an access token, returning claims or error.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	return s.parse(tokenString, s.secret, tokenAccess)
}

// ValidateRefresh parses and validates a refresh token.
func (s *JWTService) ValidateRefresh(tokenString string) (*Claims, error) {
	return s.parse(tokenString, s.refreshSecret, tokenRefresh)
}

// VerifyAccess validates an access token and returns the caller it names.
func (s *JWTService) VerifyAccess(tokenString string) (models.Actor, error) {
	claims, err := s.Validate(tokenString)
	if err != nil {
		return models.Actor{}, err
	}
	return models.Actor{ID: claims.UserID, Email: claims.Email, Role: models.Role(claims.Role)}, nil
}

func (s *JWTService) parse(tokenString string, secret []byte, typ string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Type != typ || claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
