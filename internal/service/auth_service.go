package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/examprint/internal/config"
	"github.com/stemsi/examprint/internal/model"
)

var ErrTokenRevoked = errors.New("token has been revoked")

// Claims carries the identity resolved by the identity provider: who the user
// is, in which course, and with what role.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int64      `json:"user_id"`
	CourseID int64      `json:"course_id"`
	Role     model.Role `json:"role"`
}

// AuthService validates access tokens and keeps the revocation list.
type AuthService struct {
	cfg *config.Config
	rdb *redis.Client
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client) *AuthService {
	return &AuthService{cfg: cfg, rdb: rdb}
}

// GenerateToken signs a token for a user acting in a course. Used by tooling
// and tests; production tokens come from the identity provider with the same
// secret.
func (s *AuthService) GenerateToken(userID, courseID int64, role model.Role) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		UserID:   userID,
		CourseID: courseID,
		Role:     role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if !claims.Role.Valid() || claims.UserID <= 0 {
		return nil, errors.New("invalid token subject")
	}
	return claims, nil
}

// CheckRevoked fails with ErrTokenRevoked if the token id was revoked.
func (s *AuthService) CheckRevoked(ctx context.Context, claims *Claims) error {
	if claims.ID == "" {
		return nil
	}
	n, err := s.rdb.Exists(ctx, config.CacheKey.RevokedTokenKey(claims.ID)).Result()
	if err != nil {
		return fmt.Errorf("check revocation: %w", err)
	}
	if n > 0 {
		return ErrTokenRevoked
	}
	return nil
}

// Revoke blocks a token until its expiry.
func (s *AuthService) Revoke(ctx context.Context, claims *Claims) error {
	if claims.ID == "" {
		return errors.New("token has no id")
	}
	ttl := s.cfg.JWTExpiry
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, config.CacheKey.RevokedTokenKey(claims.ID), 1, ttl).Err()
}

// RequestContext builds the per-request context from validated claims.
func (c *Claims) RequestContext(now time.Time) model.RequestContext {
	return model.NewRequestContext(c.CourseID, c.UserID, c.Role, now)
}
