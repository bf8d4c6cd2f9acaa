// server/internal/auth/auth.go
package auth

import (
	"errors"
	"fmt"
	"time"

	"garage-repair-api-server/internal/apperr"
	"garage-repair-api-server/internal/permission"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// JWTClaims defines the payload for the JWT.
type JWTClaims struct {
	UserID      string `json:"id"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
	WorkerID    string `json:"worker_id,omitempty"`
	jwt.RegisteredClaims
}

// Principal chuyển claims thành người dùng đang thao tác.
func (c *JWTClaims) Principal() permission.Principal {
	return permission.Principal{
		UserID:      c.UserID,
		Role:        permission.Role(c.Role),
		WorkerID:    c.WorkerID,
		DisplayName: c.DisplayName,
	}
}

// Hashing
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// TokenManager ký và kiểm tra JWT bằng secret lấy từ cấu hình.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}, nil
}

// Generate ký token cho principal.
func (m *TokenManager) Generate(p permission.Principal) (string, error) {
	claims := &JWTClaims{
		UserID:      p.UserID,
		Role:        string(p.Role),
		DisplayName: p.DisplayName,
		WorkerID:    p.WorkerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Parse kiểm tra chữ ký, hạn dùng và vai trò của token.
func (m *TokenManager) Parse(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: invalid or expired token", apperr.ErrUnauthorized)
	}
	if _, ok := permission.ParseRole(claims.Role); !ok {
		return nil, fmt.Errorf("%w: unknown role %q", apperr.ErrUnauthorized, claims.Role)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: token has no user id", apperr.ErrUnauthorized)
	}
	return claims, nil
}
