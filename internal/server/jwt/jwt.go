// Package jwt выпускает и проверяет bearer-токены доступа к серверу записей.
package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

const issuer = "fitsync"

// ErrInvalidToken возвращается для любого непрошедшего проверку токена
var ErrInvalidToken = errors.New("invalid token")

// Claims represents JWT claims
type Claims struct {
	OwnerID string `json:"owner_id"`
	gojwt.RegisteredClaims
}

// Service provides JWT token generation and validation
type Service struct {
	now    func() time.Time
	secret []byte
}

// NewService creates a new JWT service
// secret should be a cryptographically secure random string
func NewService(secret string) *Service {
	return &Service{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Issue создает access token владельца со сроком жизни ttl
func (s *Service) Issue(ownerID string, ttl time.Duration) (string, error) {
	if ownerID == "" {
		return "", errors.New("owner id is required")
	}

	now := s.now()
	claims := Claims{
		OwnerID: ownerID,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   ownerID,
			ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  gojwt.NewNumericDate(now),
			NotBefore: gojwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Validate валидирует и парсит access token
func (s *Service) Validate(tokenString string) (*Claims, error) {
	token, err := gojwt.ParseWithClaims(tokenString, &Claims{}, func(token *gojwt.Token) (any, error) {
		// Проверяем что используется правильный алгоритм подписи
		if _, ok := token.Method.(*gojwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		gojwt.WithIssuer(issuer),
		gojwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.OwnerID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
