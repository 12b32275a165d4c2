// Package auth verifies the bearer token carried on approver-facing
// endpoints (PUT /approvals/{id}/decide). There is no login/refresh/
// blacklist flow here — approver identity tokens are issued by whatever
// identity provider sits in front of this service; this package only
// validates them.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrMissingActor = errors.New("missing approver id in claims")
)

// Claims identifies the approver and the level they are authorized to
// decide at, per 4.C4's per-level approver routing.
type Claims struct {
	jwt.RegisteredClaims
	ApproverID string   `json:"approverId"`
	Username   string   `json:"username"`
	Levels     []string `json:"levels,omitempty"`
}

// Service validates approver bearer tokens against a single shared secret.
type Service struct {
	secret []byte
	issuer string
}

// NewService builds a Service over secret; issuer is checked on validation
// when non-empty.
func NewService(secret []byte, issuer string) *Service {
	return &Service{secret: secret, issuer: issuer}
}

// ValidateToken parses and verifies tokenString, returning its Claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ApproverID == "" {
		return nil, ErrMissingActor
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateToken issues a token for approverID, used by tests and by the
// identity provider integration this service stands in for locally.
func (s *Service) GenerateToken(approverID, username string, levels []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    s.issuer,
		},
		ApproverID: approverID,
		Username:   username,
		Levels:     levels,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
