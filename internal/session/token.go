package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"typing-duel/internal/models"
)

const DefaultTokenTTL = 2 * time.Hour

// Claims tie a connection to one player of one match.
type Claims struct {
	Code     string `json:"code"`
	PlayerID string `json:"pid"`
	jwt.RegisteredClaims
}

type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs an HS256 token for playerID in match code.
func (t *Tokens) Issue(code, playerID string) (string, error) {
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Code:     code,
		PlayerID: playerID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	})
	ss, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return ss, nil
}

// Verify checks signature and expiry. Any failure wraps models.ErrUnauthorized.
func (t *Tokens) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, fmt.Errorf("missing session token: %w", models.ErrUnauthorized)
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid session token: %w", errors.Join(models.ErrUnauthorized, err))
	}
	if claims.Code == "" || claims.PlayerID == "" {
		return nil, fmt.Errorf("incomplete session token: %w", models.ErrUnauthorized)
	}
	return claims, nil
}
