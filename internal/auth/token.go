package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "tuneedit-api"

// ErrSecretMissing is returned when tokens are issued without a signing secret.
var ErrSecretMissing = errors.New("session secret is not configured")

// SessionClaims binds a token to one editor session.
type SessionClaims struct {
	SessionID string `json:"sessionId"`
	ChatID    string `json:"chatId,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and validates session tokens using HMAC.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for the session and its expiry.
func (i *Issuer) Issue(sessionID, chatID string) (string, time.Time, error) {
	if len(i.secret) == 0 {
		return "", time.Time{}, ErrSecretMissing
	}

	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := SessionClaims{
		SessionID: sessionID,
		ChatID:    chatID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate parses a token, checking signature, expiry and issuer.
func (i *Issuer) Validate(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(i.now))

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}
