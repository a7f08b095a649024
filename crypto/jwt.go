package crypto

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinKeyLength is the minimum required length, in bytes, for a JWT signing
// secret. 32 bytes (256 bits) is the minimum recommended for HMAC-SHA256.
const MinKeyLength = 32

var (
	ErrJwtTokenExpired         = errors.New("token expired")
	ErrJwtInvalidToken         = errors.New("invalid token")
	ErrJwtInvalidSigningMethod = errors.New("unexpected signing method")
	ErrJwtInvalidSecretLength  = errors.New("invalid secret length")
	ErrTokenUsedBeforeIssued   = errors.New("token used before issued")
)

// ClientClaims is carried by the short-lived bearer POST /client/login
// issues, used to authorize PUT /client/webhook.
type ClientClaims struct {
	TenantID int64  `json:"tenant_id"`
	AppID    string `json:"app_id"`
	jwt.RegisteredClaims
}

func translateJWTError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrJwtTokenExpired
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued), errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrTokenUsedBeforeIssued
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrJwtInvalidSigningMethod
	default:
		return fmt.Errorf("%w: %v", ErrJwtInvalidToken, err)
	}
}

// NewClientToken issues a short-lived bearer token for a tenant, signed with
// the server-wide Jwt.ClientSecret.
func NewClientToken(tenantID int64, appID, secret string, duration time.Duration) (string, error) {
	if len(secret) < MinKeyLength {
		return "", ErrJwtInvalidSecretLength
	}

	now := time.Now()
	claims := ClientClaims{
		TenantID: tenantID,
		AppID:    appID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseClientToken verifies and parses a client bearer token.
func ParseClientToken(tokenString, secret string) (*ClientClaims, error) {
	claims := &ClientClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)

	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: %v", ErrJwtInvalidSigningMethod, t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, translateJWTError(err)
	}
	return claims, nil
}
