package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultTokenTTL = time.Hour
	bearerPrefix    = "Bearer "
)

var (
	ErrMissingSigningSecret = errors.New("auth: signing secret must be provided")
	ErrMissingSubject       = errors.New("auth: subject claim must be provided")
	ErrTokenMalformed       = errors.New("auth: token malformed or signature invalid")
)

// AccountClaims is the JWT payload issued for an authenticated account.
type AccountClaims struct {
	Roles     []string `json:"roles"`
	AccountID int64    `json:"id"`
	jwt.RegisteredClaims
}

// TokenCodecConfig configures the bearer-token codec.
type TokenCodecConfig struct {
	SigningSecret []byte
	Issuer        string
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// TokenCodec issues and validates HS256-signed bearer tokens. The signing
// key is expanded from the configured secret once at construction and is
// stable across restarts for the same secret.
type TokenCodec struct {
	signingKey []byte
	issuer     string
	tokenTTL   time.Duration
	clock      func() time.Time
}

// NewTokenCodec constructs a TokenCodec with sane defaults.
func NewTokenCodec(cfg TokenCodecConfig) (*TokenCodec, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSigningSecret
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	key := sha256.Sum256(cfg.SigningSecret)
	return &TokenCodec{
		signingKey: key[:],
		issuer:     strings.TrimSpace(cfg.Issuer),
		tokenTTL:   ttl,
		clock:      clock,
	}, nil
}

// Issue produces a signed token whose subject is the account email and whose
// claims carry the account id and role set. Expiry is absolute: issuance time
// plus the configured validity window.
func (c *TokenCodec) Issue(accountID int64, email string, roles []string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", ErrMissingSubject
	}

	now := c.clock().UTC()
	claims := AccountClaims{
		Roles:     roles,
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    c.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.signingKey)
}

// Claims parses and verifies the token and returns its payload.
func (c *TokenCodec) Claims(tokenString string) (AccountClaims, error) {
	claims := &AccountClaims{}
	parsed, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
			}
			return c.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.clock),
	)
	if err != nil {
		return AccountClaims{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if parsed == nil || !parsed.Valid {
		return AccountClaims{}, ErrTokenMalformed
	}
	if claims.Subject == "" {
		return AccountClaims{}, ErrMissingSubject
	}
	return *claims, nil
}

// Subject extracts the account email from a verified token.
func (c *TokenCodec) Subject(tokenString string) (string, error) {
	claims, err := c.Claims(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// AccountID extracts the numeric account id from a verified token.
func (c *TokenCodec) AccountID(tokenString string) (int64, error) {
	claims, err := c.Claims(tokenString)
	if err != nil {
		return 0, err
	}
	return claims.AccountID, nil
}

// Validate reports whether the token is well formed, correctly signed, and
// not yet expired. It never panics and never propagates parse errors: any
// failure collapses to false. This is the sole gate used by the request
// authenticator.
func (c *TokenCodec) Validate(tokenString string) bool {
	_, err := c.Claims(tokenString)
	return err == nil
}

// FromHeader extracts the bearer token from an Authorization header value.
// Only the "Bearer <token>" scheme is recognized.
func FromHeader(headerValue string) (string, bool) {
	if !strings.HasPrefix(headerValue, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(headerValue, bearerPrefix))
	if token == "" {
		return "", false
	}
	return token, true
}
