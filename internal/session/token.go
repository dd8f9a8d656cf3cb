package session

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/worklane/worklane/internal/shared"
)

// Claims is the payload of a Worklane access token. The token binds the
// acting subject to a tracked session; during a bypass the subject is the
// target and the original initiator travels alongside for audit surfaces.
type Claims struct {
	jwt.RegisteredClaims

	SessionID       string `json:"sid"`
	OriginalSubject int64  `json:"org,omitempty"`
	Bypass          bool   `json:"byp,omitempty"`
}

// SubjectID parses the registered subject claim.
func (c *Claims) SubjectID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// TokenCodec mints and verifies HS256 access tokens.
type TokenCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenCodec constructs a TokenCodec.
func NewTokenCodec(secret, issuer string, ttl time.Duration) *TokenCodec {
	return &TokenCodec{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// TTL exposes the configured access token lifetime.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Mint signs an access token for the acting subject bound to sessionID.
func (c *TokenCodec) Mint(subjectID int64, sessionID string, originalSubjectID int64, bypass bool, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(subjectID, 10),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		SessionID:       sessionID,
		OriginalSubject: originalSubjectID,
		Bypass:          bypass,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("session: sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature and expiry of a bearer token. Any failure maps
// to ErrUnauthenticated so callers prompt re-login without detail.
func (c *TokenCodec) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("session: unexpected signing method %v", token.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, shared.ErrUnauthenticated
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, shared.ErrUnauthenticated
	}
	return claims, nil
}
