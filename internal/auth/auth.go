// Package auth issues and verifies bearer tokens and resolves the caller of
// an HTTP request.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/zulandar/switchyard/internal/apperr"
)

const (
	issuer     = "switchyard"
	contextKey = "switchyard.user_id"
)

// Tokens signs and verifies HS256 tokens whose subject is a user ID.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens returns a token service. ttl must be positive.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for userID and its expiry.
func (t *Tokens) Issue(userID string) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify returns the user ID a token was issued for.
func (t *Tokens) Verify(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", fmt.Errorf("auth: %w: %w", apperr.ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("auth: %w: token has no subject", apperr.ErrUnauthenticated)
	}
	return claims.Subject, nil
}

// BearerToken extracts the token from an "Authorization: Bearer ..." header.
// Browsers cannot set headers on websocket or EventSource requests, so a
// "token" query parameter is accepted as a fallback.
func BearerToken(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", errors.New("invalid authorization format")
		}
		return parts[1], nil
	}
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok, nil
	}
	return "", errors.New("missing authorization header")
}

// Middleware rejects requests without a valid token and stores the caller's
// user ID in the gin context.
func (t *Tokens) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, err := BearerToken(c.Request)
		if err != nil {
			abort(c, fmt.Errorf("auth: %w: %w", apperr.ErrUnauthenticated, err))
			return
		}
		userID, err := t.Verify(tok)
		if err != nil {
			abort(c, err)
			return
		}
		c.Set(contextKey, userID)
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperr.HTTPStatus(err), apperr.BodyOf(err))
}

// UserID returns the authenticated caller set by Middleware.
func UserID(c *gin.Context) string {
	return c.GetString(contextKey)
}
