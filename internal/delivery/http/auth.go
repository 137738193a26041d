package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cinetick/cinetick/internal/domain"
)

type ctxKey int

const sessionKey ctxKey = iota

// sessionClaims carries the backend account session inside the API token, so
// every request arrives with the credentials the backend calls need.
type sessionClaims struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Token    string `json:"token"`
	OpenID   string `json:"open_id,omitempty"`
	CinemaID string `json:"cinema_id,omitempty"`
	jwt.RegisteredClaims
}

type authenticator struct {
	secret []byte
	expiry time.Duration
}

func newAuthenticator(secret string, expiry time.Duration) *authenticator {
	return &authenticator{secret: []byte(secret), expiry: expiry}
}

func (a *authenticator) mint(tenantID string, sess domain.AccountSession) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		TenantID: tenantID,
		UserID:   sess.UserID,
		Token:    sess.Token,
		OpenID:   sess.OpenID,
		CinemaID: sess.CinemaID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.Ref(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *authenticator) parse(tokenString string) (string, domain.AccountSession, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil {
		return "", domain.AccountSession{}, err
	}
	sess := domain.AccountSession{
		UserID:   claims.UserID,
		Token:    claims.Token,
		OpenID:   claims.OpenID,
		CinemaID: claims.CinemaID,
	}
	return claims.TenantID, sess, nil
}

// middleware rejects requests without a valid bearer token and stashes the
// decoded session in the request context.
func (a *authenticator) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
			return
		}
		tenantID, sess, err := a.parse(raw)
		if err != nil {
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, authedSession{tenantID: tenantID, sess: sess})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type authedSession struct {
	tenantID string
	sess     domain.AccountSession
}

func sessionFrom(ctx context.Context) (authedSession, bool) {
	s, ok := ctx.Value(sessionKey).(authedSession)
	return s, ok
}
