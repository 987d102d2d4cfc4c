// Package auth issues and verifies the HMAC-signed bearer tokens that gate
// the export endpoints.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrBadCredentials is returned when the supplied username/password pair
// does not match the configured dashboard credentials.
var ErrBadCredentials = errors.New("invalid username or password")

// ErrInvalidToken is returned for a missing, malformed, expired, or
// wrongly-signed token.
var ErrInvalidToken = errors.New("invalid or expired token")

// tokenTTL is how long an issued token stays valid.
const tokenTTL = 24 * time.Hour

// Authenticator issues and verifies access tokens against a single
// configured credential pair.
type Authenticator struct {
	secret   []byte
	username string
	password string
}

// New builds an authenticator with the given signing secret and credentials.
func New(secret, username, password string) *Authenticator {
	return &Authenticator{
		secret:   []byte(secret),
		username: username,
		password: password,
	}
}

// IssueToken validates the credentials and returns a signed access token.
func (a *Authenticator) IssueToken(username, password string) (string, error) {
	if username != a.username || password != a.password {
		return "", ErrBadCredentials
	}

	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": username,
		"iat": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
	})
	return token.SignedString(a.secret)
}

// Verify checks the signature and expiry of an access token.
func (a *Authenticator) Verify(tokenString string) error {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}
