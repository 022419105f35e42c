// Package utils provides helper functions for access-token creation.
package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken represents a signed JWT access token along with its
// expiry.  The Token field contains the JWT string; Exp stores the UTC
// expiration.  Access tokens are encoded in the Authorization header
// when calling protected endpoints.  Token issuance for real users
// lives in the identity service; this helper exists for local
// development and tests, which is why it mints with the same claims the
// middleware verifies.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for a user.  It takes
// the signing secret, the numeric user ID and a TTL in minutes, and
// returns the signed token with its expiration time.  The JWT carries
// the standard claims the auth middleware reads: subject (sub),
// expiration (exp) and issued at (iat).
func NewAccessToken(secret string, userID uint64, ttlMin int) (AccessToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": exp.Unix(),
		"iat": time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
