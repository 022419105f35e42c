// Package middleware contains reusable HTTP middleware functions.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// JWTAuth returns an Echo middleware that validates a Bearer access
// token and injects the token's subject into the request context as a
// numeric user id.  The provided secret must match the one used when
// issuing tokens.  This middleware wraps every booking and reservation
// route; handlers read the authenticated user via `c.Get("user_id")`.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header starts with "Bearer " followed by the JWT.
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Parse with HS256 and our secret.  Any other signing
			// method is rejected outright; accepting the token's own
			// declared algorithm would let a forged token pick "none".
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			uid, ok := subjectID(claims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid subject"})
			}
			c.Set("user_id", uid)
			return next(c)
		}
	}
}

// subjectID normalizes the sub claim to a uint64 user id.  Tokens
// minted by this service carry a numeric subject, but tokens from the
// shared identity service encode it as a string.
func subjectID(claims jwt.MapClaims) (uint64, bool) {
	switch v := claims["sub"].(type) {
	case float64:
		if v <= 0 {
			return 0, false
		}
		return uint64(v), true
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil || n == 0 {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
