package session

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var ErrNotJWT = errors.New("access token is not a JWT")

// Claims is the display subset of an access token's payload.
type Claims struct {
	Subject   string
	Email     string
	Name      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token carries an exp claim before now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Inspect decodes the access token claims without verifying the signature. The client
// never holds the signing key, so the result is informational only; the server remains
// the authority on whether a token is still accepted.
func Inspect(rawToken string) (Claims, error) {
	if strings.Count(rawToken, ".") != 2 {
		return Claims{}, ErrNotJWT
	}
	token, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return Claims{}, errors.Join(ErrNotJWT, err)
	}
	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return Claims{}, errors.New("error extracting claims")
	}

	var out Claims
	out.Subject, _ = claims.GetSubject()
	out.Email, _ = claims["email"].(string)
	out.Name, _ = claims["name"].(string)
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}
