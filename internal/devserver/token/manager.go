// Package token issues and verifies the dev server's access and refresh tokens.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/micromanager/internal/errors"
	"github.com/jrsteele09/micromanager/internal/devserver/users"
	"github.com/pkg/errors"
)

const DefaultIssuer = "micromanager-devserver"

// Claims are the verified fields of an access token.
type Claims struct {
	Subject   string
	Email     string
	Name      string
	ExpiresAt time.Time
	ID        string
}

type Manager struct {
	signer             Signer
	refreshrepo        RefreshTokenRepo
	issuer             string
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	nowFunc            func() time.Time
}

type ManagerOption func(*Manager)

func WithTokenExpiry(accessTokenExpiry time.Duration, refreshTokenExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = accessTokenExpiry
		m.refreshTokenExpiry = refreshTokenExpiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func New(repo RefreshTokenRepo, signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		refreshrepo: repo,
		signer:      signer,
		issuer:      DefaultIssuer,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = 15 * time.Minute
	}
	if m.refreshTokenExpiry == 0 {
		m.refreshTokenExpiry = 7 * 24 * time.Hour
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

func (c *Manager) CreateAccessToken(user *users.User) (string, error) {
	now := c.nowFunc()
	claims := jwt.MapClaims{
		"iss":   c.issuer,
		"sub":   user.ID,
		"email": user.Email,
		"name":  user.FirstName,
		"iat":   now.Unix(),
		"exp":   now.Add(c.accessTokenExpiry).Unix(),
		"jti":   uuid.New().String(),
	}
	return c.signer.Sign(claims)
}

// CreateRefreshToken replaces any refresh token the user already holds.
func (c *Manager) CreateRefreshToken(userID string) (string, error) {
	if existingToken, err := c.refreshrepo.GetByUserID(userID); err == nil && existingToken != nil {
		if err := c.refreshrepo.Delete(existingToken.Token); err != nil {
			return "", errors.Wrap(err, "Manager.CreateRefreshToken Delete")
		}
	}

	tokenBytes := make([]byte, 32) // 256 bits
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", errors.Wrap(err, "Manager.CreateRefreshToken rand.Read")
	}

	tokenStr := hex.EncodeToString(tokenBytes)
	if err := c.refreshrepo.Upsert(&RefreshToken{
		Token:  tokenStr,
		UserID: userID,
		Iat:    c.nowFunc(),
	}); err != nil {
		return "", errors.Wrap(err, "Manager.CreateRefreshToken Upsert")
	}
	return tokenStr, nil
}

// RefreshTokenValid reports whether token was issued and has not yet expired.
func (c *Manager) RefreshTokenValid(token string) bool {
	rt, err := c.refreshrepo.Get(token)
	if err != nil || rt == nil {
		return false
	}
	return c.nowFunc().Sub(rt.Iat) <= c.refreshTokenExpiry
}

// Verify checks the signature, issuer and expiry of an access token.
func (c *Manager) Verify(rawToken string) (Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return Claims{}, apperrors.ErrInvalidToken
	}

	token, err := jwt.Parse(rawToken, c.signer.GetVerificationKey,
		jwt.WithValidMethods([]string{c.signer.GetSigningMethod().Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.nowFunc),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, apperrors.ErrTokenExpired
		}
		return Claims{}, apperrors.Wrapf(apperrors.ErrInvalidToken, "%v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Claims{}, apperrors.ErrInvalidToken
	}

	out := Claims{}
	out.Subject, _ = claims["sub"].(string)
	out.Email, _ = claims["email"].(string)
	out.Name, _ = claims["name"].(string)
	out.ID, _ = claims["jti"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}
