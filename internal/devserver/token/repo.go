package token

import "time"

// RefreshToken is an opaque token issued alongside an access token.
type RefreshToken struct {
	Token  string
	UserID string
	Iat    time.Time
}

type RefreshTokenRepo interface {
	Upsert(refreshToken *RefreshToken) error
	Delete(token string) error
	Get(token string) (*RefreshToken, error)
	GetByUserID(userID string) (*RefreshToken, error)
}
