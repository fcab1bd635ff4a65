package tokenfakerepo

import (
	"sync"

	apperrors "github.com/jrsteele09/micromanager/internal/errors"
	"github.com/jrsteele09/micromanager/internal/devserver/token"
)

var _ token.RefreshTokenRepo = (*FakeTokenRepo)(nil)

type FakeTokenRepo struct {
	tokens  map[string]*token.RefreshToken
	userIDs map[string]string // user ID to token ID
	lock    sync.RWMutex
}

func NewFakeTokensRepo() token.RefreshTokenRepo {
	return &FakeTokenRepo{
		tokens:  make(map[string]*token.RefreshToken),
		userIDs: make(map[string]string),
	}
}

func (tr *FakeTokenRepo) Upsert(refreshToken *token.RefreshToken) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	tr.tokens[refreshToken.Token] = refreshToken
	tr.userIDs[refreshToken.UserID] = refreshToken.Token
	return nil
}

func (tr *FakeTokenRepo) Delete(token string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	rt, ok := tr.tokens[token]
	if !ok {
		return apperrors.ErrInvalidRefreshToken
	}
	delete(tr.userIDs, rt.UserID)
	delete(tr.tokens, rt.Token)
	return nil
}

func (tr *FakeTokenRepo) Get(token string) (*token.RefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	rt, ok := tr.tokens[token]
	if !ok {
		return nil, apperrors.ErrInvalidRefreshToken
	}
	return rt, nil
}

func (tr *FakeTokenRepo) GetByUserID(userID string) (*token.RefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	id, ok := tr.userIDs[userID]
	if !ok {
		return nil, apperrors.ErrInvalidRefreshToken
	}
	return tr.tokens[id], nil
}
