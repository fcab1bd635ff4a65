// Package session manages the persisted client session: the access and refresh tokens
// returned by the login endpoint and the signed-in user's profile.
//
// The session lives in a Store, a durable key-value medium shared by every caller in the
// client. Implementations live in the storefake, filestore and redisstore sub-packages.
package session

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// Keys under which the session is persisted.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

// Store is a durable key-value medium. Get reports ok=false when the key is absent.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

// Tokens is the token pair issued by the login endpoint.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// User is the cached profile of the signed-in user.
type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Manager reads and writes the session keys of a Store.
type Manager struct {
	store Store
	lock  sync.Mutex // serialises multi-key writes
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// AccessToken returns the persisted access token. ok is false if there is none.
func (m *Manager) AccessToken() (string, bool, error) {
	token, ok, err := m.store.Get(KeyAccessToken)
	if err != nil {
		return "", false, errors.Wrap(err, "[Manager.AccessToken] store.Get")
	}
	if !ok || strings.TrimSpace(token) == "" {
		return "", false, nil
	}
	return token, true, nil
}

// Token returns the persisted tokens as a bearer oauth2.Token, or nil if there is no access
// token. Expiry is filled in when the access token is a JWT carrying an exp claim.
func (m *Manager) Token() (*oauth2.Token, error) {
	access, ok, err := m.AccessToken()
	if err != nil || !ok {
		return nil, err
	}
	refresh, _, err := m.store.Get(KeyRefreshToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Token] store.Get refresh")
	}
	tok := &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
	}
	if claims, err := Inspect(access); err == nil {
		tok.Expiry = claims.ExpiresAt
	}
	return tok, nil
}

// SaveTokens overwrites the persisted token pair. An empty refresh token removes the key.
func (m *Manager) SaveTokens(tokens Tokens) error {
	if strings.TrimSpace(tokens.AccessToken) == "" {
		return errors.New("[Manager.SaveTokens] access token is empty")
	}
	m.lock.Lock()
	defer m.lock.Unlock()

	if err := m.store.Set(KeyAccessToken, tokens.AccessToken); err != nil {
		return errors.Wrap(err, "[Manager.SaveTokens] store.Set access")
	}
	if tokens.RefreshToken == "" {
		if err := m.store.Remove(KeyRefreshToken); err != nil {
			return errors.Wrap(err, "[Manager.SaveTokens] store.Remove refresh")
		}
		return nil
	}
	if err := m.store.Set(KeyRefreshToken, tokens.RefreshToken); err != nil {
		return errors.Wrap(err, "[Manager.SaveTokens] store.Set refresh")
	}
	return nil
}

func (m *Manager) SaveUser(user User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "[Manager.SaveUser] json.Marshal")
	}
	if err := m.store.Set(KeyUser, string(data)); err != nil {
		return errors.Wrap(err, "[Manager.SaveUser] store.Set")
	}
	return nil
}

func (m *Manager) User() (User, bool, error) {
	raw, ok, err := m.store.Get(KeyUser)
	if err != nil {
		return User{}, false, errors.Wrap(err, "[Manager.User] store.Get")
	}
	if !ok {
		return User{}, false, nil
	}
	var user User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return User{}, false, errors.Wrap(err, "[Manager.User] json.Unmarshal")
	}
	return user, true, nil
}

// Clear removes every session key. Clearing an empty session is a no-op.
func (m *Manager) Clear() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, key := range []string{KeyAccessToken, KeyRefreshToken, KeyUser} {
		if err := m.store.Remove(key); err != nil {
			return errors.Wrapf(err, "[Manager.Clear] store.Remove %s", key)
		}
	}
	return nil
}
