package session_test

import (
	"net/http"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/micromanager/session"
	"github.com/jrsteele09/micromanager/session/storefake"
	"github.com/stretchr/testify/require"
)

func TestManager_Tokens(t *testing.T) {
	t.Run("absent access token", func(t *testing.T) {
		m := session.NewManager(storefake.NewFakeStore())
		_, ok, err := m.AccessToken()
		require.NoError(t, err)
		require.False(t, ok)

		tok, err := m.Token()
		require.NoError(t, err)
		require.Nil(t, tok)
	})

	t.Run("blank access token counts as absent", func(t *testing.T) {
		m := session.NewManager(storefake.NewFakeStoreWith(map[string]string{session.KeyAccessToken: "  "}))
		_, ok, err := m.AccessToken()
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("save overwrites both keys", func(t *testing.T) {
		store := storefake.NewFakeStoreWith(map[string]string{
			session.KeyAccessToken:  "A1",
			session.KeyRefreshToken: "R1",
		})
		m := session.NewManager(store)
		require.NoError(t, m.SaveTokens(session.Tokens{AccessToken: "A2", RefreshToken: "R2"}))
		require.Equal(t, map[string]string{
			session.KeyAccessToken:  "A2",
			session.KeyRefreshToken: "R2",
		}, store.Snapshot())
	})

	t.Run("empty refresh token removes the key", func(t *testing.T) {
		store := storefake.NewFakeStoreWith(map[string]string{session.KeyRefreshToken: "R1"})
		m := session.NewManager(store)
		require.NoError(t, m.SaveTokens(session.Tokens{AccessToken: "A2"}))
		require.Equal(t, map[string]string{session.KeyAccessToken: "A2"}, store.Snapshot())
	})

	t.Run("empty access token rejected", func(t *testing.T) {
		m := session.NewManager(storefake.NewFakeStore())
		require.Error(t, m.SaveTokens(session.Tokens{RefreshToken: "R"}))
	})

	t.Run("token attaches bearer header", func(t *testing.T) {
		m := session.NewManager(storefake.NewFakeStore())
		require.NoError(t, m.SaveTokens(session.Tokens{AccessToken: "opaque", RefreshToken: "R"}))
		tok, err := m.Token()
		require.NoError(t, err)
		require.Equal(t, "R", tok.RefreshToken)
		require.True(t, tok.Expiry.IsZero())

		req, err := http.NewRequest(http.MethodGet, "http://example.com", nil)
		require.NoError(t, err)
		tok.SetAuthHeader(req)
		require.Equal(t, "Bearer opaque", req.Header.Get("Authorization"))
	})
}

func TestManager_ClearIsIdempotent(t *testing.T) {
	store := storefake.NewFakeStore()
	m := session.NewManager(store)
	require.NoError(t, m.SaveTokens(session.Tokens{AccessToken: "A1", RefreshToken: "R1"}))
	require.NoError(t, m.SaveUser(session.User{Name: "Jane", Email: "jane@x.com"}))

	require.NoError(t, m.Clear())
	once := store.Snapshot()
	require.NoError(t, m.Clear())
	require.Equal(t, once, store.Snapshot())
	require.Empty(t, once)
}

func TestInspect(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub":   "user-1",
		"email": "jane@x.com",
		"name":  "Jane",
		"exp":   exp.Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	claims, err := session.Inspect(raw)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "jane@x.com", claims.Email)
	require.True(t, claims.ExpiresAt.Equal(exp))
	require.False(t, claims.Expired(time.Now()))
	require.True(t, claims.Expired(exp.Add(time.Second)))

	_, err = session.Inspect("opaque-token")
	require.ErrorIs(t, err, session.ErrNotJWT)

	m := session.NewManager(storefake.NewFakeStore())
	require.NoError(t, m.SaveTokens(session.Tokens{AccessToken: raw}))
	tok, err := m.Token()
	require.NoError(t, err)
	require.True(t, tok.Expiry.Equal(exp))
}

func TestMemoryStore(t *testing.T) {
	m := session.NewManager(session.NewMemoryStore())
	require.NoError(t, m.SaveTokens(session.Tokens{AccessToken: "A1", RefreshToken: "R1"}))
	require.NoError(t, m.SaveUser(session.User{Name: "Jane", Email: "jane@example.com"}))

	tok, ok, err := m.AccessToken()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "A1", tok)

	require.NoError(t, m.Clear())
	_, ok, err = m.AccessToken()
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = m.User()
	require.NoError(t, err)
	require.False(t, ok)
}
