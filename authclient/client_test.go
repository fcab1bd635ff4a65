package authclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/jrsteele09/micromanager/authclient"
	"github.com/jrsteele09/micromanager/credentials"
	"github.com/jrsteele09/micromanager/gateway/doerfake"
	"github.com/stretchr/testify/require"
)

const baseURL = "http://api.test/api"

func TestNew(t *testing.T) {
	_, err := authclient.New("", nil)
	require.Error(t, err)

	_, err = authclient.New("api.test", nil)
	require.ErrorContains(t, err, "scheme and host")

	c, err := authclient.New(baseURL+"/", nil)
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestClient_Login(t *testing.T) {
	t.Run("success with user", func(t *testing.T) {
		doer := doerfake.NewFakeDoer().Handle("/api/auth/login", doerfake.JSON(http.StatusOK,
			`{"accessToken":"A1","refreshToken":"R1","user":{"name":"Jane","email":"jane@x.com"}}`))
		c, err := authclient.New(baseURL, doer)
		require.NoError(t, err)

		resp, err := c.Login(context.Background(), credentials.Credentials{Email: "jane@x.com", Password: "secret123"})
		require.NoError(t, err)
		require.Equal(t, "A1", resp.AccessToken)
		require.Equal(t, "R1", resp.RefreshToken)
		require.NotNil(t, resp.User)
		require.Equal(t, "Jane", resp.User.Name)

		calls := doer.Calls()
		require.Len(t, calls, 1)
		require.Equal(t, http.MethodPost, calls[0].Method)
		require.Equal(t, "application/json", calls[0].Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.Unmarshal(calls[0].Body, &body))
		require.Equal(t, map[string]string{"email": "jane@x.com", "password": "secret123"}, body)
	})

	t.Run("missing fields are rejected locally", func(t *testing.T) {
		doer := doerfake.NewFakeDoer()
		c, err := authclient.New(baseURL, doer)
		require.NoError(t, err)
		_, err = c.Login(context.Background(), credentials.Credentials{Email: "jane@x.com"})
		require.Error(t, err)
		require.Empty(t, doer.Calls())
	})

	t.Run("server rejection carries status", func(t *testing.T) {
		doer := doerfake.NewFakeDoer().Handle("/api/auth/login", doerfake.JSON(http.StatusUnauthorized, `{"message":"bad password"}`))
		c, err := authclient.New(baseURL, doer)
		require.NoError(t, err)

		_, err = c.Login(context.Background(), credentials.Credentials{Email: "jane@x.com", Password: "nope"})
		var authErr authclient.Error
		require.True(t, errors.As(err, &authErr))
		require.Equal(t, http.StatusUnauthorized, authErr.StatusCode())
		require.Equal(t, "bad password", authErr.Message)
	})

	t.Run("response without token", func(t *testing.T) {
		doer := doerfake.NewFakeDoer().Handle("/api/auth/login", doerfake.JSON(http.StatusOK, `{}`))
		c, err := authclient.New(baseURL, doer)
		require.NoError(t, err)
		_, err = c.Login(context.Background(), credentials.Credentials{Email: "jane@x.com", Password: "x"})
		require.ErrorContains(t, err, "no access token")
	})
}

func TestClient_Authenticate(t *testing.T) {
	doer := doerfake.NewFakeDoer().Handle("/api/auth/login", doerfake.JSON(http.StatusOK, `{"accessToken":"A2","refreshToken":"R2"}`))
	c, err := authclient.New(baseURL, doer)
	require.NoError(t, err)

	tokens, err := c.Authenticate(context.Background(), credentials.Credentials{Email: "u@x.com", Password: "p"})
	require.NoError(t, err)
	require.Equal(t, "A2", tokens.AccessToken)
	require.Equal(t, "R2", tokens.RefreshToken)
}

func TestClient_Register(t *testing.T) {
	valid := authclient.Registration{FirstName: "Jane", Email: "jane@x.com", Password: "longenough"}

	t.Run("validation", func(t *testing.T) {
		require.NoError(t, valid.Validate())

		r := valid
		r.FirstName = " "
		require.ErrorContains(t, r.Validate(), "first name")

		r = valid
		r.Email = "jane"
		require.ErrorContains(t, r.Validate(), "email")

		r = valid
		r.Password = "short"
		require.ErrorContains(t, r.Validate(), "at least 8 characters")
	})

	t.Run("posts the form", func(t *testing.T) {
		doer := doerfake.NewFakeDoer().Handle("/api/auth/register", doerfake.JSON(http.StatusCreated, `{}`))
		c, err := authclient.New(baseURL, doer)
		require.NoError(t, err)
		require.NoError(t, c.Register(context.Background(), valid))

		var body map[string]string
		require.NoError(t, json.Unmarshal(doer.Calls()[0].Body, &body))
		require.Equal(t, "Jane", body["firstName"])
	})

	t.Run("conflict", func(t *testing.T) {
		doer := doerfake.NewFakeDoer().Handle("/api/auth/register", doerfake.JSON(http.StatusConflict, `{"error":"user already exists"}`))
		c, err := authclient.New(baseURL, doer)
		require.NoError(t, err)
		err = c.Register(context.Background(), valid)
		require.ErrorContains(t, err, "user already exists")
	})
}
