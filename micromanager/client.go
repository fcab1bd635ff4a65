// Package micromanager is the client for the MicroManager control plane: sign-in,
// registration and microservice management.
//
// Every protected call goes through a gateway.Gateway, so an expired access token is
// recovered by a silent re-login when the process still holds the credentials of the
// last interactive login.
package micromanager

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/micromanager/authclient"
	"github.com/jrsteele09/micromanager/credentials"
	"github.com/jrsteele09/micromanager/gateway"
	"github.com/jrsteele09/micromanager/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const DefaultTimeout = 30 * time.Second

// Config wires a Client. APIURL and Store are required.
type Config struct {
	APIURL      string // e.g. http://localhost:8080/api
	Doer        gateway.Doer
	Store       session.Store
	Credentials credentials.Cache
	Gateway     []gateway.Option
}

type Client struct {
	apiURL   string
	auth     *authclient.Client
	sessions *session.Manager
	gw       *gateway.Gateway
}

func New(cfg Config) (*Client, error) {
	if cfg.Store == nil {
		return nil, errors.New("[micromanager.New] session store is required")
	}
	doer := cfg.Doer
	if doer == nil {
		doer = &http.Client{Timeout: DefaultTimeout}
	}
	auth, err := authclient.New(cfg.APIURL, doer)
	if err != nil {
		return nil, errors.Wrap(err, "[micromanager.New]")
	}
	creds := cfg.Credentials
	if creds == nil {
		creds = credentials.NewMemoryCache()
	}
	apiURL := strings.TrimSuffix(strings.TrimSpace(cfg.APIURL), "/")
	sessions := session.NewManager(cfg.Store)

	options := append([]gateway.Option{gateway.WithBaseURL(apiURL)}, cfg.Gateway...)
	gw, err := gateway.New(doer, sessions, creds, auth, options...)
	if err != nil {
		return nil, errors.Wrap(err, "[micromanager.New]")
	}
	return &Client{apiURL: apiURL, auth: auth, sessions: sessions, gw: gw}, nil
}

// Login signs in interactively. The token pair and profile are persisted and the
// credentials are kept in process memory for silent re-login.
func (c *Client) Login(ctx context.Context, email, password string) (session.User, error) {
	creds := credentials.Credentials{Email: strings.TrimSpace(email), Password: password}
	resp, err := c.auth.Login(ctx, creds)
	if err != nil {
		return session.User{}, errors.Wrap(err, "[Client.Login]")
	}
	if err := c.sessions.SaveTokens(resp.Tokens); err != nil {
		return session.User{}, errors.Wrap(err, "[Client.Login] save tokens")
	}

	user := session.User{Email: creds.Email}
	if resp.User != nil {
		user = *resp.User
	} else if claims, err := session.Inspect(resp.AccessToken); err == nil && claims.Name != "" {
		user.Name = claims.Name
	}
	if err := c.sessions.SaveUser(user); err != nil {
		return session.User{}, errors.Wrap(err, "[Client.Login] save user")
	}

	c.gw.SaveCredentials(creds.Email, creds.Password)
	log.Info().Str("email", user.Email).Msg("signed in")
	return user, nil
}

// Logout ends the session. Listeners receive a signed out event.
func (c *Client) Logout() {
	c.gw.EndSession()
}

func (c *Client) Register(ctx context.Context, reg authclient.Registration) error {
	if err := c.auth.Register(ctx, reg); err != nil {
		return errors.Wrap(err, "[Client.Register]")
	}
	return nil
}

// Whoami returns the persisted profile and the decoded access token claims.
// ok is false when nobody is signed in.
func (c *Client) Whoami() (session.User, session.Claims, bool, error) {
	token, ok, err := c.sessions.AccessToken()
	if err != nil || !ok {
		return session.User{}, session.Claims{}, false, err
	}
	user, _, err := c.sessions.User()
	if err != nil {
		return session.User{}, session.Claims{}, false, err
	}
	claims, err := session.Inspect(token)
	if err != nil && !errors.Is(err, session.ErrNotJWT) {
		return session.User{}, session.Claims{}, false, err
	}
	return user, claims, true, nil
}

// Gateway exposes the underlying gateway for callers issuing their own protected requests.
func (c *Client) Gateway() *gateway.Gateway {
	return c.gw
}
