// Package authclient talks to the MicroManager login and registration endpoints.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/jrsteele09/micromanager/credentials"
	"github.com/jrsteele09/micromanager/gateway"
	"github.com/jrsteele09/micromanager/session"
	"github.com/pkg/errors"
)

const (
	RouteLogin    = "/auth/login"
	RouteRegister = "/auth/register"

	MinPasswordLength = 8
)

var _ gateway.Authenticator = (*Client)(nil)

// Client issues login and registration requests. It never attaches a bearer token.
type Client struct {
	baseURL string
	doer    gateway.Doer
}

// LoginResponse mirrors the login endpoint body. User is optional.
type LoginResponse struct {
	session.Tokens
	User *session.User `json:"user,omitempty"`
}

// Registration is the sign-up form.
type Registration struct {
	FirstName string `json:"firstName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Error conveys a non-2xx response from the auth endpoints.
type Error struct {
	Status  int
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("authclient: http %d: %s", e.Status, strings.TrimSpace(e.Message))
}

func (e Error) StatusCode() int { return e.Status }

func New(baseURL string, doer gateway.Doer) (*Client, error) {
	base := strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, errors.New("[authclient.New] base url required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, errors.Wrap(err, "[authclient.New] invalid base url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("[authclient.New] base url must include scheme and host")
	}
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{baseURL: base, doer: doer}, nil
}

// Login exchanges an email/password pair for a token pair.
func (c *Client) Login(ctx context.Context, creds credentials.Credentials) (LoginResponse, error) {
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return LoginResponse{}, errors.New("[Client.Login] email and password required")
	}

	body, err := c.post(ctx, RouteLogin, creds)
	if err != nil {
		return LoginResponse{}, errors.Wrap(err, "[Client.Login]")
	}
	var resp LoginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return LoginResponse{}, errors.Wrap(err, "[Client.Login] decode response")
	}
	if strings.TrimSpace(resp.AccessToken) == "" {
		return LoginResponse{}, errors.New("[Client.Login] response has no access token")
	}
	return resp, nil
}

// Authenticate implements gateway.Authenticator.
func (c *Client) Authenticate(ctx context.Context, creds credentials.Credentials) (session.Tokens, error) {
	resp, err := c.Login(ctx, creds)
	if err != nil {
		return session.Tokens{}, err
	}
	return resp.Tokens, nil
}

// Register creates an account. It does not sign the user in.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	if _, err := c.post(ctx, RouteRegister, reg); err != nil {
		return errors.Wrap(err, "[Client.Register]")
	}
	return nil
}

// Validate checks the sign-up form before it is sent.
func (r Registration) Validate() error {
	if strings.TrimSpace(r.FirstName) == "" {
		return errors.New("first name is required")
	}
	if !strings.Contains(r.Email, "@") {
		return errors.New("a valid email is required")
	}
	if utf8.RuneCountInString(r.Password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, Error{Status: resp.StatusCode, Message: errorMessage(body, resp.Status)}
	}
	return body, nil
}

// errorMessage pulls a message out of {"error": "..."} or {"message": "..."} bodies.
func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	if len(bytes.TrimSpace(body)) > 0 {
		return string(body)
	}
	return fallback
}
