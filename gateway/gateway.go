// Package gateway wraps every protected MicroManager API call. It attaches the persisted
// bearer token, detects a rejected token (401/403), recovers once by logging in again with
// the cached credentials and retrying the call, and otherwise terminates the session.
//
// One invocation of Do makes at most three network calls: the original call, the silent
// login and the retry.
package gateway

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/micromanager/credentials"
	"github.com/jrsteele09/micromanager/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	defaultLoginTimeout = 10 * time.Second
	reloginFlightKey    = "relogin"
	requestIDHeader     = "X-Request-ID"
)

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Authenticator performs the login exchange used for silent re-login.
type Authenticator interface {
	Authenticate(ctx context.Context, creds credentials.Credentials) (session.Tokens, error)
}

type Gateway struct {
	doer         Doer
	session      *session.Manager
	creds        credentials.Cache
	auth         Authenticator
	baseURL      string
	listeners    []Listener
	singleFlight bool
	flight       singleflight.Group
	loginTimeout time.Duration
	metrics      *Metrics
	newRequestID func() string
}

type Option func(*Gateway)

// WithBaseURL sets the prefix for relative Request.Resource paths.
func WithBaseURL(baseURL string) Option {
	return func(g *Gateway) {
		g.baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	}
}

// WithListener adds a receiver for session lifecycle events.
func WithListener(l Listener) Option {
	return func(g *Gateway) {
		g.listeners = append(g.listeners, l)
	}
}

// WithoutSingleFlight lets concurrent callers that were rejected log in independently
// instead of sharing one in-flight login.
func WithoutSingleFlight() Option {
	return func(g *Gateway) {
		g.singleFlight = false
	}
}

// WithSingleFlight toggles the shared in-flight login.
func WithSingleFlight(enabled bool) Option {
	return func(g *Gateway) {
		g.singleFlight = enabled
	}
}

// WithLoginTimeout bounds the silent login call.
func WithLoginTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.loginTimeout = d
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithRequestIDFunc overrides the X-Request-ID generator (primarily for testing).
func WithRequestIDFunc(f func() string) Option {
	return func(g *Gateway) {
		g.newRequestID = f
	}
}

func New(doer Doer, sessions *session.Manager, creds credentials.Cache, auth Authenticator, options ...Option) (*Gateway, error) {
	if doer == nil {
		return nil, errors.New("[gateway.New] doer is required")
	}
	if sessions == nil {
		return nil, errors.New("[gateway.New] session manager is required")
	}
	if creds == nil {
		return nil, errors.New("[gateway.New] credential cache is required")
	}
	if auth == nil {
		return nil, errors.New("[gateway.New] authenticator is required")
	}

	g := &Gateway{
		doer:         doer,
		session:      sessions,
		creds:        creds,
		auth:         auth,
		singleFlight: true,
		loginTimeout: defaultLoginTimeout,
		newRequestID: uuid.NewString,
	}
	for _, opt := range options {
		opt(g)
	}
	return g, nil
}

// BaseURL is the prefix joined to relative resources.
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// SaveCredentials populates the credential cache after a successful interactive login.
func (g *Gateway) SaveCredentials(email, password string) {
	g.creds.Save(email, password)
}

// call tracks one invocation of Do through the state machine.
type call struct {
	id    string
	req   Request
	state State
}

func (c *call) advance(e event) {
	to := next(c.state, e)
	if to == StateInvalid {
		log.Error().Str("request_id", c.id).Str("from", c.state.String()).Int("event", int(e)).Msg("gateway: invalid state transition")
	}
	c.state = to
}

// Do sends req with the persisted bearer token. Non-auth statuses are returned unchanged.
// A 401/403 is never returned from the original call: it is either recovered by a silent
// re-login and a single retry, whose response is returned as is, or converted into
// ReloginUnavailableError / ReloginFailedError after the session is terminated.
func (g *Gateway) Do(ctx context.Context, req Request) (*Response, error) {
	token, ok, err := g.session.AccessToken()
	if err != nil {
		return nil, errors.Wrap(err, "[Gateway.Do] read access token")
	}

	c := &call{id: g.newRequestID(), req: req, state: initialState(ok)}
	defer func() { g.metrics.call(c.state) }()

	if c.state == StateNoCredential {
		log.Warn().Str("request_id", c.id).Str("resource", req.Resource).Msg("no access token, ending session")
		c.advance(eventTerminate)
		noCred := NoCredentialError{}
		g.terminate(EventSessionExpired, noCred)
		return nil, noCred
	}

	c.advance(eventSend)
	resp, err := g.send(ctx, c, token)
	if err != nil {
		c.advance(eventTransportFailure)
		log.Err(err).Str("request_id", c.id).Str("resource", req.Resource).Msg("gateway call failed")
		return nil, err
	}
	c.advance(classify(resp.StatusCode).event())
	if c.state == StateSuccess {
		return resp, nil
	}

	c.advance(eventRelogin)
	log.Warn().Str("request_id", c.id).Int("status", resp.StatusCode).Msg("access token rejected, attempting silent re-login")
	newToken, err := g.relogin(ctx, token, resp.StatusCode)
	if err != nil {
		c.advance(eventReloginFailed)
		return nil, err
	}

	c.advance(eventReloginSucceeded)
	resp, err = g.send(ctx, c, newToken)
	if err != nil {
		c.advance(eventTransportFailure)
		log.Err(err).Str("request_id", c.id).Str("resource", req.Resource).Msg("gateway retry failed")
		return nil, err
	}
	c.advance(classify(resp.StatusCode).event())
	return resp, nil
}

// EndSession clears the persisted session and notifies listeners of a sign out.
func (g *Gateway) EndSession() {
	g.terminate(EventSignedOut, nil)
}

func (g *Gateway) send(ctx context.Context, c *call, token string) (*Response, error) {
	var body io.Reader
	if len(c.req.Body) > 0 {
		body = bytes.NewReader(c.req.Body)
	}
	method := c.req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, g.resolve(c.req.Resource), body)
	if err != nil {
		return nil, errors.Wrap(err, "[Gateway.send] http.NewRequest")
	}
	if c.req.Header != nil {
		httpReq.Header = c.req.Header.Clone()
	}
	(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(httpReq)
	if httpReq.Header.Get(requestIDHeader) == "" {
		httpReq.Header.Set(requestIDHeader, c.id)
	}

	httpResp, err := g.doer.Do(httpReq)
	if err != nil {
		return nil, TransportError{Op: c.state.String(), Cause: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, TransportError{Op: c.state.String(), Cause: err}
	}
	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
	}, nil
}

func (g *Gateway) resolve(resource string) string {
	if strings.HasPrefix(resource, "http://") || strings.HasPrefix(resource, "https://") || g.baseURL == "" {
		return resource
	}
	if !strings.HasPrefix(resource, "/") {
		resource = "/" + resource
	}
	return g.baseURL + resource
}

// relogin obtains a fresh access token for a call whose token was rejected. Concurrent
// callers share one login when single-flight is enabled.
func (g *Gateway) relogin(ctx context.Context, rejected string, status int) (string, error) {
	// The login outlives any single caller: waiters share it and its storage writes must
	// complete even if the caller that started it goes away.
	loginCtx := context.WithoutCancel(ctx)
	if !g.singleFlight {
		return g.reloginOnce(loginCtx, rejected, status)
	}
	v, err, shared := g.flight.Do(reloginFlightKey, func() (any, error) {
		return g.reloginOnce(loginCtx, rejected, status)
	})
	if shared {
		log.Debug().Msg("joined in-flight re-login")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (g *Gateway) reloginOnce(ctx context.Context, rejected string, status int) (string, error) {
	// A concurrent caller may already have replaced the rejected token.
	if current, ok, err := g.session.AccessToken(); err == nil && ok && current != rejected {
		g.metrics.relogin("reused")
		return current, nil
	}

	creds, ok := g.creds.Read()
	if !ok {
		g.metrics.relogin("unavailable")
		log.Warn().Msg("no cached credentials for silent re-login")
		unavailable := ReloginUnavailableError{Status: status}
		g.terminate(EventSessionExpired, unavailable)
		return "", unavailable
	}

	loginCtx, cancel := context.WithTimeout(ctx, g.loginTimeout)
	defer cancel()

	tokens, err := g.auth.Authenticate(loginCtx, creds)
	if err != nil {
		g.metrics.relogin("failed")
		log.Err(err).Msg("silent re-login rejected")
		failed := ReloginFailedError{Status: statusOf(err), Cause: err}
		g.terminate(EventSessionExpired, failed)
		return "", failed
	}
	if err := g.session.SaveTokens(tokens); err != nil {
		g.metrics.relogin("failed")
		log.Err(err).Msg("could not persist re-login tokens")
		failed := ReloginFailedError{Cause: err}
		g.terminate(EventSessionExpired, failed)
		return "", failed
	}

	g.metrics.relogin("succeeded")
	log.Info().Msg("silent re-login succeeded")
	return tokens.AccessToken, nil
}

// terminate clears the persisted session and the cached credentials, then notifies
// listeners. A call still in flight can no longer log back in. Repeating it on an already
// cleared session only repeats the notification.
func (g *Gateway) terminate(kind EventKind, reason error) {
	g.creds.Clear()
	if err := g.session.Clear(); err != nil {
		log.Err(err).Msg("failed to clear session")
	}
	g.metrics.termination(kind)

	e := Event{Kind: kind, Reason: reason, LoginRoute: LoginRoute}
	if kind == EventSessionExpired {
		e.Message = SessionExpiredMessage
		log.Warn().AnErr("reason", reason).Msg("session terminated")
	}
	for _, l := range g.listeners {
		l.OnSessionEvent(e)
	}
}
