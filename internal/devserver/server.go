// Package devserver is a local stand-in for the MicroManager backend. It serves the auth
// and container routes the client uses, with in-memory state and short-lived JWTs.
package devserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/micromanager/internal/config"
	"github.com/jrsteele09/micromanager/internal/devserver/registry"
	"github.com/jrsteele09/micromanager/internal/devserver/token"
	tokenfakerepo "github.com/jrsteele09/micromanager/internal/devserver/token/repofake"
	"github.com/jrsteele09/micromanager/internal/devserver/users"
	fakeuserrepo "github.com/jrsteele09/micromanager/internal/devserver/users/repofake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

type Config interface {
	config.EnvConfig
	config.DevServerConfig
}

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	users    users.UserRepo
	tokens   *token.Manager
	registry *registry.Registry
	metrics  *serverMetrics
	gatherer prometheus.Gatherer
	nowFunc  func() time.Time
}

type Option func(*Server)

// WithNowFunc sets the clock used for tokens and container timestamps.
func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = now
	}
}

func WithUserRepo(repo users.UserRepo) Option {
	return func(s *Server) {
		s.users = repo
	}
}

func New(cfg Config, options ...Option) *Server {
	reg := prometheus.NewRegistry()
	s := &Server{
		env:      cfg.GetEnv(),
		mux:      http.NewServeMux(),
		metrics:  newServerMetrics(reg),
		gatherer: reg,
		nowFunc:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.users == nil {
		s.users = fakeuserrepo.NewFakeUserRepo()
	}
	s.registry = registry.New(s.nowFunc)
	s.tokens = token.New(tokenfakerepo.NewFakeTokensRepo(), token.NewHMACSigner(cfg.GetTokenSecret()),
		token.WithTokenExpiry(cfg.GetAccessTokenExpiry(), cfg.GetRefreshTokenExpiry()),
		token.WithNowFunc(s.nowFunc),
	)

	s.initRoutes()
	s.logRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Debug().Msgf("[%-19s] %s", colouredMethod(method), path)
}
