package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/micromanager/gateway"
	"github.com/jrsteele09/micromanager/internal/config"
	"github.com/jrsteele09/micromanager/micromanager"
	"github.com/jrsteele09/micromanager/session"
	"github.com/jrsteele09/micromanager/session/filestore"
	"github.com/jrsteele09/micromanager/session/redisstore"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

type app struct {
	cfg      config.Config
	client   *micromanager.Client
	registry *prometheus.Registry // nil unless metrics are collected
	in       io.Reader
	out      io.Writer
	closers  []func() error
}

func newApp(ctx context.Context, cfg config.Config, in io.Reader, out io.Writer, reg *prometheus.Registry) (*app, error) {
	a := &app{cfg: cfg, registry: reg, in: in, out: out}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	var metrics *gateway.Metrics
	if reg != nil {
		metrics = gateway.NewMetrics(reg)
	}
	client, err := micromanager.New(micromanager.Config{
		APIURL: cfg.GetAPIURL(),
		Doer:   &http.Client{Timeout: cfg.GetRequestTimeout()},
		Store:  store,
		Gateway: []gateway.Option{
			gateway.WithSingleFlight(cfg.GetSingleFlightRelogin()),
			gateway.WithLoginTimeout(cfg.GetLoginTimeout()),
			gateway.WithMetrics(metrics),
			gateway.WithListener(gateway.ListenerFunc(a.onSessionEvent)),
		},
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.client = client
	return a, nil
}

func (a *app) openStore(ctx context.Context) (session.Store, error) {
	switch a.cfg.GetSessionStore() {
	case config.StoreMemory:
		return session.NewMemoryStore(), nil
	case config.StoreRedis:
		store := redisstore.New(redisstore.Config{
			Addr:     a.cfg.GetRedisAddr(),
			Password: a.cfg.GetRedisPassword(),
			DB:       a.cfg.GetRedisDB(),
		})
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, errors.Wrap(err, "[app.openStore] redis")
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return filestore.New(a.cfg.GetSessionFile()), nil
	}
}

// onSessionEvent is the terminal's version of redirecting to the login page.
func (a *app) onSessionEvent(e gateway.Event) {
	switch e.Kind {
	case gateway.EventSessionExpired:
		fmt.Fprintf(a.out, "%s\nRun `micromanager login` to continue (%s).\n", e.Message, e.LoginRoute)
	case gateway.EventSignedOut:
		fmt.Fprintln(a.out, "Signed out.")
	}
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}
}

func displayAppname(out io.Writer, appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(out, myFigure.String())
}
