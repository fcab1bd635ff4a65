package devserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	RouteAPI = "/api"

	RouteRegister       = RouteAPI + "/auth/register"
	RouteLogin          = RouteAPI + "/auth/login"
	RouteListContainers = RouteAPI + "/containers/list"
	RouteNewImage       = RouteAPI + "/new/image"
	RouteNewContainer   = RouteAPI + "/new/container"
	RouteEditContainer  = RouteAPI + "/edit/container"
	RouteStartContainer = RouteAPI + "/start/container"
	RouteStopContainer  = RouteAPI + "/stop/container"
	RouteRemove         = RouteAPI + "/remove/container"
	RouteMetrics        = "/metrics"
)

func (s *Server) initRoutes() {
	// AUTH
	s.RegisterRouteHandler("POST "+RouteRegister, ChainMiddleware(s.RegisterHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))

	// CONTAINERS (bearer token required)
	s.RegisterRouteHandler("GET "+RouteListContainers, ChainMiddleware(s.ListContainersHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteNewImage, ChainMiddleware(s.NewImageHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteNewContainer, ChainMiddleware(s.NewContainerHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteEditContainer, ChainMiddleware(s.EditContainerHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteStartContainer, ChainMiddleware(s.SetRunningHandler(true), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteStopContainer, ChainMiddleware(s.SetRunningHandler(false), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteRemove, ChainMiddleware(s.RemoveContainerHandler(), s.APIMiddleware(s.RequireAuth())...))

	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	s.RegisterRouteFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, "not found", http.StatusNotFound)
	})
}
