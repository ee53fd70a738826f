package api

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"watchkeeper/internal/handlers"
	"watchkeeper/internal/middleware"
)

// Deps are the services the HTTP surface is wired to.
type Deps struct {
	Worker interface {
		handlers.Controller
		handlers.WorkerStatus
	}
	Updates   handlers.UpdateTrigger
	Status    handlers.StatusProvider
	Hostname  string
	Username  string
	Password  string
	Logger    *slog.Logger
	Templates fs.FS
	Static    fs.FS
}

type Router struct {
	*mux.Router
}

func NewRouter(d Deps) (*Router, error) {
	r := mux.NewRouter()

	dashHandler, err := handlers.NewDashboardHandler(d.Templates, d.Status, d.Hostname, d.Logger)
	if err != nil {
		return nil, err
	}
	ctrlHandler := handlers.NewControlHandler(d.Worker, d.Updates, d.Status, d.Logger)
	healthHandler := handlers.NewHealthHandler(d.Worker, d.Logger)

	r.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)
	r.HandleFunc("/ready", healthHandler.Ready).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/", dashHandler.Dashboard).Methods(http.MethodGet)

	staticHandler := http.FileServer(http.FS(d.Static))
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", staticHandler))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", ctrlHandler.Status).Methods(http.MethodGet)
	api.HandleFunc("/logs", ctrlHandler.Logs).Methods(http.MethodGet)

	control := r.PathPrefix("/control").Subrouter()
	if d.Username != "" && d.Password != "" {
		control.Use(middleware.BasicAuth(d.Username, d.Password, "watchkeeper", d.Logger))
	}
	control.HandleFunc("/restart", ctrlHandler.Restart).Methods(http.MethodPost)
	control.HandleFunc("/autorestart", ctrlHandler.AutoRestart).Methods(http.MethodPost)
	control.HandleFunc("/update", ctrlHandler.Update).Methods(http.MethodPost)

	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.Logging(d.Logger))

	return &Router{Router: r}, nil
}
