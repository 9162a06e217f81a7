package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pep299/econ-news-digest/internal/pipeline"
)

// Runner is the report pipeline as seen by the control surface
type Runner interface {
	Run(ctx context.Context) pipeline.Outcome
	Trigger(ctx context.Context)
	Status() pipeline.Status
}

// Schedule describes the timer trigger. It may be nil.
type Schedule interface {
	Next() time.Time
	Times() []string
}

// Options configures a Server
type Options struct {
	// TriggerToken protects /report with a bearer token when set.
	TriggerToken string
	Gatherer     prometheus.Gatherer
	Version      string
}

// Server holds the HTTP handlers and their dependencies
type Server struct {
	runner   Runner
	schedule Schedule
	opts     Options
	logger   *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(runner Runner, schedule Schedule, opts Options, logger *zap.Logger) *Server {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	return &Server{
		runner:   runner,
		schedule: schedule,
		opts:     opts,
		logger:   logger,
	}
}

// SetupRoutes configures HTTP routes
func (s *Server) SetupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)

	r.HandleFunc("/", s.indexHandler).Methods("GET")
	r.HandleFunc("/health", s.healthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})).Methods("GET")

	var report http.Handler = http.HandlerFunc(s.reportHandler)
	if s.opts.TriggerToken != "" {
		report = Auth(s.opts.TriggerToken)(report)
	}
	r.Handle("/report", report).Methods("GET", "POST")

	return r
}

// healthHandler answers while runs are in progress
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, Response{Status: "ok"})
}
