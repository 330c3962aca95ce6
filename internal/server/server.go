// Package server exposes the gate over HTTP.
//
// Routes:
//
//	GET  /healthz
//	GET  /v1/report-types
//	GET  /v1/report-types/{type}
//	POST /v1/report-types/{type}/validate
//	POST /v1/report-types/{type}/report
//	POST /v1/route
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/datapilot/reportgate/internal/dataagent"
	"github.com/datapilot/reportgate/internal/exportstore"
	"github.com/datapilot/reportgate/internal/gateagent"
	"github.com/datapilot/reportgate/internal/llm"
	"github.com/datapilot/reportgate/internal/logger"
	"github.com/datapilot/reportgate/internal/metadata"
)

// Server wires the agents behind a chi router.
type Server struct {
	gate         *gateagent.Agent
	data         *dataagent.Agent
	resolver     metadata.Resolver
	guidance     llm.Client        // nil disables LLM guidance
	export       exportstore.Store // nil serves reports inline instead of archiving
	exportBucket string
	log          *logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithGuidanceClient enables LLM guidance on validation responses.
func WithGuidanceClient(c llm.Client) Option {
	return func(s *Server) { s.guidance = c }
}

// WithExportStore archives generated reports to the given bucket and serves
// presigned download URLs instead of inline HTML.
func WithExportStore(store exportstore.Store, bucket string) Option {
	return func(s *Server) {
		s.export = store
		s.exportBucket = bucket
	}
}

// WithLogger sets the server logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

// New creates a Server. resolver maps domain names to metadata providers and
// may be nil when callers always post metadata inline.
func New(gate *gateagent.Agent, data *dataagent.Agent, resolver metadata.Resolver, opts ...Option) *Server {
	s := &Server{
		gate:     gate,
		data:     data,
		resolver: resolver,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.New(nil)
	}
	return s
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/report-types", s.handleListReportTypes)
		r.Get("/report-types/{type}", s.handleGetReportType)
		r.Post("/report-types/{type}/validate", s.handleValidate)
		r.Post("/report-types/{type}/report", s.handleBuildReport)
		r.Post("/route", s.handleRoute)
	})

	return r
}

// requestID tags every request with a correlation ID.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", id)

		log := s.log.With().Str("request_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(log.WithContext(r.Context())))
	})
}

// accessLog emits one structured line per request.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.FromContext(r.Context()).AccessEvent().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	})
}
