// Package api exposes the knowledge base and questionnaire filling over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/barekit/dossier/pkg/answer"
	"github.com/barekit/dossier/pkg/document"
	"github.com/barekit/dossier/pkg/export"
	"github.com/barekit/dossier/pkg/knowledge"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultMaxUploadBytes bounds request bodies unless overridden.
const DefaultMaxUploadBytes = 32 << 20

// Server routes HTTP requests to the knowledge base, parser, synthesizer
// and exporter.
type Server struct {
	router    chi.Router
	knowledge *knowledge.Base
	answers   *answer.Synthesizer
	parser    *document.Parser
	exporter  *export.Exporter

	modelConfigured bool
	maxUpload       int64
	logger          *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithModelConfigured sets what the health endpoint reports about the
// language model.
func WithModelConfigured(configured bool) Option {
	return func(s *Server) {
		s.modelConfigured = configured
	}
}

// WithMaxUploadBytes limits request bodies.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Server with all routes registered.
func New(kb *knowledge.Base, answers *answer.Synthesizer, parser *document.Parser, exporter *export.Exporter, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		knowledge: kb,
		answers:   answers,
		parser:    parser,
		exporter:  exporter,
		maxUpload: DefaultMaxUploadBytes,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(cors)
	r.Use(maxBody(s.maxUpload))

	r.Get("/", s.handleRoot)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Get("/sources", s.handleSources)

		r.Get("/knowledge", s.handleKnowledge)
		r.Post("/knowledge/add", s.handleAdd)
		r.Post("/knowledge/backfill", s.handleBackfill)
		r.Delete("/knowledge/source/{source_file}", s.handleDeleteSource)
		r.Delete("/knowledge/clear", s.handleClear)

		r.Post("/upload-knowledge", s.handleUploadKnowledge)
		r.Post("/fill-questionnaire", s.handleFillQuestionnaire)
		r.Post("/answer-question", s.handleAnswerQuestion)
		r.Post("/export", s.handleExport)
	})
}
