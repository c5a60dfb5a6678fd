package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/barekit/dossier/pkg/answer"
	"github.com/barekit/dossier/pkg/document"
	"github.com/barekit/dossier/pkg/export"
	"github.com/barekit/dossier/pkg/knowledge"
	"github.com/go-chi/chi/v5"
)

// Multipart parts beyond this size spill to temporary files.
const multipartMemory = 8 << 20

type healthResponse struct {
	Status           string `json:"status"`
	APIKeyConfigured bool   `json:"api_key_configured"`
}

type pairView struct {
	ID         string `json:"id"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	SourceFile string `json:"source_file"`
	Category   string `json:"category"`
}

type knowledgeResponse struct {
	Count int        `json:"count"`
	Pairs []pairView `json:"pairs"`
}

type addRequest struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	SourceFile string `json:"source_file"`
	Category   string `json:"category"`
}

type addResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type uploadResponse struct {
	Message    string `json:"message"`
	Count      int    `json:"count"`
	SourceFile string `json:"source_file"`
}

type backfillResponse struct {
	Message string `json:"message"`
	Updated int    `json:"updated"`
}

type fillResponse struct {
	Filename       string          `json:"filename"`
	TotalQuestions int             `json:"total_questions"`
	Summary        answer.Summary  `json:"summary"`
	Results        []answer.Result `json:"results"`
}

type questionRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Questionnaire Assistant API",
		"health":  "/api/health",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, healthResponse{Status: "healthy", APIKeyConfigured: s.modelConfigured})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.knowledge.Store.Stats(r.Context())
	if err != nil {
		s.internalError(w, r, "failed to read stats", err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.knowledge.Store.Sources(r.Context())
	if err != nil {
		s.internalError(w, r, "failed to list sources", err)
		return
	}
	if sources == nil {
		sources = []string{}
	}
	respondJSON(w, http.StatusOK, map[string][]string{"sources": sources})
}

func (s *Server) handleKnowledge(w http.ResponseWriter, r *http.Request) {
	records, err := s.knowledge.Store.All(r.Context())
	if err != nil {
		s.internalError(w, r, "failed to list knowledge", err)
		return
	}

	pairs := make([]pairView, len(records))
	for i, rec := range records {
		pairs[i] = pairView{
			ID:         rec.ID,
			Question:   rec.Question,
			Answer:     rec.Answer,
			SourceFile: rec.SourceFile,
			Category:   rec.Category,
		}
	}
	respondJSON(w, http.StatusOK, knowledgeResponse{Count: len(pairs), Pairs: pairs})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	rec, err := s.knowledge.Add(r.Context(), knowledge.Pair{
		Question:   req.Question,
		Answer:     req.Answer,
		SourceFile: req.SourceFile,
		Category:   req.Category,
	})
	if errors.Is(err, knowledge.ErrInvalidRecord) {
		respondError(w, r, http.StatusBadRequest, "question and answer are required")
		return
	}
	if err != nil {
		s.internalError(w, r, "failed to add Q&A pair", err)
		return
	}
	respondJSON(w, http.StatusOK, addResponse{ID: rec.ID, Message: "Q&A pair added successfully"})
}

func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	n, err := s.knowledge.Backfill(r.Context())
	if err != nil {
		s.internalError(w, r, "failed to backfill fingerprints", err)
		return
	}
	respondJSON(w, http.StatusOK, backfillResponse{
		Message: fmt.Sprintf("Fingerprinted %d Q&A pairs", n),
		Updated: n,
	})
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source_file")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(source); err == nil {
			source = unescaped
		}
	}

	n, err := s.knowledge.Store.DeleteBySource(r.Context(), source)
	if err != nil {
		s.internalError(w, r, "failed to delete source", err)
		return
	}
	s.logger.Info("source deleted", "source_file", source, "deleted", n)
	respondJSON(w, http.StatusOK, messageResponse{Message: fmt.Sprintf("Deleted %d Q&A pairs from %s", n, source)})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.knowledge.Store.Clear(r.Context()); err != nil {
		s.internalError(w, r, "failed to clear knowledge base", err)
		return
	}
	s.logger.Info("knowledge base cleared")
	respondJSON(w, http.StatusOK, messageResponse{Message: "Knowledge base cleared"})
}

func (s *Server) handleUploadKnowledge(w http.ResponseWriter, r *http.Request) {
	filename, content, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	pairs, err := s.parser.Parse(r.Context(), filename, content, false)
	if err != nil {
		s.documentError(w, r, err, "No Q&A pairs found in document")
		return
	}

	records, err := s.knowledge.Ingest(r.Context(), pairs)
	if errors.Is(err, knowledge.ErrInvalidRecord) {
		respondError(w, r, http.StatusBadRequest, "document contains incomplete Q&A pairs")
		return
	}
	if err != nil {
		s.internalError(w, r, "failed to store Q&A pairs", err)
		return
	}

	s.logger.Info("knowledge uploaded", "file", filename, "count", len(records))
	respondJSON(w, http.StatusOK, uploadResponse{
		Message:    fmt.Sprintf("Successfully added %d Q&A pairs from %s", len(records), filename),
		Count:      len(records),
		SourceFile: filename,
	})
}

func (s *Server) handleFillQuestionnaire(w http.ResponseWriter, r *http.Request) {
	filename, content, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	pairs, err := s.parser.Parse(r.Context(), filename, content, true)
	if err != nil {
		s.documentError(w, r, err, "No questions found in document")
		return
	}

	results, err := s.answers.FillQuestionnaire(r.Context(), document.Questions(pairs))
	if err != nil {
		s.internalError(w, r, "failed to fill questionnaire", err)
		return
	}

	respondJSON(w, http.StatusOK, fillResponse{
		Filename:       filename,
		TotalQuestions: len(results),
		Summary:        answer.Summarize(results),
		Results:        results,
	})
}

func (s *Server) handleAnswerQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		respondError(w, r, http.StatusBadRequest, "question is required")
		return
	}

	result, err := s.answers.Synthesize(r.Context(), req.Question)
	if err != nil {
		s.internalError(w, r, "failed to answer question", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	filename, template, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	var results []answer.Result
	if err := json.Unmarshal([]byte(r.FormValue("answers")), &results); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid answers JSON")
		return
	}

	out, contentType, err := s.exporter.Export(template, filename, results)
	if errors.Is(err, document.ErrUnsupportedFormat) {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, r, "Export error", err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": export.OutputName(filename),
	}))
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out); err != nil {
		s.logger.Warn("failed to write export", "error", err)
	}
}

// readUpload returns the multipart "file" part. It writes the error
// response itself and reports false on failure.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.bodyError(w, r, "failed to parse upload form", err)
		return "", nil, false
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "file is required")
		return "", nil, false
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.bodyError(w, r, "failed to read upload", err)
		return "", nil, false
	}
	filename := document.SourceName(header.Filename)
	if filename == "" || filename == "." {
		respondError(w, r, http.StatusBadRequest, "file name is required")
		return "", nil, false
	}
	return filename, content, true
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.bodyError(w, r, "invalid JSON body", err)
		return false
	}
	return true
}

// bodyError reports an unreadable request body, distinguishing an
// oversized one.
func (s *Server) bodyError(w http.ResponseWriter, r *http.Request, detail string, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
		respondError(w, r, http.StatusRequestEntityTooLarge, "request body exceeds maximum allowed size")
		return
	}
	respondError(w, r, http.StatusBadRequest, detail+": "+err.Error())
}

// documentError maps parser failures to status codes.
func (s *Server) documentError(w http.ResponseWriter, r *http.Request, err error, empty string) {
	switch {
	case errors.Is(err, document.ErrNoQuestions):
		respondError(w, r, http.StatusBadRequest, empty)
	case errors.Is(err, document.ErrUnsupportedFormat):
		respondError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, document.ErrNoProvider):
		respondError(w, r, http.StatusServiceUnavailable, "API key not configured. Cannot parse this document.")
	case errors.Is(err, document.ErrExtraction):
		s.logger.Error("document extraction failed", "error", err, "request_id", RequestID(r.Context()))
		respondError(w, r, http.StatusBadGateway, "language model extraction failed")
	default:
		respondError(w, r, http.StatusBadRequest, "Error parsing document: "+err.Error())
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, detail string, err error) {
	s.logger.Error(detail, "error", err, "request_id", RequestID(r.Context()))
	respondError(w, r, http.StatusInternalServerError, detail)
}
