// Package httpapi is the thin HTTP boundary over the engine. It owns request
// decoding, status mapping for the user-visible rejections, and nothing else;
// all behavior lives behind the engine.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"finpilot/core"
	"finpilot/engine"
	"finpilot/logging"
)

// Server exposes the engine over HTTP.
type Server struct {
	engine *engine.Engine
	logger logging.Logger
}

// ServerOptions configure a Server.
type ServerOptions struct {
	Logger logging.Logger
}

// NewServer constructs the HTTP boundary.
func NewServer(e *engine.Engine, optFns ...func(o *ServerOptions)) *Server {
	opts := ServerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Server{engine: e, logger: opts.Logger}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat/messages", s.handleMessage)
	mux.HandleFunc("POST /chat/execute", s.handleExecute)
	mux.HandleFunc("DELETE /chat/context/{user}", s.handleResetContext)
	mux.HandleFunc("POST /knowledge/documents", s.handleUploadDocument)
	mux.HandleFunc("GET /knowledge/documents", s.handleListDocuments)
	mux.HandleFunc("DELETE /knowledge/documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("GET /knowledge/search", s.handleSearch)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req core.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.UserID == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "user_id and content are required")
		return
	}
	resp, err := s.engine.ProcessMessage(r.Context(), req)
	if err != nil {
		s.logger.Error("message processing failed", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusBadGateway, "assistant is temporarily unavailable")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req core.PlanExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.UserID == "" || req.PlanID == "" {
		writeError(w, http.StatusBadRequest, "user_id and plan_id are required")
		return
	}
	resp, err := s.engine.ExecutePlan(r.Context(), req)
	switch {
	case errors.Is(err, core.ErrPlanNotFound):
		writeError(w, http.StatusNotFound, "Plan expired or not found")
	case errors.Is(err, core.ErrPlanForbidden):
		writeError(w, http.StatusForbidden, "Plan ownership mismatch")
	case errors.Is(err, core.ErrUnknownTool):
		writeError(w, http.StatusBadRequest, "Unknown tool")
	case err != nil:
		s.logger.Error("plan execution failed", "plan_id", req.PlanID, "error", err)
		writeError(w, http.StatusBadGateway, "assistant is temporarily unavailable")
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleResetContext(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}
	s.engine.ResetContext(r.Context(), userID)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Context for user " + userID + " has been reset",
	})
}

// documentUpload is the JSON body of the document registration endpoint. The
// caller is responsible for text extraction and chunking.
type documentUpload struct {
	Source  core.DocumentSource `json:"source"`
	Content string              `json:"content"`
	Chunks  []string            `json:"chunks"`
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	var req documentUpload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Source.Title == "" || len(req.Chunks) == 0 {
		writeError(w, http.StatusBadRequest, "title and chunks are required")
		return
	}
	src := s.engine.RegisterDocument(r.Context(), req.Source, []byte(req.Content), req.Chunks)
	writeJSON(w, http.StatusOK, src)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs := s.engine.ListDocuments(r.Context(), r.URL.Query().Get("user_id"))
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}
	if !s.engine.DeleteDocument(r.Context(), id) {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	k, _ := strconv.Atoi(r.URL.Query().Get("k"))
	writeJSON(w, http.StatusOK, s.engine.SearchKnowledge(r.Context(), query, k))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
