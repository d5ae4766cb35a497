package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"autograder/internal/api"
	"autograder/internal/sandbox"
	"autograder/pkg/logging"
)

const serverSubsystem = "Server"

// GradeRequest is the JSON body of POST /api/v1/grade.
type GradeRequest struct {
	Pipeline     string            `json:"pipeline"`
	AssignmentID string            `json:"assignment_id"`
	UserID       string            `json:"user_id"`
	Username     string            `json:"username"`
	Language     api.Language      `json:"language"`
	Files        map[string]string `json:"files"`
}

// PipelineInfo is one entry of GET /api/v1/pipelines.
type PipelineInfo struct {
	Name     string `json:"name"`
	Template string `json:"template"`
}

// Server is the thin JSON HTTP surface over the pipeline registry.
type Server struct {
	registry *PipelineRegistry
	pools    *sandbox.Manager
	http     *http.Server
}

func New(host string, port int, registry *PipelineRegistry, pools *sandbox.Manager) *Server {
	s := &Server{
		registry: registry,
		pools:    pools,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/grade", s.handleGrade)
	mux.HandleFunc("/api/v1/pipelines", s.handlePipelines)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.http = &http.Server{
		Addr:              net.JoinHostPort(host, fmt.Sprintf("%d", port)),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Addr returns the configured bind address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// Start serves until Shutdown or a listener error. Blocking.
func (s *Server) Start() error {
	logging.Info(serverSubsystem, "Listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleGrade(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req GradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Pipeline == "" {
		writeError(w, http.StatusBadRequest, "pipeline is required")
		return
	}
	if req.AssignmentID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "assignment_id and user_id are required")
		return
	}
	if len(req.Files) == 0 {
		writeError(w, http.StatusBadRequest, "files must not be empty")
		return
	}

	p, err := s.registry.Get(req.Pipeline)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	files := make(map[string][]byte, len(req.Files))
	for name, content := range req.Files {
		files[name] = []byte(content)
	}
	sub := &api.Submission{
		AssignmentID: req.AssignmentID,
		UserID:       req.UserID,
		Username:     req.Username,
		Language:     req.Language,
		Files:        files,
	}

	exec := p.Run(r.Context(), sub)
	writeJSON(w, http.StatusOK, exec.Response())
}

func (s *Server) handlePipelines(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}

	infos := make([]PipelineInfo, 0)
	for _, name := range s.registry.Names() {
		p, err := s.registry.Get(name)
		if err != nil {
			continue
		}
		infos = append(infos, PipelineInfo{
			Name:     name,
			Template: p.Template().Name(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"pipelines": infos})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":    "ok",
		"pipelines": len(s.registry.Names()),
	}
	if s.pools != nil {
		body["pools"] = s.pools.Status()
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Warn(serverSubsystem, "Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
