package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/sqlpilot/sqlpilot/internal/metrics"
	"github.com/sqlpilot/sqlpilot/internal/models"
	"github.com/sqlpilot/sqlpilot/internal/workflow"
)

// QueryRequest is the body of POST /api/v1/query.
type QueryRequest struct {
	Query      string `json:"query"`
	MaxRetries int    `json:"max_retries,omitempty"`
}

// QueryResponse is the terminal workflow state trimmed to what clients need.
type QueryResponse struct {
	Intent       string                  `json:"intent"`
	State        string                  `json:"state"`
	Response     string                  `json:"response"`
	GeneratedSQL string                  `json:"generated_sql,omitempty"`
	Explanation  string                  `json:"explanation,omitempty"`
	Result       *models.ExecutionResult `json:"result,omitempty"`
	RetryCount   int                     `json:"retry_count"`
	Error        string                  `json:"error,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	s.logger.Debug("query request", zap.String("query", req.Query))

	st, err := s.engine.Run(r.Context(), req.Query, req.MaxRetries)
	if err != nil {
		s.logger.Error("workflow failed to start", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.SetExamplesStored(s.store.Count())

	resp := QueryResponse{
		Intent:       string(st.Intent),
		State:        string(st.CurrentState),
		Response:     st.Response,
		GeneratedSQL: st.GeneratedSQL,
		Explanation:  st.SQLExplanation,
		Result:       st.ExecutionResult,
		RetryCount:   st.RetryCount,
		Error:        st.Error,
	}
	status := http.StatusOK
	if st.CurrentState == workflow.StateFailed {
		status = http.StatusUnprocessableEntity
	}
	s.respondJSON(w, status, resp)
}

// AddExamplesRequest is the body of POST /api/v1/examples.
type AddExamplesRequest struct {
	Examples []models.Example `json:"examples"`
}

func (s *Server) handleAddExamples(w http.ResponseWriter, r *http.Request) {
	var req AddExamplesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Examples) == 0 {
		s.respondError(w, http.StatusBadRequest, "examples are required")
		return
	}

	ids, err := s.store.Add(r.Context(), req.Examples)
	if err != nil {
		s.logger.Error("example ingestion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(ids) > 0 {
		if err := s.store.Persist(); err != nil {
			s.logger.Error("persist failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	metrics.SetExamplesStored(s.store.Count())
	s.respondJSON(w, http.StatusCreated, map[string]any{
		"inserted": len(ids),
		"skipped":  len(req.Examples) - len(ids),
		"ids":      ids,
	})
}

func (s *Server) handleSearchExamples(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "q parameter is required")
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	examples, scores, err := s.store.SearchKeyword(query, limit)
	if err != nil {
		s.logger.Error("example search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type hit struct {
		Example models.Example `json:"example"`
		Score   float64        `json:"score"`
	}
	hits := make([]hit, len(examples))
	for i := range examples {
		hits[i] = hit{Example: examples[i], Score: scores[i]}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"hits": hits})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"examples":       s.store.Count(),
		"vector_backend": s.store.Backend(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response failed", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
