package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// RunsAPI handles monitoring run endpoints. Runs are created by the server
// when a station loads, so the API is read-only.
type RunsAPI struct {
	store *Store
}

// NewRunsAPI creates a new runs API handler.
func NewRunsAPI(store *Store) *RunsAPI {
	return &RunsAPI{store: store}
}

// HandleRuns handles GET /api/v1/runs.
func (r *RunsAPI) HandleRuns(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 100
	if raw := req.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSONError(w, http.StatusBadRequest, "Invalid limit", raw)
			return
		}
		limit = n
	}

	runs, err := r.store.ListRuns(limit, 0)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "Failed to list runs", err.Error())
		return
	}

	resp := RunListResponse{
		Runs:  runs,
		Total: len(runs),
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

// HandleRunByID handles GET /api/v1/runs/:id.
func (r *RunsAPI) HandleRunByID(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(req.URL.Path, "/api/v1/runs/")

	run, err := r.store.GetRun(id)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "Failed to get run", err.Error())
		return
	}

	if run == nil {
		writeJSONError(w, http.StatusNotFound, "Run not found", id)
		return
	}

	writeJSONResponse(w, http.StatusOK, run)
}

// writeJSONResponse writes a JSON response with the given status code.
func writeJSONResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, message, details string) {
	resp := ErrorResponse{
		Error:   message,
		Details: details,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
