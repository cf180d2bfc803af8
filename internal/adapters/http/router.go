package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/markhub/classifier/internal/core/domain"
	"github.com/markhub/classifier/internal/core/ports"
	"github.com/markhub/classifier/internal/observability/metrics"
)

type Router struct {
	tasks   ports.TaskSubmitter
	metrics *metrics.HTTPServerMetrics
	service string

	// apiAuthToken guards the /api/v1 surface. An empty token rejects
	// every request.
	apiAuthToken string
}

func NewRouter(tasks ports.TaskSubmitter, m *metrics.HTTPServerMetrics, service, apiAuthToken string) *Router {
	return &Router{
		tasks:        tasks,
		metrics:      m,
		service:      service,
		apiAuthToken: apiAuthToken,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.Handle("/api/v1/tags/generate-from-url", rt.authMiddleware(http.HandlerFunc(rt.generateTags)))
	mux.Handle("/api/v1/folders/suggest-from-url", rt.authMiddleware(http.HandlerFunc(rt.suggestFolder)))
	mux.Handle("/api/v1/tasks/", rt.authMiddleware(http.HandlerFunc(rt.getTask)))

	handler := rt.metrics.Middleware(rt.service, mux)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) generateTags(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req domain.TagGenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	task, err := rt.tasks.SubmitTagGeneration(r.Context(), req)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	rt.metrics.RecordTaskSubmission(rt.service, string(task.Kind))
	writeAccepted(w, task)
}

func (rt *Router) suggestFolder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req domain.FolderSuggestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	task, err := rt.tasks.SubmitFolderSuggestion(r.Context(), req)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	rt.metrics.RecordTaskSubmission(rt.service, string(task.Kind))
	writeAccepted(w, task)
}

func (rt *Router) getTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/tasks/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "task id is required")
		return
	}

	task, err := rt.tasks.GetTask(r.Context(), id)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// writeAccepted answers a submission with the poll contract: the task
// id, its pending status and where to poll for the result.
func writeAccepted(w http.ResponseWriter, task *domain.RemoteTask) {
	writeJSON(w, http.StatusAccepted, map[string]string{
		"task_id":    task.ID,
		"status":     string(task.Status),
		"status_url": "/api/v1/tasks/" + task.ID,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
