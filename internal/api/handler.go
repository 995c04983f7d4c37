// Package api exposes the diff task engine over HTTP.
package api

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"arcdiff/internal/domain"
	"arcdiff/internal/service/diff"
)

// Handler serves the /v1/diff endpoints.
type Handler struct {
	diff   *diff.Service
	logger *slog.Logger
}

// NewHandler creates a Handler backed by the diff service.
func NewHandler(diffSvc *diff.Service, logger *slog.Logger) *Handler {
	return &Handler{diff: diffSvc, logger: logger.With("component", "api")}
}

// NewRouter builds the HTTP router with request-ID, recovery and logging
// middleware and mounts the handler under /v1/diff.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(chimw.Recoverer)
	r.Use(RequestLogger(h.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/v1/diff", h.Routes)
	return r
}

// Routes registers the diff endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.listTasks)
		r.Post("/", h.submitTask)
		r.Delete("/", h.bulkDeleteTasks)
		r.Get("/count", h.countTasks)
		r.Get("/devices", h.listDevices)
		r.Get("/snapshots", h.listSnapshotsByFilter)
		r.Post("/cancel", h.bulkCancelTasks)

		r.Route("/{taskID}", func(r chi.Router) {
			r.Get("/", h.getTask)
			r.Delete("/", h.deleteTask)
			r.Post("/cancel", h.cancelTask)
			r.Post("/reschedule", h.rescheduleTask)
			r.Get("/snapshots", h.listSnapshots)
		})
	})
	r.Get("/batches", h.listBatches)
	r.Get("/batches/{batchID}/count", h.countBatchTasks)
}

// SubmitRequest is the JSON body of POST /v1/diff/tasks.
type SubmitRequest struct {
	LocalAET       string   `json:"local_aet"`
	PrimaryAET     string   `json:"primary_aet"`
	SecondaryAET   string   `json:"secondary_aet"`
	QueryString    string   `json:"query_string,omitempty"`
	Priority       *int     `json:"priority,omitempty"`
	BatchID        string   `json:"batch_id,omitempty"`
	CheckMissing   bool     `json:"check_missing"`
	CheckDifferent bool     `json:"check_different"`
	CompareFields  []string `json:"compare_fields,omitempty"`
}

// === Tasks ===

func (h *Handler) submitTask(w http.ResponseWriter, r *http.Request) {
	var body SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req := domain.DiffRequest{
		LocalAET:       body.LocalAET,
		PrimaryAET:     body.PrimaryAET,
		SecondaryAET:   body.SecondaryAET,
		QueryString:    body.QueryString,
		Priority:       domain.DefaultPriority,
		BatchID:        body.BatchID,
		CheckMissing:   body.CheckMissing,
		CheckDifferent: body.CheckDifferent,
		CompareFields:  body.CompareFields,
		RequestInfo:    requestInfo(r),
	}
	if body.Priority != nil {
		req.Priority = *body.Priority
	}

	task, err := h.diff.Submit(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, DiffTaskToAPI(task))
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	qf, tf, ok := h.filter(w, r)
	if !ok {
		return
	}
	page, ok := h.page(w, r)
	if !ok {
		return
	}

	out := make([]DiffTask, 0, page.Limit)
	for task, err := range h.diff.ListTasks(r.Context(), qf, tf, page.Offset, page.Limit, r.URL.Query().Get("orderby")) {
		if err != nil {
			h.fail(w, err)
			return
		}
		out = append(out, DiffTaskToAPI(task))
	}
	writeJSON(w, http.StatusOK, PaginatedDiffTasks{Data: out, NextPageToken: nextPageToken(page, len(out))})
}

func (h *Handler) countTasks(w http.ResponseWriter, r *http.Request) {
	qf, tf, ok := h.filter(w, r)
	if !ok {
		return
	}
	n, err := h.diff.CountTasks(r.Context(), qf, tf)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (h *Handler) listDevices(w http.ResponseWriter, r *http.Request) {
	qf, tf, ok := h.filter(w, r)
	if !ok {
		return
	}
	names, err := h.diff.ListDeviceNames(r.Context(), qf, tf)
	if err != nil {
		h.fail(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}
	task, err := h.diff.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DiffTaskToAPI(task))
}

func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}
	deleted, err := h.diff.Delete(r.Context(), id, nil)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "diff task "+strconv.FormatInt(id, 10)+" not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) cancelTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}
	canceled, err := h.diff.Cancel(r.Context(), id, nil)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !canceled {
		writeError(w, http.StatusNotFound, "diff task "+strconv.FormatInt(id, 10)+" not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rescheduleTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}
	if err := h.diff.Reschedule(r.Context(), id, nil); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) bulkCancelTasks(w http.ResponseWriter, r *http.Request) {
	qf, tf, ok := h.filter(w, r)
	if !ok {
		return
	}
	n, err := h.diff.BulkCancel(r.Context(), qf, tf)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

// bulkDeleteTasks deletes up to "limit" matching tasks per request. Clients
// repeat the call until the returned count is below the limit.
func (h *Handler) bulkDeleteTasks(w http.ResponseWriter, r *http.Request) {
	qf, tf, ok := h.filter(w, r)
	if !ok {
		return
	}
	page, ok := h.page(w, r)
	if !ok {
		return
	}
	n, err := h.diff.BulkDelete(r.Context(), qf, tf, page.Limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// === Snapshots ===

func (h *Handler) listSnapshots(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}
	page, ok := h.page(w, r)
	if !ok {
		return
	}
	payloads, err := h.diff.ListSnapshots(r.Context(), id, page.Offset, page.Limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotsToAPI(payloads))
}

func (h *Handler) listSnapshotsByFilter(w http.ResponseWriter, r *http.Request) {
	qf, tf, ok := h.filter(w, r)
	if !ok {
		return
	}
	page, ok := h.page(w, r)
	if !ok {
		return
	}
	payloads, err := h.diff.ListSnapshotsByFilter(r.Context(), qf, tf, page.Offset, page.Limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotsToAPI(payloads))
}

func snapshotsToAPI(payloads [][]byte) []string {
	out := make([]string, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, string(p))
	}
	return out
}

// === Batches ===

func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	qf, tf, ok := h.filter(w, r)
	if !ok {
		return
	}
	page, ok := h.page(w, r)
	if !ok {
		return
	}
	batches, err := h.diff.ListBatches(r.Context(), qf, tf, page.Offset, page.Limit, r.URL.Query().Get("orderby"))
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]DiffBatch, 0, len(batches))
	for _, b := range batches {
		out = append(out, DiffBatchToAPI(b))
	}
	writeJSON(w, http.StatusOK, PaginatedDiffBatches{Data: out, NextPageToken: nextPageToken(page, len(out))})
}

func (h *Handler) countBatchTasks(w http.ResponseWriter, r *http.Request) {
	n, err := h.diff.CountTasksOfBatch(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

// === Helpers ===

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := httpStatusFromDomainError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	writeError(w, status, err.Error())
}

func (h *Handler) filter(w http.ResponseWriter, r *http.Request) (domain.QueueFilter, domain.DiffTaskFilter, bool) {
	qf, tf, err := FilterParamsFromQuery(r.URL.Query()).Build()
	if err != nil {
		h.fail(w, err)
		return qf, tf, false
	}
	return qf, tf, true
}

// page reads offset and limit, clamping limit to [1, MaxPageSize]. A
// page_token from a previous response takes precedence over offset.
func (h *Handler) page(w http.ResponseWriter, r *http.Request) (domain.Page, bool) {
	var p domain.Page
	q := r.URL.Query()
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{"offset", &p.Offset},
		{"limit", &p.Limit},
	} {
		v := q.Get(f.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			h.fail(w, domain.ErrValidation("%s must be an integer, got %q", f.name, v))
			return p, false
		}
		*f.dst = n
	}
	if token := q.Get("page_token"); token != "" {
		p.Offset = domain.DecodePageToken(token)
	}
	return p.Clamp(), true
}

// nextPageToken returns the token of the page after p, or "" when the
// fetched rows did not fill p.
func nextPageToken(p domain.Page, fetched int) string {
	next, ok := p.Next(fetched)
	if !ok {
		return ""
	}
	return domain.EncodePageToken(next.Offset)
}

func (h *Handler) taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := domain.ParseTaskID(chi.URLParam(r, "taskID"))
	if err != nil {
		h.fail(w, err)
		return 0, false
	}
	return id, true
}

// requestInfo captures the caller context recorded on the queue message.
func requestInfo(r *http.Request) *domain.RequestInfo {
	remoteHost := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		remoteHost = host
	}
	user, _, _ := r.BasicAuth()
	return &domain.RequestInfo{
		RequestURI: r.URL.RequestURI(),
		RemoteUser: user,
		RemoteHost: remoteHost,
		LocalHost:  r.Host,
	}
}
