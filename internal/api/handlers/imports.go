package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dvloznov/txengine/internal/api/middleware"
	"github.com/dvloznov/txengine/internal/jobs"
	"github.com/dvloznov/txengine/internal/pipeline"
)

// maxImportBytes bounds a single CSV upload.
const maxImportBytes = 20 << 20

// ImportCSV handles POST /api/users/{userID}/imports. The request body is
// the CSV file; the import runs synchronously and the batch result is
// returned.
func (h *Handler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	accountID := r.URL.Query().Get("account_id")

	state := &pipeline.PipelineState{
		UserID:    userID,
		AccountID: accountID,
		CSV:       http.MaxBytesReader(w, r.Body, maxImportBytes),
	}
	if err := h.pipeline.Run(r.Context(), state); err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("csv import failed")
		middleware.WriteError(w, http.StatusUnprocessableEntity, "Import failed: "+err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, state.Result)
}

// ImportCSVAsync handles POST /api/users/{userID}/imports/async. The upload
// is queued and a job ID returned for polling.
func (h *Handler) ImportCSVAsync(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read upload")
		return
	}
	if len(payload) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Empty upload")
		return
	}

	job := &jobs.ImportCSVJob{
		UserID:    userID,
		AccountID: r.URL.Query().Get("account_id"),
		Filename:  r.URL.Query().Get("filename"),
		Payload:   payload,
	}
	if err := h.publisher.PublishImportCSV(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("failed to enqueue import")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to enqueue import")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// GetJob handles GET /api/jobs/{jobID}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := h.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := jobs.JobFilter{
		UserID: r.URL.Query().Get("user_id"),
		Status: jobs.JobStatus(r.URL.Query().Get("status")),
	}

	list, err := h.jobStore.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}
