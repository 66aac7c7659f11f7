package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/sales-analytics/internal/api/middleware"
	"github.com/dvloznov/sales-analytics/internal/gcsuploader"
	"github.com/dvloznov/sales-analytics/internal/jobs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReportsHandler handles report export jobs.
type ReportsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	objects   gcsuploader.ObjectStore
	bucket    string
	log       zerolog.Logger
}

// NewReportsHandler creates a new reports handler. With an empty bucket the
// export endpoints answer 503.
func NewReportsHandler(publisher jobs.Publisher, store jobs.JobStore, objects gcsuploader.ObjectStore, bucket string, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{
		publisher: publisher,
		store:     store,
		objects:   objects,
		bucket:    bucket,
		log:       log,
	}
}

func (h *ReportsHandler) configured() bool {
	return h.bucket != "" && h.publisher != nil && h.objects != nil
}

// Export handles POST /api/reports/export
func (h *ReportsHandler) Export(w http.ResponseWriter, r *http.Request) {
	if !h.configured() {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Report export is not configured")
		return
	}

	// job belongs to a worker once published; respond from the locals.
	jobID := uuid.NewString()
	requestedBy := middleware.UserFromContext(r.Context())
	job := &jobs.ExportReportJob{
		JobID:       jobID,
		RequestedBy: requestedBy,
		Bucket:      h.bucket,
		Status:      jobs.JobStatusPending,
		CreatedAt:   time.Now(),
	}
	if err := h.publisher.PublishExportReport(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue export job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue export job")
		return
	}

	h.log.Info().Str("job_id", jobID).Str("requested_by", requestedBy).Msg("Export job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(jobs.JobStatusPending),
	})
}

// ListJobs handles GET /api/reports
func (h *ReportsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		RequestedBy: query.Get("requested_by"),
		Status:      jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// GetJob handles GET /api/reports/{id}
func (h *ReportsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, ok := h.lookup(w, r, jobID)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// Download handles GET /api/reports/{id}/download
func (h *ReportsHandler) Download(w http.ResponseWriter, r *http.Request, jobID string) {
	if !h.configured() {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Report export is not configured")
		return
	}

	job, ok := h.lookup(w, r, jobID)
	if !ok {
		return
	}
	if job.Status != jobs.JobStatusCompleted || job.GCSURI == "" {
		middleware.WriteError(w, http.StatusConflict, "Report is not ready")
		return
	}

	data, err := h.objects.FetchFromGCS(r.Context(), job.GCSURI)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to fetch report")
		middleware.WriteError(w, http.StatusBadGateway, "Failed to fetch report")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+jobID+`.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *ReportsHandler) lookup(w http.ResponseWriter, r *http.Request, jobID string) (*jobs.ExportReportJob, bool) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return nil, false
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return nil, false
	}
	return job, true
}
