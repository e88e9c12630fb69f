package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/rent-ledger/internal/api/middleware"
	"github.com/dvloznov/rent-ledger/internal/frontdata"
	"github.com/dvloznov/rent-ledger/internal/gcsuploader"
	"github.com/dvloznov/rent-ledger/internal/jobs"
	"github.com/dvloznov/rent-ledger/internal/notify"
	"github.com/dvloznov/rent-ledger/internal/paymentimport"
	"github.com/dvloznov/rent-ledger/internal/rents"
	"github.com/dvloznov/rent-ledger/internal/term"
)

// maxUploadSize bounds payment CSV uploads.
const maxUploadSize = 10 << 20

// RentService is the part of rents.Service the handlers use.
type RentService interface {
	RentsByMonth(ctx context.Context, info notify.RequestInfo, year, month int) (*rents.MonthRents, error)
	UpdateByTerm(ctx context.Context, info notify.RequestInfo, tm term.Term, form rents.PaymentForm) (frontdata.RentView, error)
	RentsOfOccupant(ctx context.Context, tenantID string) (*rents.OccupantRents, error)
	RentOfOccupantByTerm(ctx context.Context, info notify.RequestInfo, tenantID string, tm term.Term) (frontdata.RentView, error)
	ImportPayments(ctx context.Context, payments []rents.BulkPayment) (*rents.ImportResult, error)
	Dashboard(ctx context.Context) (*rents.Dashboard, error)
}

var _ RentService = (*rents.Service)(nil)

// Uploader stores uploaded payment files.
type Uploader interface {
	UploadBytes(ctx context.Context, bucketName, objectName, contentType string, data []byte) (string, error)
}

var _ Uploader = (gcsuploader.StorageService)(nil)

// requestInfo collects the caller headers forwarded to the emailer.
func requestInfo(r *http.Request) notify.RequestInfo {
	return notify.RequestInfo{
		Authorization:  r.Header.Get("authorization"),
		OrganizationID: r.Header.Get("organizationid"),
		Locale:         r.Header.Get("Accept-Language"),
	}
}

// RentsHandler handles rent endpoints.
type RentsHandler struct {
	svc RentService
	log zerolog.Logger
}

// NewRentsHandler creates a new rents handler.
func NewRentsHandler(svc RentService, log zerolog.Logger) *RentsHandler {
	return &RentsHandler{
		svc: svc,
		log: log,
	}
}

// RentsByMonth handles GET /api/rents/{year}/{month}
func (h *RentsHandler) RentsByMonth(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid year")
		return
	}
	month, err := strconv.Atoi(r.PathValue("month"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid month")
		return
	}

	result, err := h.svc.RentsByMonth(r.Context(), requestInfo(r), year, month)
	if err != nil {
		WriteServiceError(w, h.log, err, "Failed to get rents")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// UpdateByTerm handles PATCH /api/rents/payment/{term}
func (h *RentsHandler) UpdateByTerm(w http.ResponseWriter, r *http.Request) {
	tm, err := term.ParseString(r.PathValue("term"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid term")
		return
	}

	var form rents.PaymentForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	view, err := h.svc.UpdateByTerm(r.Context(), requestInfo(r), tm, form)
	if err != nil {
		WriteServiceError(w, h.log, err, "Failed to update rent")
		return
	}

	h.log.Info().Str("tenant_id", form.TenantID).Stringer("term", tm).Msg("Rent settled")
	middleware.WriteJSON(w, http.StatusOK, view)
}

// RentsOfOccupant handles GET /api/rents/tenant/{id}
func (h *RentsHandler) RentsOfOccupant(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.RentsOfOccupant(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, h.log, err, "Failed to get tenant rents")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// RentOfOccupantByTerm handles GET /api/rents/tenant/{id}/{term}
func (h *RentsHandler) RentOfOccupantByTerm(w http.ResponseWriter, r *http.Request) {
	tm, err := term.ParseString(r.PathValue("term"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid term")
		return
	}

	view, err := h.svc.RentOfOccupantByTerm(r.Context(), requestInfo(r), r.PathValue("id"), tm)
	if err != nil {
		WriteServiceError(w, h.log, err, "Failed to get rent")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, view)
}

// Dashboard handles GET /api/dashboard
func (h *RentsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.svc.Dashboard(r.Context())
	if err != nil {
		WriteServiceError(w, h.log, err, "Failed to build dashboard")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, dash)
}

// ImportHandler handles payment CSV uploads.
type ImportHandler struct {
	svc       RentService
	storage   Uploader
	publisher jobs.Publisher
	bucket    string
	log       zerolog.Logger
}

// NewImportHandler creates a new import handler. Without a bucket or a
// publisher, uploads are imported synchronously.
func NewImportHandler(svc RentService, storage Uploader, publisher jobs.Publisher, bucket string, log zerolog.Logger) *ImportHandler {
	return &ImportHandler{
		svc:       svc,
		storage:   storage,
		publisher: publisher,
		bucket:    bucket,
		log:       log,
	}
}

// ImportPayments handles POST /api/rents/import
// The CSV is read from the "file" form field, or from the raw body.
func (h *ImportHandler) ImportPayments(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	data, filename, err := readUpload(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.bucket == "" || h.storage == nil || h.publisher == nil {
		h.importNow(w, r, data)
		return
	}

	ctx := r.Context()
	jobID := uuid.New().String()
	objectName := gcsuploader.ImportObjectName(jobID, filename)

	gcsURI, err := h.storage.UploadBytes(ctx, h.bucket, objectName, "text/csv", data)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to upload payment file")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}

	job := &jobs.ImportPaymentsJob{
		JobID:    jobID,
		GCSURI:   gcsURI,
		Filename: filepath.Base(filename),
	}
	if err := h.publisher.PublishImportPayments(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue import job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue import job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("gcs_uri", gcsURI).Msg("Import job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  job.JobID,
		"gcs_uri": gcsURI,
		"status":  string(job.Status),
	})
}

func (h *ImportHandler) importNow(w http.ResponseWriter, r *http.Request, data []byte) {
	state := &paymentimport.State{Data: data}
	pipeline := paymentimport.NewPipeline(&paymentimport.ParseStep{}, &paymentimport.ApplyStep{Importer: h.svc})
	if err := pipeline.Execute(r.Context(), state); err != nil {
		if state.Parsed == nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		WriteServiceError(w, h.log, err, "Failed to import payments")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, state.Summary(time.Now()))
}

// readUpload returns the uploaded bytes and their file name.
func readUpload(r *http.Request) ([]byte, string, error) {
	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, "", fmt.Errorf("read upload: %w", err)
		}
		return data, header.Filename, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty upload")
	}
	return data, r.URL.Query().Get("filename"), nil
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, h.log.With().Str("job_id", jobID).Logger(), err, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(query.Get("status")),
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
