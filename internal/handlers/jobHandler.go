package handlers

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/akolanti/PageIndexAPI/internal/config"
	"github.com/akolanti/PageIndexAPI/internal/domain/jobModel"
	"github.com/akolanti/PageIndexAPI/internal/job"
	"github.com/akolanti/PageIndexAPI/internal/metrics"
	"github.com/akolanti/PageIndexAPI/internal/pageindex"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
)

// Handler serves the HTTP API. Ingest and query requests become jobs on the
// shared queue; catalog requests call the service directly.
type Handler struct {
	jobs      *job.Service
	service   pageindex.Service
	uploadDir string
	maxUpload int64
	logger    *logger_i.Logger
}

type Options struct {
	UploadDir     string
	MaxUploadSize int64
}

func NewHandler(jobService *job.Service, service pageindex.Service, opts Options) *Handler {
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = config.MaxUploadSize
	}
	return &Handler{
		jobs:      jobService,
		service:   service,
		uploadDir: opts.UploadDir,
		maxUpload: opts.MaxUploadSize,
		logger:    logger_i.NewLogger("handlers"),
	}
}

type newJobData struct {
	id           string
	traceId      string
	jobType      jobModel.JobType
	question     string
	docID        string
	maxDepth     int
	documentName string
	documentPath string
}

func (h *Handler) createNewJob(ctx context.Context, newJob newJobData) error {
	_job := jobModel.Job{
		Id:          newJob.id,
		TraceId:     newJob.traceId,
		JobType:     newJob.jobType,
		CreatedTime: time.Now(),
		Status:      jobModel.JobStatusQueued,
	}
	if newJob.jobType == jobModel.JobTypeIngest {
		_job.CurrentStep = jobModel.IngestInit
		_job.JobPayload.IngestFileName = newJob.documentName
		_job.JobPayload.IngestPath = newJob.documentPath
	} else {
		_job.CurrentStep = jobModel.UserQueryInit
		_job.JobPayload.Question = newJob.question
		_job.JobPayload.DocID = newJob.docID
		_job.JobPayload.MaxDepth = newJob.maxDepth
	}

	// status lookups must find the job before a worker picks it up
	if err := h.jobs.JobStore.SaveJob(ctx, _job); err != nil {
		h.logger.WithContext(ctx).Error("job_save_failed", "job_id", _job.Id, "error", err)
		return err
	}
	return h.pushToJobChannel(ctx, _job)
}

func (h *Handler) pushToJobChannel(ctx context.Context, _job jobModel.Job) error {
	log := h.logger.WithContext(ctx).With("job_id", _job.Id, "job_type", _job.JobType)

	// blocks while the buffer is full so a burst cannot overwhelm the workers
	select {
	case h.jobs.JobChannel <- _job:
	case <-ctx.Done():
		log.Warn("job_enqueue_abandoned", "error", ctx.Err())
		return ctx.Err()
	}
	metrics.IncrementJobsInQueue()
	log.Info("job_queued")

	// a new worker every RequestsPerNewWorkerCount requests, and for every
	// ingest since tree generation holds a worker for minutes
	accurateCount := atomic.AddInt64(&h.jobs.RequestCount, 1)
	if accurateCount%config.RequestsPerNewWorkerCount == 0 || _job.JobType == jobModel.JobTypeIngest {
		select {
		case h.jobs.DispatcherChannel <- true:
			metrics.StartDispatcherSignalCount()
		default:
		}
	}
	return nil
}

func (h *Handler) getJobStatus(ctx context.Context, id string) (jobModel.Job, bool) {
	if id == "" {
		return jobModel.Job{}, false
	}
	return h.jobs.JobStore.GetJob(ctx, id)
}
