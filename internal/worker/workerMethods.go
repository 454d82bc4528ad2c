package worker

import (
	"context"
	"time"

	"github.com/akolanti/PageIndexAPI/internal/config"
	"github.com/akolanti/PageIndexAPI/internal/domain/jobModel"
	"github.com/akolanti/PageIndexAPI/internal/metrics"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
)

func (p *Pool) executeJob(job jobModel.Job) {
	start := time.Now()
	defer func() {
		metrics.CaptureJobMetrics(string(job.JobType), string(job.Status), time.Since(start))
	}()

	timeout := config.QueryJobTimeout
	if job.JobType == jobModel.JobTypeIngest {
		timeout = config.IngestJobTimeout
	}
	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, job.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, timeout)
	defer cancel()

	log := p.logger.WithContext(ctx).With("job_id", job.Id, "job_type", job.JobType)
	log.Debug("job_start")

	job.Status = jobModel.JobStatusRunning
	p.saveJobState(ctx, log, job)

	switch job.JobType {
	case jobModel.JobTypeIngest:
		job = p.service.IngestDocument(ctx, job)
	default:
		job = p.service.ProcessQuery(ctx, job)
	}

	job.EndTime = time.Now()
	if job.Status != jobModel.JobStatusError {
		job.Status = jobModel.JobStatusComplete
	}

	// the job context may have expired; the final state must still land
	saveCtx, cancelSave := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancelSave()
	p.saveJobState(saveCtx, log, job)
	log.Info("job_finished", "status", job.Status, "elapsed_ms", time.Since(start).Milliseconds())
}

func (p *Pool) saveJobState(ctx context.Context, log *logger_i.Logger, job jobModel.Job) {
	if err := p.jobService.JobStore.SaveJob(ctx, job); err != nil {
		log.Error("job_state_save_failed", "status", job.Status, "error", err)
	}
}
