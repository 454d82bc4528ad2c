package pageindex

import (
	"context"
	"errors"
	"net/http"

	"github.com/akolanti/PageIndexAPI/internal/data/treeStore"
	"github.com/akolanti/PageIndexAPI/internal/domain/jobModel"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/extractor"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/generator"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/llm"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
)

func logOutput(job jobModel.Job, status jobModel.InternalStatus, log *logger_i.Logger) jobModel.Job {
	job.CurrentStep = status
	log.Debug("job_step", "current_step", job.CurrentStep)
	return job
}

func (s *service) jobError(ctx context.Context, job jobModel.Job, err error, prefix string) jobModel.Job {
	code, retry := StatusFor(err)
	s.logger.WithContext(ctx).Error(prefix, "job_id", job.Id, "step", job.CurrentStep, "code", code, "error", err)

	job.Error = jobModel.JobError{
		Code:    code,
		Message: prefix + ": " + err.Error(),
		Retry:   retry,
	}
	job.Status = jobModel.JobStatusError
	job.CurrentStep = jobModel.Error
	return job
}

// StatusFor maps a service error to an HTTP status and whether trying again
// could succeed.
func StatusFor(err error) (int, bool) {
	switch {
	case err == nil:
		return http.StatusOK, false
	case errors.Is(err, ErrDocumentNotFound),
		errors.Is(err, generator.ErrFileNotFound),
		errors.Is(err, extractor.ErrFileNotFound):
		return http.StatusNotFound, false
	case errors.Is(err, ErrTooManyPages),
		errors.Is(err, ErrEmptyQuestion),
		errors.Is(err, ErrEmptyDocID),
		errors.Is(err, treeStore.ErrEmptyDocID),
		errors.Is(err, extractor.ErrNotAFile),
		errors.Is(err, extractor.ErrFileTooLarge),
		errors.Is(err, extractor.ErrEmptyFile),
		errors.Is(err, extractor.ErrInvalidPDF),
		errors.Is(err, extractor.ErrNoPages),
		errors.Is(err, extractor.ErrInvalidRange),
		errors.Is(err, extractor.ErrPageOutOfRange):
		return http.StatusBadRequest, false
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, true
	}
	if _, limited := llm.RateLimited(err); limited {
		return http.StatusServiceUnavailable, true
	}
	return http.StatusInternalServerError, true
}
