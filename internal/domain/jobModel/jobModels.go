package jobModel

import (
	"context"
	"time"

	"github.com/akolanti/PageIndexAPI/internal/domain/treeModel"
)

type JobStatus string
type InternalStatus string

type JobType string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusError    JobStatus = "Error"

	UserQueryInit InternalStatus = "Init"
	TreeLoad      InternalStatus = "TreeLoad"
	TreeSearch    InternalStatus = "TreeSearch"
	PageExtract   InternalStatus = "PageExtract"

	IngestInit     InternalStatus = "IngestInit"
	IngestValidate InternalStatus = "IngestValidate"
	TreeGeneration InternalStatus = "TreeGeneration"
	TreeSave       InternalStatus = "TreeSave"
	Error          InternalStatus = "Error"

	Complete InternalStatus = "Complete"

	JobTypeQuery  JobType = "Query"
	JobTypeIngest JobType = "Ingest"
)

type Job struct {
	Id          string         `json:"id"`
	TraceId     string         `json:"trace_id"`
	JobType     JobType        `json:"job_type"`
	JobPayload  JobPayload     `json:"job_payload"`
	Error       JobError       `json:"error,omitempty"`
	CreatedTime time.Time      `json:"created_time"`
	EndTime     time.Time      `json:"end_time,omitempty"`
	Status      JobStatus      `json:"status"`
	CurrentStep InternalStatus `json:"current_step"`
}

type JobError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

// Citation is the extracted text of one relevant page.
type Citation struct {
	Page      int    `json:"page"`
	Text      string `json:"text"`
	HasImages bool   `json:"has_images,omitempty"`
}

type JobPayload struct {
	Question       string                 `json:"question,omitempty"`
	DocID          string                 `json:"doc_id,omitempty"`
	MaxDepth       int                    `json:"max_depth,omitempty"`
	RelevantPages  []int                  `json:"relevant_pages,omitempty"`
	Citations      []Citation             `json:"citations,omitempty"`
	Confidence     float64                `json:"confidence,omitempty"`
	ReasoningTrace []treeModel.SearchStep `json:"reasoning_trace,omitempty"`
	Warning        string                 `json:"warning,omitempty"`

	IngestFileName string `json:"ingest_file_name,omitempty"`
	IngestPath     string `json:"ingest_path,omitempty"`
	Title          string `json:"title,omitempty"`
	TotalPages     int    `json:"total_pages,omitempty"`
	TreeDepth      int    `json:"tree_depth,omitempty"`
	NodeCount      int    `json:"node_count,omitempty"`
}

type JobStore interface {
	GetJob(ctx context.Context, jobId string) (Job, bool)
	SaveJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, jobID string)
}
