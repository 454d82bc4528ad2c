package api

import (
	"time"

	"github.com/akolanti/PageIndexAPI/internal/domain/jobModel"
	"github.com/akolanti/PageIndexAPI/internal/domain/treeModel"
)

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id        string            `json:"id" example:"6f1c7a52-9a4e-4d43-8f0e-2b8f1d7f3a10"`
	JobType   string            `json:"job_type,omitempty" example:"Query"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"404"`
	Message string `json:"message" example:"query failed: document not found: report_3f2a9c1b7d4e"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type QueryResponse struct {
	DocID          string                 `json:"doc_id" example:"report_3f2a9c1b7d4e"`
	Question       string                 `json:"question" example:"What were total assets?"`
	RelevantPages  []int                  `json:"relevant_pages"`
	Citations      []jobModel.Citation    `json:"citations"`
	Confidence     float64                `json:"confidence" example:"0.56"`
	ReasoningTrace []treeModel.SearchStep `json:"reasoning_trace"`
	Warning        string                 `json:"warning,omitempty"`
}

type IngestResponse struct {
	DocID      string `json:"doc_id" example:"report_3f2a9c1b7d4e"`
	Filename   string `json:"filename" example:"report.pdf"`
	Title      string `json:"title,omitempty" example:"Annual Report"`
	TotalPages int    `json:"total_pages" example:"20"`
	TreeDepth  int    `json:"tree_depth" example:"2"`
	NodeCount  int    `json:"node_count" example:"4"`
}

type Result struct {
	Status      string          `json:"status"`
	CurrentStep string          `json:"current_step,omitempty"`
	Query       *QueryResponse  `json:"query,omitempty"`
	Ingest      *IngestResponse `json:"ingest,omitempty"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	StatusURL string `json:"status_url"`
}

type DocumentListResponse struct {
	Documents []treeModel.DocumentMetadata `json:"documents"`
	Count     int                          `json:"count"`
}

type DeleteResponse struct {
	DocID   string `json:"doc_id"`
	Deleted bool   `json:"deleted"`
}

type PurgeResponse struct {
	Removed int `json:"removed"`
}

type PageResponse struct {
	DocID      string   `json:"doc_id"`
	PageNumber int      `json:"page_number"`
	Text       string   `json:"text"`
	Tables     []string `json:"tables,omitempty"`
	HasImages  bool     `json:"has_images"`
	CharCount  int      `json:"char_count"`
}

// requests---------------------

type QueryRequest struct {
	Question string `json:"question" validate:"required" example:"What were total assets?"`
	DocID    string `json:"doc_id" validate:"required" example:"report_3f2a9c1b7d4e"`
	MaxDepth int    `json:"max_depth,omitempty" example:"4"`
}
