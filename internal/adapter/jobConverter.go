package adapter

import (
	"fmt"
	"time"

	"github.com/akolanti/PageIndexAPI/internal/api"
	"github.com/akolanti/PageIndexAPI/internal/domain/jobModel"
	"github.com/akolanti/PageIndexAPI/internal/domain/treeModel"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/extractor"
)

func ToInitJobResponse(id string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:        id,
		StatusURL: fmt.Sprintf("status/%s", id),
	}
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {
	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	result := api.Result{
		Status:      string(job.Status),
		CurrentStep: string(job.CurrentStep),
	}
	// results are only meaningful once the worker has finished
	if job.Status == jobModel.JobStatusComplete {
		switch job.JobType {
		case jobModel.JobTypeIngest:
			result.Ingest = ToIngestResponse(job.JobPayload)
		case jobModel.JobTypeQuery:
			result.Query = ToQueryResponse(job.JobPayload)
		}
	}

	return api.JobResponse{
		Id:        job.Id,
		JobType:   string(job.JobType),
		StartTime: job.CreatedTime,
		EndTime:   job.EndTime,
		Error:     errorPtr,
		Result:    result,
	}
}

func ToQueryResponse(p jobModel.JobPayload) *api.QueryResponse {
	res := &api.QueryResponse{
		DocID:          p.DocID,
		Question:       p.Question,
		RelevantPages:  p.RelevantPages,
		Citations:      p.Citations,
		Confidence:     p.Confidence,
		ReasoningTrace: p.ReasoningTrace,
		Warning:        p.Warning,
	}
	if res.RelevantPages == nil {
		res.RelevantPages = []int{}
	}
	if res.Citations == nil {
		res.Citations = []jobModel.Citation{}
	}
	if res.ReasoningTrace == nil {
		res.ReasoningTrace = []treeModel.SearchStep{}
	}
	return res
}

func ToIngestResponse(p jobModel.JobPayload) *api.IngestResponse {
	return &api.IngestResponse{
		DocID:      p.DocID,
		Filename:   p.IngestFileName,
		Title:      p.Title,
		TotalPages: p.TotalPages,
		TreeDepth:  p.TreeDepth,
		NodeCount:  p.NodeCount,
	}
}

func ToDocumentList(docs []treeModel.DocumentMetadata) api.DocumentListResponse {
	if docs == nil {
		docs = []treeModel.DocumentMetadata{}
	}
	return api.DocumentListResponse{Documents: docs, Count: len(docs)}
}

func ToPageResponse(docID string, page *extractor.PageContent) api.PageResponse {
	return api.PageResponse{
		DocID:      docID,
		PageNumber: page.PageNumber,
		Text:       page.Text,
		Tables:     page.Tables,
		HasImages:  page.HasImages,
		CharCount:  page.CharCount,
	}
}

func BadRequest(id string, error string, code int) api.JobResponse {
	return api.JobResponse{
		Id:        id,
		StartTime: time.Time{},
		EndTime:   time.Time{},
		Result: api.Result{
			Status: string(api.JobStatusError),
		},
		Error: &api.JobOutgoingError{
			Code:    code,
			Message: error,
			Retry:   false,
		},
	}
}
