package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/akolanti/PageIndexAPI/internal/adapter"
	"github.com/akolanti/PageIndexAPI/internal/adapter/utils"
	"github.com/akolanti/PageIndexAPI/internal/api"
	"github.com/akolanti/PageIndexAPI/internal/domain/jobModel"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
)

const (
	minQuestionLen = 3
	maxQuestionLen = 2000
	maxSearchDepth = 10
)

func GetHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// QueryHandler godoc
// @Summary      Query an indexed document
// @Description  Queues a tree search over one document. Poll the returned status URL for relevant pages, citations and the reasoning trace.
// @Tags         Query
// @Accept       json
// @Produce      json
// @Param        request  body      api.QueryRequest     true  "Question and document id"
// @Success      202      {object}  api.InitJobResponse  "Job successfully created"
// @Failure      400      {object}  api.JobResponse      "Invalid question, doc_id or max_depth"
// @Router       /query [post]
func (h *Handler) QueryHandler(w http.ResponseWriter, r *http.Request) {
	if !h.validateContext(r) {
		return
	}
	log := h.logger.WithContext(r.Context())
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.Error("query_body_close_failed", "error", err)
		}
	}(r.Body)

	var requestData api.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		log.Warn("bad_query_request", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, "", "Bad Request")
		return
	}
	if msg := validateQuery(&requestData); msg != "" {
		log.Warn("bad_query_request", "reason", msg)
		WriteErrorResponse(w, http.StatusBadRequest, requestData.DocID, msg)
		return
	}

	h.enqueue(w, r, newJobData{
		jobType:  jobModel.JobTypeQuery,
		question: requestData.Question,
		docID:    requestData.DocID,
		maxDepth: requestData.MaxDepth,
	})
}

func validateQuery(q *api.QueryRequest) string {
	q.Question = strings.TrimSpace(q.Question)
	q.DocID = strings.TrimSpace(q.DocID)
	n := utf8.RuneCountInString(q.Question)
	switch {
	case n < minQuestionLen || n > maxQuestionLen:
		return "question must be between 3 and 2000 characters"
	case q.DocID == "":
		return "doc_id is required"
	case q.MaxDepth < 0 || q.MaxDepth > maxSearchDepth:
		return "max_depth must be between 0 and 10"
	}
	return ""
}

// GetStatusHandler godoc
// @Summary      Get job status
// @Description  Retrieves the current status of an ingest or query job, with its result once complete.
// @Tags         Job Status
// @Produce      json
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  api.JobResponse  "Successful retrieval of job status"
// @Failure      404  {object}  api.JobResponse  "Job not found"
// @Router       /status/{id} [get]
func (h *Handler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !h.validateContext(r) {
		return
	}
	idString := utils.GetChiURLParam(r, "id")
	result, isFound := h.getJobStatus(r.Context(), idString)
	if !isFound {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
}

// PostIngestHandler godoc
// @Summary      Upload a PDF for indexing
// @Description  Receives a PDF via multipart/form-data, stages it and queues an ingest job that builds the document tree.
// @Tags         Ingestion
// @Accept       multipart/form-data
// @Produce      json
// @Param        document  formData  file  true  "The PDF file to index"
// @Success      202  {object}  api.InitJobResponse  "Accepted"
// @Failure      400  {object}  api.JobResponse      "Missing file, not a PDF or file too large"
// @Failure      500  {object}  api.JobResponse      "Storage error"
// @Router       /ingest [post]
func (h *Handler) PostIngestHandler(w http.ResponseWriter, r *http.Request) {
	if !h.validateContext(r) {
		return
	}
	log := h.logger.WithContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		log.Warn("bad_ingest_request", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, "", "File too large or bad request")
		return
	}
	fileReader, fileMetadata, err := r.FormFile("document")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "Could not retrieve file")
		return
	}
	defer fileReader.Close()

	filename := filepath.Base(fileMetadata.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		WriteErrorResponse(w, http.StatusBadRequest, filename, "Only PDF files are supported")
		return
	}

	jobID := utils.GetNewUUID()
	path, err := h.stageUpload(jobID, filename, fileReader)
	if err != nil {
		log.Error("upload_stage_failed", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, filename, "Storage error")
		return
	}

	h.enqueue(w, r, newJobData{
		id:           jobID,
		jobType:      jobModel.JobTypeIngest,
		documentName: filename,
		documentPath: path,
	})
}

// stageUpload keeps the original file name so the document id stays stable
// across uploads of the same file.
func (h *Handler) stageUpload(jobID, filename string, src io.Reader) (string, error) {
	dir := filepath.Join(h.uploadDir, jobID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}
	path := filepath.Join(dir, filename)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.RemoveAll(dir)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	return path, nil
}

// ListDocumentsHandler godoc
// @Summary      List indexed documents
// @Description  Returns every indexed document, newest first. Rows whose tree is missing are removed unless validate=false.
// @Tags         Documents
// @Produce      json
// @Param        validate  query     bool  false  "Check that each tree still exists"  default(true)
// @Success      200       {object}  api.DocumentListResponse
// @Failure      500       {object}  api.JobResponse
// @Router       /documents [get]
func (h *Handler) ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	if !h.validateContext(r) {
		return
	}
	validate := r.URL.Query().Get("validate") != "false"
	docs, err := h.service.ListDocuments(r.Context(), validate)
	if err != nil {
		h.writeServiceError(w, r, "", err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToDocumentList(docs))
}

// GetTreeHandler godoc
// @Summary      Get a document tree
// @Description  Returns the full hierarchical tree index of one document.
// @Tags         Documents
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  api.JobResponse
// @Router       /documents/{id}/tree [get]
func (h *Handler) GetTreeHandler(w http.ResponseWriter, r *http.Request) {
	if !h.validateContext(r) {
		return
	}
	docID := utils.GetChiURLParam(r, "id")
	tree, err := h.service.GetTree(r.Context(), docID)
	if err != nil {
		h.writeServiceError(w, r, docID, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, tree.ToMap())
}

// DeleteDocumentHandler godoc
// @Summary      Delete a document
// @Description  Removes the tree, its index entry and the stored PDF.
// @Tags         Documents
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  api.DeleteResponse
// @Failure      404  {object}  api.JobResponse
// @Router       /documents/{id} [delete]
func (h *Handler) DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !h.validateContext(r) {
		return
	}
	docID := utils.GetChiURLParam(r, "id")
	deleted, err := h.service.DeleteDocument(r.Context(), docID)
	if err != nil {
		h.writeServiceError(w, r, docID, err)
		return
	}
	if !deleted {
		WriteErrorResponse(w, http.StatusNotFound, docID, "Document not found")
		return
	}
	writeJsonResponse(w, http.StatusOK, api.DeleteResponse{DocID: docID, Deleted: true})
}

// PurgeHandler godoc
// @Summary      Purge stale index entries
// @Description  Drops index rows whose tree artifact no longer exists.
// @Tags         Documents
// @Produce      json
// @Success      200  {object}  api.PurgeResponse
// @Failure      500  {object}  api.JobResponse
// @Router       /documents/purge [post]
func (h *Handler) PurgeHandler(w http.ResponseWriter, r *http.Request) {
	if !h.validateContext(r) {
		return
	}
	removed, err := h.service.PurgeStaleEntries(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "", err)
		return
	}
	writeJsonResponse(w, http.StatusOK, api.PurgeResponse{Removed: removed})
}

// GetPageHandler godoc
// @Summary      Get page text
// @Description  Extracts one page of a stored document so citations can be checked.
// @Tags         Documents
// @Produce      json
// @Param        doc_id    path      string  true  "Document ID"
// @Param        page_num  path      int     true  "1-indexed page number"
// @Success      200  {object}  api.PageResponse
// @Failure      400  {object}  api.JobResponse  "Page out of range"
// @Failure      404  {object}  api.JobResponse  "Document not found"
// @Router       /page/{doc_id}/{page_num} [get]
func (h *Handler) GetPageHandler(w http.ResponseWriter, r *http.Request) {
	if !h.validateContext(r) {
		return
	}
	docID := utils.GetChiURLParam(r, "doc_id")
	pageNum, err := strconv.Atoi(utils.GetChiURLParam(r, "page_num"))
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, docID, "page_num must be an integer")
		return
	}
	page, err := h.service.GetPage(r.Context(), docID, pageNum)
	if err != nil {
		h.writeServiceError(w, r, docID, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToPageResponse(docID, page))
}

// HealthHandler godoc
// @Summary      Service health
// @Description  Reports the metadata index state, document count and rolling LLM latency stats.
// @Tags         Health
// @Produce      json
// @Success      200  {object}  pageindex.HealthReport
// @Failure      503  {object}  pageindex.HealthReport
// @Router       /health [get]
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	report := h.service.Health(r.Context())
	code := http.StatusOK
	if report.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJsonResponse(w, code, report)
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request, newJob newJobData) {
	if newJob.id == "" {
		newJob.id = utils.GetNewUUID()
	}
	newJob.traceId = logger_i.TraceID(r.Context())
	if err := h.createNewJob(r.Context(), newJob); err != nil {
		if newJob.documentPath != "" {
			os.RemoveAll(filepath.Dir(newJob.documentPath))
		}
		code := http.StatusInternalServerError
		if errors.Is(err, r.Context().Err()) {
			code = http.StatusServiceUnavailable
		}
		WriteErrorResponse(w, code, newJob.id, "Could not queue job")
		return
	}
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.id))
}
