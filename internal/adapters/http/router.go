package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/ametelin/docinsights/internal/config"
	"github.com/ametelin/docinsights/internal/core/domain"
	"github.com/ametelin/docinsights/internal/core/ports"
	"github.com/ametelin/docinsights/internal/observability/metrics"
)

const serviceName = "docinsights-api"

// multipartOverheadBytes covers boundary and part headers on top of the
// configured file size cap.
const multipartOverheadBytes = 1 << 20

type Router struct {
	lifecycle ports.DocumentLifecycle
	insights  ports.InsightsService
	quota     ports.QuotaService
	metrics   *metrics.HTTPServerMetrics
	logger    *slog.Logger
	cfg       config.Config
}

func NewRouter(
	lifecycle ports.DocumentLifecycle,
	insights ports.InsightsService,
	quota ports.QuotaService,
	httpMetrics *metrics.HTTPServerMetrics,
	logger *slog.Logger,
	cfg config.Config,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		lifecycle: lifecycle,
		insights:  insights,
		quota:     quota,
		metrics:   httpMetrics,
		logger:    logger,
		cfg:       cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/v1/documents", rt.handleDocuments)
	api.HandleFunc("/v1/documents/", rt.handleDocumentByID)
	api.HandleFunc("/v1/insights/summary", rt.handleInsightsSummary)
	api.HandleFunc("/v1/insights/export", rt.handleInsightsExport)
	api.HandleFunc("/v1/quota", rt.handleQuota)
	api.HandleFunc("/v1/analysis/results", rt.handleAnalysisResult)

	var apiHandler http.Handler = api
	apiHandler = backpressureMiddleware(
		apiHandler,
		rt.cfg.APIMaxConcurrent,
		time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond,
	)
	apiHandler = rateLimitMiddleware(apiHandler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.handleHealth)
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.Handle("/v1/", apiHandler)

	var handler http.Handler = mux
	handler = rt.metrics.Middleware(serviceName, handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.uploadDocument(w, r)
	case http.MethodGet:
		rt.listDocuments(w, r)
	default:
		writeMethodNotAllowed(w)
	}
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	account := accountID(r)
	if account == "" {
		writeUnauthenticated(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes+multipartOverheadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			rt.metrics.RecordUploadDenied(serviceName, false)
			writeError(w, http.StatusRequestEntityTooLarge, "uploaded file is too large")
			return
		}
		rt.metrics.RecordUploadDenied(serviceName, false)
		writeError(w, http.StatusBadRequest, "multipart form must contain a \"file\" part")
		return
	}
	defer file.Close()

	doc, err := rt.lifecycle.SubmitUpload(r.Context(), account, ports.UploadRequest{
		FileName:  header.Filename,
		FileType:  uploadContentType(header.Header.Get("Content-Type"), header.Filename),
		SizeBytes: header.Size,
		Body:      file,
	})
	if err != nil {
		rt.metrics.RecordUploadDenied(serviceName, domain.IsKind(err, domain.ErrQuotaExceeded))
		rt.respondError(w, r, err)
		return
	}

	rt.metrics.RecordUploadAccepted(serviceName, doc.SizeBytes)
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	account := accountID(r)
	if account == "" {
		writeUnauthenticated(w)
		return
	}

	docs, err := rt.lifecycle.List(r.Context(), account)
	if err != nil {
		rt.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) handleDocumentByID(w http.ResponseWriter, r *http.Request) {
	account := accountID(r)
	if account == "" {
		writeUnauthenticated(w)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	documentID, action, _ := strings.Cut(rest, "/")
	if documentID == "" {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	switch {
	case action == "retry" && r.Method == http.MethodPost:
		doc, err := rt.lifecycle.Retry(r.Context(), account, documentID)
		if err != nil {
			rt.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, doc)
	case action != "":
		writeError(w, http.StatusNotFound, "unknown document action")
	case r.Method == http.MethodGet:
		doc, err := rt.lifecycle.Get(r.Context(), account, documentID)
		if err != nil {
			rt.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case r.Method == http.MethodDelete:
		if err := rt.lifecycle.Delete(r.Context(), account, documentID); err != nil {
			rt.respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w)
	}
}

func (rt *Router) handleInsightsSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	account := accountID(r)
	if account == "" {
		writeUnauthenticated(w)
		return
	}

	summary, err := rt.insights.Summarize(r.Context(), account)
	if err != nil {
		rt.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (rt *Router) handleInsightsExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	account := accountID(r)
	if account == "" {
		writeUnauthenticated(w)
		return
	}

	report, err := rt.insights.ExportXLSX(r.Context(), account)
	if err != nil {
		rt.respondError(w, r, err)
		return
	}

	rt.metrics.RecordExport(serviceName)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="insights.xlsx"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(report); err != nil {
		rt.logger.Warn("writing export response failed",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
	}
}

func (rt *Router) handleQuota(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	account := accountID(r)
	if account == "" {
		writeUnauthenticated(w)
		return
	}

	report, err := rt.quota.Report(r.Context(), account)
	if err != nil {
		rt.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type analysisResultRequest struct {
	DocumentID string               `json:"document_id"`
	Status     domain.OutcomeStatus `json:"status"`
	ResultRef  string               `json:"result_ref"`
	Reason     string               `json:"reason"`
}

// handleAnalysisResult accepts results pushed back by an analyzer deployment
// that reports over HTTP instead of the worker's synchronous call. The route
// is expected to be reachable only from the internal network.
func (rt *Router) handleAnalysisResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req analysisResultRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be a valid analysis result")
		return
	}
	if req.DocumentID == "" {
		writeError(w, http.StatusBadRequest, "document_id is required")
		return
	}
	switch req.Status {
	case domain.OutcomeSuccess, domain.OutcomeError, domain.OutcomeTimeout:
	default:
		writeError(w, http.StatusBadRequest, "status must be one of success, error, timeout")
		return
	}

	err := rt.lifecycle.OnAnalysisResult(r.Context(), req.DocumentID, domain.AnalysisOutcome{
		Status:    req.Status,
		ResultRef: req.ResultRef,
		Reason:    req.Reason,
	})
	if err != nil {
		rt.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		rt.logger.Error("request failed",
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		// Do not leak storage internals to clients.
		writeError(w, status, "internal error")
		return
	}
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "3600")
	}
	writeError(w, status, err.Error())
}

func uploadContentType(declared, fileName string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
			return mediaType
		}
	}
	if byExt := mime.TypeByExtension(filepath.Ext(fileName)); byExt != "" {
		if mediaType, _, err := mime.ParseMediaType(byExt); err == nil {
			return mediaType
		}
	}
	return "application/octet-stream"
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("encoding response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeUnauthenticated(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "account identification required")
}
