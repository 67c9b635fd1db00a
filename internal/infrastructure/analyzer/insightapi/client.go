// Package insightapi is the HTTP client for the external analysis service.
// The service is a black box here: it receives a document reference and
// answers with a result reference once the analysis is stored.
package insightapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ametelin/docinsights/internal/core/domain"
	"github.com/ametelin/docinsights/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

// New builds a client. The per-call deadline comes from the caller's
// context, so the underlying http.Client carries no timeout of its own.
func New(baseURL string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		executor:   executor,
	}
}

type analyzeRequest struct {
	DocumentID string `json:"document_id"`
	FileRef    string `json:"file_ref"`
	FileName   string `json:"file_name"`
	FileType   string `json:"file_type"`
}

type analyzeResponse struct {
	ResultRef string `json:"result_ref"`
}

func (c *Client) Analyze(ctx context.Context, doc *domain.Document) (string, error) {
	request := analyzeRequest{
		DocumentID: doc.ID,
		FileRef:    doc.StoragePath,
		FileName:   doc.FileName,
		FileType:   doc.FileType,
	}

	var response analyzeResponse
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/v1/analyze", request, &response)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "analyzer.analyze", call, classifyAnalyzerError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", domain.WrapError(domain.ErrTimeout, "call analyzer", err)
		}
		return "", err
	}

	if response.ResultRef == "" {
		return "", fmt.Errorf("analyzer returned empty result reference for document %s", doc.ID)
	}
	return response.ResultRef, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal analyzer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build analyzer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("analyzer request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return &statusError{code: res.StatusCode, body: strings.TrimSpace(string(snippet))}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode analyzer response: %w", err)
	}
	return nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("analyzer returned status %d", e.code)
	}
	return fmt.Sprintf("analyzer returned status %d: %s", e.code, e.body)
}

func classifyAnalyzerError(err error) resilience.ErrorClass {
	if err == nil {
		return resilience.ErrorClass{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClass{Retryable: false, RecordFailure: false}
	}
	var se *statusError
	if errors.As(err, &se) {
		retryable := se.code == http.StatusRequestTimeout ||
			se.code == http.StatusTooManyRequests ||
			se.code >= 500
		return resilience.ErrorClass{Retryable: retryable, RecordFailure: retryable}
	}
	// Transport-level failures (refused, reset, DNS) are worth another try.
	return resilience.ErrorClass{Retryable: true, RecordFailure: true}
}
