package insightapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ametelin/docinsights/internal/core/domain"
	"github.com/ametelin/docinsights/internal/infrastructure/resilience"
)

func testDoc() *domain.Document {
	return &domain.Document{
		ID:          "doc-1",
		FileName:    "report.pdf",
		FileType:    "application/pdf",
		StoragePath: "doc-1_report.pdf",
	}
}

func TestAnalyzeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/analyze" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.DocumentID != "doc-1" || req.FileRef != "doc-1_report.pdf" {
			t.Fatalf("unexpected request: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(analyzeResponse{ResultRef: "results/doc-1.json"})
	}))
	defer server.Close()

	client := New(server.URL, nil)
	resultRef, err := client.Analyze(context.Background(), testDoc())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if resultRef != "results/doc-1.json" {
		t.Fatalf("unexpected result ref %s", resultRef)
	}
}

func TestAnalyzeEmptyResultRefIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(analyzeResponse{})
	}))
	defer server.Close()

	client := New(server.URL, nil)
	if _, err := client.Analyze(context.Background(), testDoc()); err == nil {
		t.Fatalf("expected error for empty result reference")
	}
}

func TestAnalyzeRetriesServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(analyzeResponse{ResultRef: "results/doc-1.json"})
	}))
	defer server.Close()

	executor := resilience.NewExecutor(resilience.Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		BreakerEnabled: false,
	})
	client := New(server.URL, executor)

	resultRef, err := client.Analyze(context.Background(), testDoc())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if resultRef != "results/doc-1.json" || calls != 2 {
		t.Fatalf("expected success on second call, got ref=%s calls=%d", resultRef, calls)
	}
}

func TestAnalyzeDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	executor := resilience.NewExecutor(resilience.Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		BreakerEnabled: false,
	})
	client := New(server.URL, executor)

	if _, err := client.Analyze(context.Background(), testDoc()); err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected single call for 422, got %d", calls)
	}
}

func TestAnalyzeDeadlineMapsToTimeout(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	client := New(server.URL, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Analyze(ctx, testDoc())
	if !domain.IsKind(err, domain.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}
