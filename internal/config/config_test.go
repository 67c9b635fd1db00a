package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ametelin/docinsights/internal/core/domain"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_PORT", "")
	t.Setenv("NATS_SUBJECT", "")
	t.Setenv("MAX_UPLOAD_BYTES", "")
	t.Setenv("API_RATE_LIMIT_RPS", "")
	t.Setenv("ANALYZER_TIMEOUT_SECONDS", "")

	cfg := Load()
	if cfg.APIPort != "8080" {
		t.Fatalf("expected default api port 8080, got %q", cfg.APIPort)
	}
	if cfg.NATSSubject != "documents.analyze" {
		t.Fatalf("expected default subject documents.analyze, got %q", cfg.NATSSubject)
	}
	if cfg.MaxUploadBytes != 64<<20 {
		t.Fatalf("expected default upload cap 64MiB, got %d", cfg.MaxUploadBytes)
	}
	if cfg.APIRateLimitRPS != 50 {
		t.Fatalf("expected default rate limit 50, got %d", cfg.APIRateLimitRPS)
	}
	if cfg.AnalyzerTimeoutSeconds != 120 {
		t.Fatalf("expected default analyzer timeout 120, got %d", cfg.AnalyzerTimeoutSeconds)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("API_PORT", "9999")
	t.Setenv("MAX_UPLOAD_BYTES", "1048576")
	t.Setenv("API_MAX_CONCURRENT", "8")
	t.Setenv("DEFAULT_PLAN", "pro")

	cfg := Load()
	if cfg.APIPort != "9999" {
		t.Fatalf("expected api port override, got %q", cfg.APIPort)
	}
	if cfg.MaxUploadBytes != 1<<20 {
		t.Fatalf("expected upload cap 1MiB, got %d", cfg.MaxUploadBytes)
	}
	if cfg.APIMaxConcurrent != 8 {
		t.Fatalf("expected max concurrent 8, got %d", cfg.APIMaxConcurrent)
	}
	if cfg.DefaultPlan != "pro" {
		t.Fatalf("expected default plan pro, got %q", cfg.DefaultPlan)
	}
}

func TestLoadFallsBackOnUnparsableInt(t *testing.T) {
	t.Setenv("API_RATE_LIMIT_RPS", "not-a-number")

	cfg := Load()
	if cfg.APIRateLimitRPS != 50 {
		t.Fatalf("expected fallback rate limit 50, got %d", cfg.APIRateLimitRPS)
	}
}

func TestLoadPlanCatalogBuiltIn(t *testing.T) {
	catalog, err := LoadPlanCatalog(Config{DefaultPlan: "free"})
	if err != nil {
		t.Fatalf("LoadPlanCatalog() error = %v", err)
	}
	plan := catalog.Resolve("")
	if plan.ID != "free" {
		t.Fatalf("expected default plan free, got %q", plan.ID)
	}
	business := catalog.Resolve("business")
	if business.MaxStorageBytes != domain.Unlimited || business.MaxDocuments != domain.Unlimited {
		t.Fatalf("expected business plan unlimited, got %+v", business)
	}
}

func TestLoadPlanCatalogFromFile(t *testing.T) {
	planFile := filepath.Join(t.TempDir(), "plans.yaml")
	raw := `
- id: trial
  name: Trial
  max_storage_bytes: 1024
  max_documents: 3
  features: [insights]
`
	if err := os.WriteFile(planFile, []byte(raw), 0o644); err != nil {
		t.Fatalf("write plan file: %v", err)
	}

	catalog, err := LoadPlanCatalog(Config{PlanFile: planFile, DefaultPlan: "trial"})
	if err != nil {
		t.Fatalf("LoadPlanCatalog() error = %v", err)
	}
	plan := catalog.Resolve("trial")
	if plan.Name != "Trial" || plan.MaxStorageBytes != 1024 || plan.MaxDocuments != 3 {
		t.Fatalf("unexpected plan from file: %+v", plan)
	}
}

func TestLoadPlanCatalogRejectsEmptyFile(t *testing.T) {
	planFile := filepath.Join(t.TempDir(), "plans.yaml")
	if err := os.WriteFile(planFile, []byte("[]"), 0o644); err != nil {
		t.Fatalf("write plan file: %v", err)
	}

	if _, err := LoadPlanCatalog(Config{PlanFile: planFile}); err == nil {
		t.Fatalf("expected error for empty plan file")
	}
}
