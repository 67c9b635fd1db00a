package quota

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ametelin/docinsights/internal/core/domain"
)

type quotaStoreFake struct {
	mu    sync.Mutex
	usage map[string]domain.Usage
	calls int
	errs  []error
}

func (f *quotaStoreFake) GetUsage(_ context.Context, accountID string) (domain.Usage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return domain.Usage{}, err
		}
	}
	return f.usage[accountID], nil
}

func testPlans() *domain.PlanCatalog {
	return domain.NewPlanCatalog([]domain.Plan{
		{ID: "free", Name: "Free", MaxStorageBytes: 1000, MaxDocuments: 2},
		{ID: "business", Name: "Business", MaxStorageBytes: domain.Unlimited, MaxDocuments: domain.Unlimited},
	}, "free")
}

func TestReserveWithinLimits(t *testing.T) {
	store := &quotaStoreFake{usage: map[string]domain.Usage{}}
	ledger := NewLedger(store, testPlans())

	if err := ledger.Reserve(context.Background(), "acc-1", 600); err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
}

func TestReserveCountsPendingAgainstLimit(t *testing.T) {
	store := &quotaStoreFake{usage: map[string]domain.Usage{}}
	ledger := NewLedger(store, testPlans())

	if err := ledger.Reserve(context.Background(), "acc-1", 600); err != nil {
		t.Fatalf("first Reserve() error = %v", err)
	}
	err := ledger.Reserve(context.Background(), "acc-1", 600)
	if !domain.IsKind(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
}

func TestReserveDocumentCountLimit(t *testing.T) {
	store := &quotaStoreFake{usage: map[string]domain.Usage{
		"acc-1": {AccountID: "acc-1", PlanID: "free", DocumentCount: 2},
	}}
	ledger := NewLedger(store, testPlans())

	err := ledger.Reserve(context.Background(), "acc-1", 1)
	if !domain.IsKind(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected quota exceeded on document count, got %v", err)
	}
}

func TestReserveUnlimitedPlanNeverDenies(t *testing.T) {
	store := &quotaStoreFake{usage: map[string]domain.Usage{
		"acc-1": {AccountID: "acc-1", PlanID: "business", BytesUsed: 1 << 40, DocumentCount: 1 << 20},
	}}
	ledger := NewLedger(store, testPlans())

	for i := 0; i < 10; i++ {
		if err := ledger.Reserve(context.Background(), "acc-1", 1<<30); err != nil {
			t.Fatalf("Reserve() on unlimited plan error = %v", err)
		}
	}
}

func TestReleaseFreesReservation(t *testing.T) {
	store := &quotaStoreFake{usage: map[string]domain.Usage{}}
	ledger := NewLedger(store, testPlans())

	if err := ledger.Reserve(context.Background(), "acc-1", 900); err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	ledger.Release("acc-1", 900)
	if err := ledger.Reserve(context.Background(), "acc-1", 900); err != nil {
		t.Fatalf("Reserve() after Release() error = %v", err)
	}
}

func TestCommitMovesReservationIntoUsage(t *testing.T) {
	store := &quotaStoreFake{usage: map[string]domain.Usage{}}
	ledger := NewLedger(store, testPlans())

	if err := ledger.Reserve(context.Background(), "acc-1", 600); err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	ledger.Commit("acc-1", 600)

	// Committed usage still counts: 600 used + 600 requested > 1000.
	err := ledger.Reserve(context.Background(), "acc-1", 600)
	if !domain.IsKind(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected quota exceeded after commit, got %v", err)
	}
	if got := store.calls; got != 1 {
		t.Fatalf("expected single store read, got %d", got)
	}
}

func TestInvalidateRefreshesFromStore(t *testing.T) {
	store := &quotaStoreFake{usage: map[string]domain.Usage{
		"acc-1": {AccountID: "acc-1", PlanID: "free", BytesUsed: 900, DocumentCount: 1},
	}}
	ledger := NewLedger(store, testPlans())

	if err := ledger.Reserve(context.Background(), "acc-1", 50); err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	ledger.Commit("acc-1", 50)

	// Deletion happened in the store; the ledger only learns via Invalidate.
	store.mu.Lock()
	store.usage["acc-1"] = domain.Usage{AccountID: "acc-1", PlanID: "free"}
	store.mu.Unlock()
	ledger.Invalidate("acc-1")

	if err := ledger.Reserve(context.Background(), "acc-1", 900); err != nil {
		t.Fatalf("Reserve() after Invalidate() error = %v", err)
	}
}

func TestReserveRetriesStoreOnce(t *testing.T) {
	store := &quotaStoreFake{
		usage: map[string]domain.Usage{},
		errs:  []error{errors.New("connection reset")},
	}
	ledger := NewLedger(store, testPlans())

	if err := ledger.Reserve(context.Background(), "acc-1", 100); err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if store.calls != 2 {
		t.Fatalf("expected 2 store reads, got %d", store.calls)
	}
}

func TestReserveSurfacesStorageErrorAfterRetry(t *testing.T) {
	store := &quotaStoreFake{
		usage: map[string]domain.Usage{},
		errs:  []error{errors.New("down"), errors.New("still down")},
	}
	ledger := NewLedger(store, testPlans())

	err := ledger.Reserve(context.Background(), "acc-1", 100)
	if !domain.IsKind(err, domain.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestConcurrentReservesNeverOvershoot(t *testing.T) {
	store := &quotaStoreFake{usage: map[string]domain.Usage{}}
	ledger := NewLedger(store, testPlans())

	// Plan allows 2 documents; 3 goroutines race for slots.
	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ledger.Reserve(context.Background(), "acc-1", 10); err == nil {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := granted.Load(); got != 2 {
		t.Fatalf("expected exactly 2 grants, got %d", got)
	}
}

func TestReportIncludesPlanAndUsage(t *testing.T) {
	store := &quotaStoreFake{usage: map[string]domain.Usage{
		"acc-1": {AccountID: "acc-1", PlanID: "free", BytesUsed: 300, DocumentCount: 1},
	}}
	ledger := NewLedger(store, testPlans())

	report, err := ledger.Report(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if report.PlanID != "free" || report.PlanName != "Free" {
		t.Fatalf("unexpected plan in report: %+v", report)
	}
	if report.Storage.Current != 300 || report.Storage.Limit != 1000 {
		t.Fatalf("unexpected storage quota: %+v", report.Storage)
	}
	if report.Documents.Current != 1 || report.Documents.Limit != 2 {
		t.Fatalf("unexpected document quota: %+v", report.Documents)
	}
}

func TestReserveRejectsNegativeSize(t *testing.T) {
	store := &quotaStoreFake{usage: map[string]domain.Usage{}}
	ledger := NewLedger(store, testPlans())

	err := ledger.Reserve(context.Background(), "acc-1", -1)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
