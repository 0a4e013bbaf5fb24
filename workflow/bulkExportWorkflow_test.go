package workflow

import (
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/fxcard_backend/models"
)

// NOTE: These tests are intentionally DB-free. They validate the selection
// and status-flip contract the export job relies on: a run flips every
// selected record from Export Eligible to Exported atomically, so a repeat
// run finds nothing and registers no job.

// fakeApplicationStore mirrors the guarded bulk UPDATE the export
// transaction issues: the flip only commits when every selected id is
// still eligible.
type fakeApplicationStore struct {
	mu       sync.Mutex
	statuses map[int]models.ApplicationStatus
	jobs     int
}

func (s *fakeApplicationStore) selectEligible() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.statuses))
	for id, status := range s.statuses {
		if status == models.ApplicationStatusExportEligible {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *fakeApplicationStore) flipAndRegister(ids []int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	flipped := 0
	for _, id := range ids {
		if s.statuses[id] == models.ApplicationStatusExportEligible {
			flipped++
		}
	}
	if flipped != len(ids) {
		return false
	}
	for _, id := range ids {
		s.statuses[id] = models.ApplicationStatusExported
	}
	s.jobs++
	return true
}

func (s *fakeApplicationStore) exportOnce() bool {
	ids := s.selectEligible()
	if len(ids) == 0 {
		return false
	}
	return s.flipAndRegister(ids)
}

// Two exports in the same second must not share an object name.
func TestExportFileNamesUniqueWithinSecond(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	a := exportFileName(now)
	b := exportFileName(now)
	if a == b {
		t.Fatalf("object names collide: %q", a)
	}
	prefix := "bulk_export_20260314_093000_"
	if len(a) <= len(prefix) || a[:len(prefix)] != prefix {
		t.Fatalf("unexpected name shape: %q", a)
	}
}

func TestExportSecondRunIsNoOp(t *testing.T) {
	store := &fakeApplicationStore{statuses: map[int]models.ApplicationStatus{
		1: models.ApplicationStatusExportEligible,
		2: models.ApplicationStatusExportEligible,
		3: models.ApplicationStatusPendingMaker,
	}}

	if !store.exportOnce() {
		t.Fatal("first run must create a job")
	}
	if store.jobs != 1 {
		t.Fatalf("expected one job after first run, got %d", store.jobs)
	}
	if store.statuses[1] != models.ApplicationStatusExported || store.statuses[2] != models.ApplicationStatusExported {
		t.Fatalf("eligible records must be flipped: %+v", store.statuses)
	}
	if store.statuses[3] != models.ApplicationStatusPendingMaker {
		t.Fatal("ineligible record must not be touched")
	}

	if store.exportOnce() {
		t.Fatal("second run must select nothing")
	}
	if store.jobs != 1 {
		t.Fatalf("second run must not register a job, got %d", store.jobs)
	}
}

func TestExportFlipIsAllOrNothing(t *testing.T) {
	store := &fakeApplicationStore{statuses: map[int]models.ApplicationStatus{
		1: models.ApplicationStatusExportEligible,
		2: models.ApplicationStatusExportEligible,
	}}

	ids := store.selectEligible()
	// Another run flips record 2 between selection and the guarded update.
	store.statuses[2] = models.ApplicationStatusExported

	if store.flipAndRegister(ids) {
		t.Fatal("flip must fail when the eligible set changed underneath")
	}
	if store.jobs != 0 {
		t.Fatalf("failed flip must not register a job, got %d", store.jobs)
	}
	if store.statuses[1] != models.ApplicationStatusExportEligible {
		t.Fatal("failed flip must leave untouched records eligible")
	}
}

func TestConcurrentExportsRegisterOneJob(t *testing.T) {
	store := &fakeApplicationStore{statuses: map[int]models.ApplicationStatus{}}
	for id := 1; id <= 20; id++ {
		store.statuses[id] = models.ApplicationStatusExportEligible
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.exportOnce()
		}()
	}
	wg.Wait()

	if store.jobs != 1 {
		t.Fatalf("expected exactly one registered job, got %d", store.jobs)
	}
	for id, status := range store.statuses {
		if status != models.ApplicationStatusExported {
			t.Fatalf("record %d left in %q", id, status)
		}
	}
}
