package workflow

import (
	"math/rand"
	"sync"
	"testing"

	"bitbucket.org/mmdatafocus/fxcard_backend/models"
)

// NOTE: These tests are intentionally DB-free. They validate the dual-control
// guard semantics the bulk upload path relies on:
// - at most one accepted submission per role per job
// - the checker can never complete before the maker
// Full DB integration tests require MySQL and belong in a separate environment.

// fakeJobStore mirrors the conditional updates MarkRoleProcessed issues.
type fakeJobStore struct {
	mu               sync.Mutex
	makerProcessed   bool
	checkerProcessed bool
	makerWins        int
	checkerWins      int
}

func (s *fakeJobStore) markProcessed(role models.ReviewerRole) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if role == models.ReviewerRoleMaker {
		if s.makerProcessed {
			return false
		}
		s.makerProcessed = true
		s.makerWins++
		return true
	}

	if !s.makerProcessed || s.checkerProcessed {
		return false
	}
	s.checkerProcessed = true
	s.checkerWins++
	return true
}

func TestConcurrentMakerSubmissionsSingleWinner(t *testing.T) {
	store := &fakeJobStore{}

	var wg sync.WaitGroup
	accepted := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			accepted <- store.markProcessed(models.ReviewerRoleMaker)
		}()
	}
	wg.Wait()
	close(accepted)

	wins := 0
	for ok := range accepted {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one accepted maker submission, got %d", wins)
	}
}

func TestCheckerBeforeMakerRejected(t *testing.T) {
	store := &fakeJobStore{}

	if store.markProcessed(models.ReviewerRoleChecker) {
		t.Fatal("checker must not complete before the maker")
	}
	if !store.markProcessed(models.ReviewerRoleMaker) {
		t.Fatal("first maker submission must be accepted")
	}
	if !store.markProcessed(models.ReviewerRoleChecker) {
		t.Fatal("checker after maker must be accepted")
	}
	if store.markProcessed(models.ReviewerRoleChecker) {
		t.Fatal("second checker submission must be rejected")
	}
}

// Under any interleaving of submissions, the store ends with at most one win
// per role and never a checker win without a maker win.
func TestRandomInterleavingsKeepInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for round := 0; round < 200; round++ {
		store := &fakeJobStore{}
		roles := make([]models.ReviewerRole, 0, 12)
		for i := 0; i < 12; i++ {
			if rng.Intn(2) == 0 {
				roles = append(roles, models.ReviewerRoleMaker)
			} else {
				roles = append(roles, models.ReviewerRoleChecker)
			}
		}

		var wg sync.WaitGroup
		for _, role := range roles {
			wg.Add(1)
			go func(r models.ReviewerRole) {
				defer wg.Done()
				store.markProcessed(r)
			}(role)
		}
		wg.Wait()

		if store.makerWins > 1 || store.checkerWins > 1 {
			t.Fatalf("round %d: multiple wins per role: maker=%d checker=%d", round, store.makerWins, store.checkerWins)
		}
		if store.checkerWins == 1 && store.makerWins == 0 {
			t.Fatalf("round %d: checker completed without maker", round)
		}
	}
}
