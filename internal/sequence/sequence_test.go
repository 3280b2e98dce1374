package sequence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/LenPushai/erha-ops/backend/workflow-service/internal/models"
)

// memStore is an in-memory Store with the same atomicity guarantees the
// database provides: increments are serialized per key and suffix claims are
// unique per (parent, suffix).
type memStore struct {
	mu       sync.Mutex
	counters map[string]int
	suffixes map[string]map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		counters: make(map[string]int),
		suffixes: make(map[string]map[string]bool),
	}
}

func (m *memStore) NextValue(ctx context.Context, docType string, period int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s|%d", docType, period)
	m.counters[key]++
	return m.counters[key], nil
}

func (m *memStore) HighestSuffix(ctx context.Context, parent string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	highest := ""
	highOrd := 0
	for s := range m.suffixes[parent] {
		ord, err := suffixOrdinal(s)
		if err != nil {
			return "", err
		}
		if ord > highOrd {
			highOrd = ord
			highest = s
		}
	}
	return highest, nil
}

func (m *memStore) ClaimSuffix(ctx context.Context, parent, suffix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.suffixes[parent] == nil {
		m.suffixes[parent] = make(map[string]bool)
	}
	if m.suffixes[parent][suffix] {
		return ErrSuffixTaken
	}
	m.suffixes[parent][suffix] = true
	return nil
}

func TestJobNumberFormats(t *testing.T) {
	ctx := context.Background()
	alloc := NewAllocator(newMemStore())

	ref, err := alloc.JobNumber(ctx, "RPR", 2026)
	if err != nil {
		t.Fatalf("JobNumber: %v", err)
	}
	if ref != "RPR-2026-001" {
		t.Errorf("expected RPR-2026-001, got %s", ref)
	}

	ref, err = alloc.JobNumber(ctx, "RPR", 2026)
	if err != nil {
		t.Fatalf("JobNumber: %v", err)
	}
	if ref != "RPR-2026-002" {
		t.Errorf("expected RPR-2026-002, got %s", ref)
	}

	ref, err = alloc.JobNumber(ctx, "EMG", 2026)
	if err != nil {
		t.Fatalf("JobNumber: %v", err)
	}
	if ref != "EMG-2026-001" {
		t.Errorf("emergency series must be independent, got %s", ref)
	}
}

func TestShortJobNumberFormat(t *testing.T) {
	ctx := context.Background()
	alloc := NewAllocator(newMemStore())

	ref, err := alloc.ShortJobNumber(ctx, 2026)
	if err != nil {
		t.Fatalf("ShortJobNumber: %v", err)
	}
	if ref != "26-001" {
		t.Errorf("expected 26-001, got %s", ref)
	}
}

func TestEnquiryNumberFormats(t *testing.T) {
	ctx := context.Background()
	alloc := NewAllocator(newMemStore())

	in, err := alloc.EnquiryNumber(ctx, models.DirectionIncoming, 2026)
	if err != nil {
		t.Fatalf("EnquiryNumber incoming: %v", err)
	}
	if in != "26-001" {
		t.Errorf("expected 26-001, got %s", in)
	}

	out, err := alloc.EnquiryNumber(ctx, models.DirectionOutgoing, 2026)
	if err != nil {
		t.Fatalf("EnquiryNumber outgoing: %v", err)
	}
	if out != "26-OUT-001" {
		t.Errorf("expected 26-OUT-001, got %s", out)
	}

	if _, err := alloc.EnquiryNumber(ctx, models.Direction("SIDEWAYS"), 2026); err == nil {
		t.Error("expected error for unknown direction")
	}
}

func TestNumbersSeparatePerPeriod(t *testing.T) {
	ctx := context.Background()
	alloc := NewAllocator(newMemStore())

	a, _ := alloc.JobNumber(ctx, "RPR", 2025)
	b, _ := alloc.JobNumber(ctx, "RPR", 2026)
	if a != "RPR-2025-001" || b != "RPR-2026-001" {
		t.Errorf("sequences must reset per period: got %s and %s", a, b)
	}
}

// N concurrent allocations for one (type, period) must yield N distinct,
// contiguous numbers with no gaps and no duplicates.
func TestAllocateUniqueUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	alloc := NewAllocator(newMemStore())

	const n = 50
	results := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref, err := alloc.JobNumber(ctx, "RPR", 2026)
			if err != nil {
				t.Errorf("JobNumber: %v", err)
				return
			}
			results <- ref
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for ref := range results {
		if seen[ref] {
			t.Fatalf("duplicate reference issued: %s", ref)
		}
		seen[ref] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct refs, got %d", n, len(seen))
	}
	for i := 1; i <= n; i++ {
		want := fmt.Sprintf("RPR-2026-%03d", i)
		if !seen[want] {
			t.Errorf("gap in sequence: %s missing", want)
		}
	}
}

func TestChildSuffixSequence(t *testing.T) {
	ctx := context.Background()
	alloc := NewAllocator(newMemStore())

	for _, want := range []string{"A", "B", "C"} {
		got, err := alloc.ChildSuffix(ctx, "26-014")
		if err != nil {
			t.Fatalf("ChildSuffix: %v", err)
		}
		if got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	}

	if ChildNumber("26-014", "B") != "26-014-B" {
		t.Errorf("unexpected child number format")
	}
}

// After A, B, C are issued and the B child is deleted, the next allocation is
// D. Issued suffixes stay claimed forever.
func TestChildSuffixNeverRecycled(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	alloc := NewAllocator(store)

	for i := 0; i < 3; i++ {
		if _, err := alloc.ChildSuffix(ctx, "26-014"); err != nil {
			t.Fatalf("ChildSuffix: %v", err)
		}
	}

	// Simulating a deleted child does not release its claim; only the live
	// document row goes away.
	got, err := alloc.ChildSuffix(ctx, "26-014")
	if err != nil {
		t.Fatalf("ChildSuffix: %v", err)
	}
	if got != "D" {
		t.Errorf("expected D after A,B,C issued, got %s", got)
	}
}

func TestNextSuffixExtendsPastZ(t *testing.T) {
	tests := []struct {
		current string
		want    string
	}{
		{"", "A"},
		{"A", "B"},
		{"Z", "AA"},
		{"AA", "AB"},
		{"AZ", "BA"},
		{"ZY", "ZZ"},
	}
	for _, tt := range tests {
		got, err := NextSuffix(tt.current)
		if err != nil {
			t.Fatalf("NextSuffix(%q): %v", tt.current, err)
		}
		if got != tt.want {
			t.Errorf("NextSuffix(%q) = %s, want %s", tt.current, got, tt.want)
		}
	}

	if _, err := NextSuffix("ZZ"); !errors.Is(err, ErrSuffixSpaceExhausted) {
		t.Errorf("expected ErrSuffixSpaceExhausted past ZZ, got %v", err)
	}
}

// staleStore serves one stale HighestSuffix read, simulating a concurrent
// caller claiming a suffix between our read and our claim.
type staleStore struct {
	*memStore
	stale bool
}

func (s *staleStore) HighestSuffix(ctx context.Context, parent string) (string, error) {
	if s.stale {
		s.stale = false
		return "", nil
	}
	return s.memStore.HighestSuffix(ctx, parent)
}

func TestChildSuffixRetriesLostClaimOnce(t *testing.T) {
	ctx := context.Background()
	store := &staleStore{memStore: newMemStore(), stale: true}
	alloc := NewAllocator(store)

	// Another caller already claimed A; our first read is stale and we try
	// to claim A again, lose, and must retry as a fresh read.
	if err := store.ClaimSuffix(ctx, "26-020", "A"); err != nil {
		t.Fatal(err)
	}

	got, err := alloc.ChildSuffix(ctx, "26-020")
	if err != nil {
		t.Fatalf("ChildSuffix: %v", err)
	}
	if got != "B" {
		t.Errorf("expected B after losing claim for A, got %s", got)
	}
}
