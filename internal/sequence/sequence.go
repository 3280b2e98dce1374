// Package sequence mints unique, human-readable reference numbers for
// enquiries, quotes, jobs and emergency work orders. Uniqueness relies on the
// store making "read last value, compute next, write" atomic per counter key;
// the allocator itself never does a read-then-write across two round trips.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/LenPushai/erha-ops/backend/workflow-service/internal/models"
)

var (
	// ErrSuffixSpaceExhausted is returned once a parent has consumed every
	// suffix up to ZZ. Requires manual intervention for that parent.
	ErrSuffixSpaceExhausted = errors.New("child suffix space exhausted")

	// ErrSuffixTaken is returned by the store when a claimed suffix already
	// exists for the parent; the allocator retries once before giving up.
	ErrSuffixTaken = errors.New("child suffix already issued")

	// ErrConflict is surfaced when the suffix claim lost the race twice
	ErrConflict = errors.New("suffix allocation conflict")
)

// maxSuffixOrdinal is ZZ: 26 single letters plus 26*26 double letters
const maxSuffixOrdinal = 26 + 26*26

// Counter key prefixes. Inbound enquiries and short job numbers share the
// YY-NNN shape but draw from separate sequences.
const (
	keyEnquiryIn  = "ENQ-IN"
	keyEnquiryOut = "ENQ-OUT"
	keyShortJob   = "JOB"
)

// Store is the persistence contract the allocator needs. NextValue must
// atomically increment-or-create the counter for (docType, period) and return
// the new value, never issuing the same value twice for a key.
type Store interface {
	NextValue(ctx context.Context, docType string, period int) (int, error)
	HighestSuffix(ctx context.Context, parentNumber string) (string, error)
	ClaimSuffix(ctx context.Context, parentNumber, suffix string) error
}

// Allocator issues formatted reference numbers backed by a Store
type Allocator struct {
	store Store
}

// NewAllocator creates a new allocator over the given store
func NewAllocator(store Store) *Allocator {
	return &Allocator{store: store}
}

// JobNumber issues the next number in the typed year series, e.g.
// RPR-2026-007. Emergency work orders use the EMG code and get EMG-2026-003.
func (a *Allocator) JobNumber(ctx context.Context, typeCode string, year int) (string, error) {
	typeCode = strings.ToUpper(strings.TrimSpace(typeCode))
	if typeCode == "" {
		return "", fmt.Errorf("job type code is required")
	}
	n, err := a.store.NextValue(ctx, typeCode, year)
	if err != nil {
		return "", fmt.Errorf("failed to allocate %s job number: %w", typeCode, err)
	}
	ref := fmt.Sprintf("%s-%d-%03d", typeCode, year, n)
	log.Printf("[SEQ] Issued job number %s", ref)
	return ref, nil
}

// ShortJobNumber issues the next two-digit-year job number, e.g. 26-014
func (a *Allocator) ShortJobNumber(ctx context.Context, year int) (string, error) {
	n, err := a.store.NextValue(ctx, keyShortJob, year)
	if err != nil {
		return "", fmt.Errorf("failed to allocate short job number: %w", err)
	}
	ref := fmt.Sprintf("%02d-%03d", year%100, n)
	log.Printf("[SEQ] Issued job number %s", ref)
	return ref, nil
}

// EnquiryNumber issues the next enquiry number for the year: 26-005 for
// inbound enquiries, 26-OUT-002 for outbound procurement requests.
func (a *Allocator) EnquiryNumber(ctx context.Context, direction models.Direction, year int) (string, error) {
	var key string
	switch direction {
	case models.DirectionIncoming:
		key = keyEnquiryIn
	case models.DirectionOutgoing:
		key = keyEnquiryOut
	default:
		return "", fmt.Errorf("unknown enquiry direction %q", direction)
	}

	n, err := a.store.NextValue(ctx, key, year)
	if err != nil {
		return "", fmt.Errorf("failed to allocate enquiry number: %w", err)
	}

	var ref string
	if direction == models.DirectionOutgoing {
		ref = fmt.Sprintf("%02d-OUT-%03d", year%100, n)
	} else {
		ref = fmt.Sprintf("%02d-%03d", year%100, n)
	}
	log.Printf("[SEQ] Issued enquiry number %s", ref)
	return ref, nil
}

// ChildSuffix issues the next unused letter for the parent: A, B, ... Z, AA,
// AB, ... ZZ. Letters are never recycled: the next suffix is derived from the
// highest previously issued one, not from the count of live children. The
// claim is guarded by a uniqueness constraint; a lost race is retried once.
func (a *Allocator) ChildSuffix(ctx context.Context, parentNumber string) (string, error) {
	for attempt := 0; attempt < 2; attempt++ {
		highest, err := a.store.HighestSuffix(ctx, parentNumber)
		if err != nil {
			return "", fmt.Errorf("failed to read highest suffix for %s: %w", parentNumber, err)
		}

		next, err := NextSuffix(highest)
		if err != nil {
			return "", err
		}

		if err := a.store.ClaimSuffix(ctx, parentNumber, next); err != nil {
			if errors.Is(err, ErrSuffixTaken) && attempt == 0 {
				log.Printf("[SEQ] Suffix %s-%s lost claim race, retrying", parentNumber, next)
				continue
			}
			if errors.Is(err, ErrSuffixTaken) {
				return "", fmt.Errorf("%w: parent %s", ErrConflict, parentNumber)
			}
			return "", fmt.Errorf("failed to claim suffix %s for %s: %w", next, parentNumber, err)
		}

		log.Printf("[SEQ] Issued child suffix %s-%s", parentNumber, next)
		return next, nil
	}
	return "", fmt.Errorf("%w: parent %s", ErrConflict, parentNumber)
}

// ChildNumber formats a full child job number, e.g. 26-014-B
func ChildNumber(parentNumber, suffix string) string {
	return parentNumber + "-" + suffix
}

// NextSuffix returns the suffix following the given one. Empty input yields
// "A"; "Z" rolls over to "AA"; past "ZZ" the space is exhausted.
func NextSuffix(current string) (string, error) {
	ord, err := suffixOrdinal(current)
	if err != nil {
		return "", err
	}
	if ord >= maxSuffixOrdinal {
		return "", ErrSuffixSpaceExhausted
	}
	return ordinalSuffix(ord + 1), nil
}

// suffixOrdinal maps "" -> 0, "A" -> 1, "Z" -> 26, "AA" -> 27, "ZZ" -> 702
func suffixOrdinal(s string) (int, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}
	if len(s) > 2 {
		return 0, fmt.Errorf("invalid child suffix %q", s)
	}
	ord := 0
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return 0, fmt.Errorf("invalid child suffix %q", s)
		}
		ord = ord*26 + int(r-'A') + 1
	}
	return ord, nil
}

// ordinalSuffix is the inverse of suffixOrdinal for 1..702
func ordinalSuffix(ord int) string {
	if ord <= 26 {
		return string(rune('A' + ord - 1))
	}
	ord -= 27
	return string(rune('A'+ord/26)) + string(rune('A'+ord%26))
}
