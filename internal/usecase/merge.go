package usecase

import (
	"fmt"

	"perfhub/internal/domain"
)

// MergeStats counts the decision taken for every incoming record
type MergeStats struct {
	Inserted int `json:"inserted"`
	Replaced int `json:"replaced"`
	Kept     int `json:"kept"`
}

// Merge folds incoming into base, one record per identity key. Neither
// input is modified. Output keeps first-seen key order.
func Merge(base, incoming []domain.PerformanceRecord) ([]domain.PerformanceRecord, error) {
	merged, _, err := MergeWithStats(base, incoming)
	return merged, err
}

func MergeWithStats(base, incoming []domain.PerformanceRecord) ([]domain.PerformanceRecord, MergeStats, error) {
	var stats MergeStats

	index := make(map[domain.RecordKey]int, len(base)+len(incoming))
	merged := make([]domain.PerformanceRecord, 0, len(base)+len(incoming))

	fold := func(r domain.PerformanceRecord, count bool) error {
		if err := checkIdentity(r); err != nil {
			return err
		}
		key := r.Key()
		pos, exists := index[key]
		if !exists {
			index[key] = len(merged)
			merged = append(merged, r)
			if count {
				stats.Inserted++
			}
			return nil
		}
		if supersedes(r, merged[pos]) {
			merged[pos] = r
			if count {
				stats.Replaced++
			}
		} else if count {
			stats.Kept++
		}
		return nil
	}

	for _, r := range base {
		if err := fold(r, false); err != nil {
			return nil, MergeStats{}, fmt.Errorf("base record: %w", err)
		}
	}
	for _, r := range incoming {
		if err := fold(r, true); err != nil {
			return nil, MergeStats{}, fmt.Errorf("incoming record: %w", err)
		}
	}

	return merged, stats, nil
}

// supersedes reports whether incoming replaces existing. A closed record is
// never displaced by a current one. An incoming closed record replaces an
// existing closed one whatever the timestamps, except on an exact tie.
func supersedes(incoming, existing domain.PerformanceRecord) bool {
	switch {
	case existing.State == domain.StateClosed && incoming.State != domain.StateClosed:
		return false
	case existing.State == domain.StateClosed && incoming.State == domain.StateClosed:
		return incoming.Timestamp != existing.Timestamp
	case incoming.State == domain.StateClosed:
		return true
	}
	return incoming.Timestamp > existing.Timestamp
}

func checkIdentity(r domain.PerformanceRecord) error {
	if r.Provider == "" || r.Date == "" {
		return fmt.Errorf("%w: record %q has no provider or date", domain.ErrContractViolation, r.ID)
	}
	if !r.State.Valid() {
		return fmt.Errorf("%w: record %q has state %q", domain.ErrContractViolation, r.ID, r.State)
	}
	return nil
}

// SplitValid separates records that can enter a merge from those lacking
// identity or carrying an unknown state. The first rejection reason is
// returned for logging.
func SplitValid(records []domain.PerformanceRecord) ([]domain.PerformanceRecord, int, error) {
	valid := make([]domain.PerformanceRecord, 0, len(records))
	var (
		dropped int
		first   error
	)
	for _, r := range records {
		if err := checkIdentity(r); err != nil {
			dropped++
			if first == nil {
				first = err
			}
			continue
		}
		valid = append(valid, r)
	}
	return valid, dropped, first
}
