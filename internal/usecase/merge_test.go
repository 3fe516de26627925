package usecase

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfhub/internal/domain"
)

func rec(dimension string, state domain.DataState, ts int64, cost float64) domain.PerformanceRecord {
	return domain.PerformanceRecord{
		Provider:      "Google Ads",
		Date:          "2026-01-01",
		DimensionName: dimension,
		ReportType:    domain.ReportCampaign,
		State:         state,
		Source:        domain.SourceCSV,
		Timestamp:     ts,
		Cost:          cost,
	}.WithID()
}

func TestMergeKeepsNewerCurrent(t *testing.T) {
	base := []domain.PerformanceRecord{rec("Brand", domain.StateCurrent, 10, 100)}
	incoming := []domain.PerformanceRecord{rec("Brand", domain.StateCurrent, 5, 200)}

	merged, stats, err := MergeWithStats(base, incoming)
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, 100.0, merged[0].Cost)
	assert.Equal(t, MergeStats{Kept: 1}, stats)
}

func TestMergeClosedReplacesOlderCurrent(t *testing.T) {
	base := []domain.PerformanceRecord{rec("Brand", domain.StateCurrent, 100, 100)}
	incoming := []domain.PerformanceRecord{rec("Brand", domain.StateClosed, 1, 90)}

	merged, stats, err := MergeWithStats(base, incoming)
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, domain.StateClosed, merged[0].State)
	assert.Equal(t, 90.0, merged[0].Cost)
	assert.Equal(t, MergeStats{Replaced: 1}, stats)
}

func TestMergeClosedBeatsCurrentFromEitherSide(t *testing.T) {
	closed := rec("Brand", domain.StateClosed, 1, 90)
	current := rec("Brand", domain.StateCurrent, 500, 120)

	ab, err := Merge([]domain.PerformanceRecord{closed}, []domain.PerformanceRecord{current})
	require.NoError(t, err)
	ba, err := Merge([]domain.PerformanceRecord{current}, []domain.PerformanceRecord{closed})
	require.NoError(t, err)

	require.Len(t, ab, 1)
	require.Len(t, ba, 1)
	assert.Equal(t, domain.StateClosed, ab[0].State)
	assert.Equal(t, ab, ba)
}

func TestMergeBothClosed(t *testing.T) {
	older := rec("Brand", domain.StateClosed, 1, 90)
	newer := rec("Brand", domain.StateClosed, 2, 95)
	tie := rec("Brand", domain.StateClosed, 1, 99)

	merged, stats, err := MergeWithStats([]domain.PerformanceRecord{older}, []domain.PerformanceRecord{newer})
	require.NoError(t, err)
	assert.Equal(t, 95.0, merged[0].Cost)
	assert.Equal(t, MergeStats{Replaced: 1}, stats)

	// a re-closed period replaces the earlier close even with an older timestamp
	merged, stats, err = MergeWithStats([]domain.PerformanceRecord{newer}, []domain.PerformanceRecord{older})
	require.NoError(t, err)
	assert.Equal(t, 90.0, merged[0].Cost)
	assert.Equal(t, MergeStats{Replaced: 1}, stats)

	// equal timestamps keep the existing record
	merged, stats, err = MergeWithStats([]domain.PerformanceRecord{older}, []domain.PerformanceRecord{tie})
	require.NoError(t, err)
	assert.Equal(t, 90.0, merged[0].Cost)
	assert.Equal(t, MergeStats{Kept: 1}, stats)
}

func TestMergeIncomingClosedIgnoresTimestamp(t *testing.T) {
	base := []domain.PerformanceRecord{rec("Brand", domain.StateClosed, 10, 100)}
	incoming := []domain.PerformanceRecord{rec("Brand", domain.StateClosed, 5, 200)}

	merged, err := Merge(base, incoming)
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, 200.0, merged[0].Cost)
	assert.Equal(t, int64(5), merged[0].Timestamp)
}

func TestMergeTimestampTiebreakOnCurrent(t *testing.T) {
	base := []domain.PerformanceRecord{rec("Brand", domain.StateCurrent, 10, 100)}

	merged, err := Merge(base, []domain.PerformanceRecord{rec("Brand", domain.StateCurrent, 10, 300)})
	require.NoError(t, err)
	assert.Equal(t, 100.0, merged[0].Cost)

	merged, err = Merge(base, []domain.PerformanceRecord{rec("Brand", domain.StateCurrent, 11, 300)})
	require.NoError(t, err)
	assert.Equal(t, 300.0, merged[0].Cost)
}

func TestMergeIsIdempotent(t *testing.T) {
	a := []domain.PerformanceRecord{
		rec("Brand", domain.StateCurrent, 10, 100),
		rec("Generic", domain.StateClosed, 3, 40),
		rec("Retargeting", domain.StateCurrent, 7, 12),
	}

	once, err := Merge(nil, a)
	require.NoError(t, err)
	twice, err := Merge(a, a)
	require.NoError(t, err)
	assert.Equal(t, once, twice)

	again, err := Merge(twice, a)
	require.NoError(t, err)
	assert.Equal(t, twice, again)
}

func TestMergeAssociativeInEffect(t *testing.T) {
	a := []domain.PerformanceRecord{rec("Brand", domain.StateCurrent, 10, 1), rec("Generic", domain.StateCurrent, 1, 2)}
	b := []domain.PerformanceRecord{rec("Brand", domain.StateCurrent, 20, 3), rec("Video", domain.StateCurrent, 5, 4)}
	c := []domain.PerformanceRecord{rec("Brand", domain.StateClosed, 15, 5), rec("Generic", domain.StateCurrent, 9, 6)}

	ab, err := Merge(a, b)
	require.NoError(t, err)
	left, err := Merge(ab, c)
	require.NoError(t, err)

	bc, err := Merge(b, c)
	require.NoError(t, err)
	right, err := Merge(a, bc)
	require.NoError(t, err)

	assert.ElementsMatch(t, left, right)
}

func TestMergeOneRecordPerKeyInFirstSeenOrder(t *testing.T) {
	base := []domain.PerformanceRecord{
		rec("Brand", domain.StateCurrent, 1, 1),
		rec("Brand", domain.StateCurrent, 2, 2),
		rec("Generic", domain.StateCurrent, 1, 3),
	}
	incoming := []domain.PerformanceRecord{
		rec("Video", domain.StateCurrent, 1, 4),
		rec("Brand", domain.StateCurrent, 3, 5),
	}

	merged, stats, err := MergeWithStats(base, incoming)
	require.NoError(t, err)
	require.Len(t, merged, 3)

	assert.Equal(t, "Brand", merged[0].DimensionName)
	assert.Equal(t, 5.0, merged[0].Cost)
	assert.Equal(t, "Generic", merged[1].DimensionName)
	assert.Equal(t, "Video", merged[2].DimensionName)
	assert.Equal(t, MergeStats{Inserted: 1, Replaced: 1}, stats)

	seen := map[string]bool{}
	for _, r := range merged {
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
	}
}

func TestMergeDoesNotModifyInputs(t *testing.T) {
	base := []domain.PerformanceRecord{rec("Brand", domain.StateCurrent, 1, 1)}
	incoming := []domain.PerformanceRecord{rec("Brand", domain.StateClosed, 2, 2)}
	baseCopy := append([]domain.PerformanceRecord(nil), base...)

	_, err := Merge(base, incoming)
	require.NoError(t, err)
	assert.Equal(t, baseCopy, base)
}

func TestMergeContractViolation(t *testing.T) {
	valid := rec("Brand", domain.StateCurrent, 1, 1)

	noProvider := valid
	noProvider.Provider = ""
	noDate := valid
	noDate.Date = ""
	badState := valid
	badState.State = "draft"

	for i, bad := range []domain.PerformanceRecord{noProvider, noDate, badState} {
		t.Run(fmt.Sprintf("case %d", i), func(t *testing.T) {
			_, err := Merge([]domain.PerformanceRecord{valid}, []domain.PerformanceRecord{bad})
			assert.ErrorIs(t, err, domain.ErrContractViolation)

			_, err = Merge([]domain.PerformanceRecord{bad}, nil)
			assert.ErrorIs(t, err, domain.ErrContractViolation)
		})
	}
}

func TestMergeEmpty(t *testing.T) {
	merged, err := Merge(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, merged)
}

func TestSplitValid(t *testing.T) {
	valid := rec("Brand", domain.StateCurrent, 1, 1)
	noDate := valid
	noDate.Date = ""
	badState := valid
	badState.State = ""

	kept, dropped, reason := SplitValid([]domain.PerformanceRecord{noDate, valid, badState})
	assert.Equal(t, []domain.PerformanceRecord{valid}, kept)
	assert.Equal(t, 2, dropped)
	assert.ErrorIs(t, reason, domain.ErrContractViolation)

	kept, dropped, reason = SplitValid([]domain.PerformanceRecord{valid})
	assert.Len(t, kept, 1)
	assert.Zero(t, dropped)
	assert.NoError(t, reason)
}
