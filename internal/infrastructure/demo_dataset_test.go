package infrastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfhub/internal/domain"
	"perfhub/internal/usecase"
)

func TestDemoDataset(t *testing.T) {
	demo := NewDemoDataset()

	records := demo.Records()
	require.Len(t, records, 7)
	assert.Len(t, demo.Actions(), 4)

	ids := map[string]bool{}
	for _, r := range records {
		assert.Equal(t, domain.SourceMock, r.Source)
		assert.NotEmpty(t, r.AccountID)
		assert.False(t, ids[r.ID])
		ids[r.ID] = true
	}

	// the set is already consolidated
	merged, err := usecase.Merge(nil, records)
	require.NoError(t, err)
	assert.Len(t, merged, len(records))

	// callers get a copy
	records[0].Cost = -1
	assert.NotEqual(t, -1.0, demo.Records()[0].Cost)
}
