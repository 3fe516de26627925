package domain

import (
	"context"
)

// process-wide keyed storage; values are stored and returned whole
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// interface for the consolidated record cache
type PerformanceRepository interface {
	Load(ctx context.Context) ([]PerformanceRecord, error)
	Save(ctx context.Context, records []PerformanceRecord) error
	GetByDateRange(ctx context.Context, rng DateRange) ([]PerformanceRecord, error)
}

// interface for the connection registry
type ConnectionRepository interface {
	List(ctx context.Context) ([]ConnectionStatus, error)
	Get(ctx context.Context, provider ProviderID) (ConnectionStatus, bool, error)
	Upsert(ctx context.Context, conn ConnectionStatus) error
	Remove(ctx context.Context, provider ProviderID) error
}

// interface for live provider pulls
type LiveSource interface {
	Fetch(ctx context.Context, conn ConnectionStatus, rng DateRange) ([]PerformanceRecord, error)
}

// interface for the demonstration dataset
type FallbackSource interface {
	Records() []PerformanceRecord
	Actions() []ActionLog
}

// interface for narrative insight generation. Analyze answers question
// over dataContext, following the earlier turns of the conversation.
// MarketInsights reports current search-market trends for a niche.
type Analyst interface {
	Analyze(ctx context.Context, question string, history []ChatTurn, dataContext []byte) (string, error)
	MarketInsights(ctx context.Context, niche string) (*MarketInsight, error)
}
