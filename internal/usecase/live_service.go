package usecase

import (
	"context"
	"fmt"
	"time"

	"perfhub/internal/domain"
	"perfhub/pkg/logger"
)

// LiveService runs an explicit pull from a single provider
type LiveService struct {
	connRepo     domain.ConnectionRepository
	live         domain.LiveSource
	logger       *logger.Logger
	fetchTimeout time.Duration
	now          func() time.Time
}

func NewLiveService(connRepo domain.ConnectionRepository, live domain.LiveSource, logger *logger.Logger, fetchTimeout time.Duration) *LiveService {
	return &LiveService{
		connRepo:     connRepo,
		live:         live,
		logger:       logger,
		fetchTimeout: fetchTimeout,
		now:          time.Now,
	}
}

type SyncResult struct {
	Provider domain.ProviderID          `json:"provider"`
	Range    domain.DateRange           `json:"range"`
	Records  []domain.PerformanceRecord `json:"data"`
	LastSync int64                      `json:"lastSync"`
}

// Sync fetches provider's rows for rng and stamps the connection's last
// sync time. A provider without a usable connection yields
// domain.ErrNoConnections.
func (s *LiveService) Sync(ctx context.Context, provider domain.ProviderID, rng domain.DateRange) (*SyncResult, error) {
	log := s.logger.WithProvider(ctx, string(provider))

	if !provider.Known() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, provider)
	}

	conn, ok, err := s.connRepo.Get(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to load connection: %w", err)
	}
	if !ok || !conn.Usable() {
		return nil, fmt.Errorf("%s is not connected: %w", provider.Label(), domain.ErrNoConnections)
	}

	fetchCtx := ctx
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}

	records, err := s.live.Fetch(fetchCtx, conn, rng)
	if err != nil {
		log.WithError(err).Error("Provider sync failed")
		return nil, err
	}

	conn.LastSync = s.now().UnixMilli()
	if err := s.connRepo.Upsert(ctx, conn); err != nil {
		return nil, fmt.Errorf("failed to record sync time: %w", err)
	}

	log.WithField("records", len(records)).Info("Provider sync completed")

	return &SyncResult{
		Provider: provider,
		Range:    rng,
		Records:  records,
		LastSync: conn.LastSync,
	}, nil
}
