package usecase

import (
	"context"
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"perfhub/internal/domain"
	"perfhub/pkg/logger"
	"perfhub/pkg/metrics"
)

func testDeps() (*logger.Logger, *test.Hook, *metrics.Metrics) {
	log := logger.NewWithOutput("debug", io.Discard)
	hook := test.NewLocal(log.Logger)
	return log, hook, metrics.New(prometheus.NewRegistry())
}

// warnings returns the messages logged at warn level
func warnings(hook *test.Hook) []string {
	var out []string
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			out = append(out, e.Message)
		}
	}
	return out
}

type memoryPerfRepo struct {
	mutex   sync.Mutex
	records []domain.PerformanceRecord
	loadErr error
	saves   int
}

func (r *memoryPerfRepo) Load(ctx context.Context) ([]domain.PerformanceRecord, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return append([]domain.PerformanceRecord(nil), r.records...), nil
}

func (r *memoryPerfRepo) Save(ctx context.Context, records []domain.PerformanceRecord) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.records = append([]domain.PerformanceRecord(nil), records...)
	r.saves++
	return nil
}

func (r *memoryPerfRepo) GetByDateRange(ctx context.Context, rng domain.DateRange) ([]domain.PerformanceRecord, error) {
	all, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.PerformanceRecord
	for _, rec := range all {
		if rng.Contains(rec.Date) {
			out = append(out, rec)
		}
	}
	return out, nil
}

type memoryConnRepo struct {
	mutex sync.Mutex
	conns []domain.ConnectionStatus
}

func (r *memoryConnRepo) List(ctx context.Context) ([]domain.ConnectionStatus, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]domain.ConnectionStatus(nil), r.conns...), nil
}

func (r *memoryConnRepo) Get(ctx context.Context, provider domain.ProviderID) (domain.ConnectionStatus, bool, error) {
	conns, _ := r.List(ctx)
	for _, c := range conns {
		if c.Provider == provider {
			return c, true, nil
		}
	}
	return domain.ConnectionStatus{}, false, nil
}

func (r *memoryConnRepo) Upsert(ctx context.Context, conn domain.ConnectionStatus) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for i := range r.conns {
		if r.conns[i].Provider == conn.Provider {
			r.conns[i] = conn
			return nil
		}
	}
	r.conns = append(r.conns, conn)
	return nil
}

func (r *memoryConnRepo) Remove(ctx context.Context, provider domain.ProviderID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	kept := r.conns[:0]
	for _, c := range r.conns {
		if c.Provider != provider {
			kept = append(kept, c)
		}
	}
	r.conns = kept
	return nil
}

type fetchFunc func(ctx context.Context, conn domain.ConnectionStatus, rng domain.DateRange) ([]domain.PerformanceRecord, error)

// scriptedLive answers per provider and records the call order
type scriptedLive struct {
	mutex   sync.Mutex
	answers map[domain.ProviderID]fetchFunc
	calls   []domain.ProviderID
}

func (l *scriptedLive) Fetch(ctx context.Context, conn domain.ConnectionStatus, rng domain.DateRange) ([]domain.PerformanceRecord, error) {
	l.mutex.Lock()
	l.calls = append(l.calls, conn.Provider)
	answer := l.answers[conn.Provider]
	l.mutex.Unlock()
	if answer == nil {
		return nil, nil
	}
	return answer(ctx, conn, rng)
}

func returns(records ...domain.PerformanceRecord) fetchFunc {
	return func(context.Context, domain.ConnectionStatus, domain.DateRange) ([]domain.PerformanceRecord, error) {
		return records, nil
	}
}

func fails(err error) fetchFunc {
	return func(context.Context, domain.ConnectionStatus, domain.DateRange) ([]domain.PerformanceRecord, error) {
		return nil, err
	}
}

type staticFallback struct {
	records []domain.PerformanceRecord
	actions []domain.ActionLog
}

func (f staticFallback) Records() []domain.PerformanceRecord {
	return append([]domain.PerformanceRecord(nil), f.records...)
}

func (f staticFallback) Actions() []domain.ActionLog {
	return append([]domain.ActionLog(nil), f.actions...)
}

func record(provider, account, date, dimension string, source domain.DataSource, ts int64, conversions float64) domain.PerformanceRecord {
	return domain.PerformanceRecord{
		AccountID:     account,
		Provider:      provider,
		Date:          date,
		DimensionName: dimension,
		ReportType:    domain.ReportCampaign,
		State:         domain.StateCurrent,
		Source:        source,
		Timestamp:     ts,
		Conversions:   conversions,
		Cost:          conversions * 10,
		Clicks:        conversions * 20,
		Impressions:   conversions * 400,
	}.WithID()
}

var demoFallback = staticFallback{
	records: []domain.PerformanceRecord{
		record("Google Ads", "acc_01", "2023-10-05", "Pesquisa", domain.SourceMock, 1, 52),
		record("Google Ads", "acc_01", "2023-10-01", "Pesquisa", domain.SourceMock, 1, 45),
		record("Meta Ads", "acc_03", "2023-10-20", "Retargeting", domain.SourceMock, 1, 62),
	},
	actions: []domain.ActionLog{
		{AccountID: "acc_01", Provider: "Google Ads", Date: "2023-10-05", Action: "New creatives", Category: domain.ActionAds},
		{AccountID: "acc_03", Provider: "Meta Ads", Date: "2023-10-25", Action: "Promo launch", Category: domain.ActionMeta},
	},
}

func mustRange(from, to string) domain.DateRange {
	rng, err := domain.ParseDateRange(from, to)
	if err != nil {
		panic(err)
	}
	return rng
}
