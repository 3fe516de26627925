package usecase

import (
	"context"
	"sync"
	"time"

	"perfhub/internal/domain"
	"perfhub/pkg/logger"
	"perfhub/pkg/metrics"
)

// DashboardView holds the result currently shown on one dashboard. Only the
// most recently issued refresh may publish; an older one still in flight is
// cancelled and its result dropped.
type DashboardView struct {
	querier Querier
	logger  *logger.Logger
	metrics *metrics.Metrics

	mutex   sync.Mutex
	seq     uint64
	cancel  context.CancelFunc
	current *domain.AggregationResult
}

func NewDashboardView(querier Querier, logger *logger.Logger, metrics *metrics.Metrics) *DashboardView {
	return &DashboardView{
		querier: querier,
		logger:  logger,
		metrics: metrics,
	}
}

// Refresh runs a query and publishes it unless a newer refresh was issued
// meanwhile, in which case domain.ErrSuperseded is returned
func (v *DashboardView) Refresh(ctx context.Context, scope string, rng domain.DateRange) (*domain.AggregationResult, error) {
	v.mutex.Lock()
	v.seq++
	seq := v.seq
	if v.cancel != nil {
		v.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.mutex.Unlock()

	defer cancel()

	result, err := v.querier.Query(ctx, scope, rng)

	v.mutex.Lock()
	defer v.mutex.Unlock()

	if seq != v.seq {
		v.metrics.RecordSuperseded()
		v.logger.WithContext(ctx).WithFields(map[string]any{
			"seq":    seq,
			"latest": v.seq,
		}).Info("Discarded superseded dashboard query")
		return nil, domain.ErrSuperseded
	}
	v.cancel = nil
	if err != nil {
		return nil, err
	}

	result.Seq = seq
	v.current = result
	return result, nil
}

// Current returns the last published result, or nil
func (v *DashboardView) Current() *domain.AggregationResult {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.current
}

// busy reports whether a refresh is in flight
func (v *DashboardView) busy() bool {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.cancel != nil
}

// DashboardViews keeps one view per dashboard session. Views idle longer
// than idleTTL are dropped, and at most maxViews are held: the least
// recently used idle view makes room for a new session.
type DashboardViews struct {
	querier  Querier
	logger   *logger.Logger
	metrics  *metrics.Metrics
	idleTTL  time.Duration
	maxViews int
	now      func() time.Time

	mutex sync.Mutex
	views map[string]*sessionView
}

type sessionView struct {
	view     *DashboardView
	lastUsed time.Time
}

func NewDashboardViews(querier Querier, logger *logger.Logger, metrics *metrics.Metrics, idleTTL time.Duration, maxViews int) *DashboardViews {
	return &DashboardViews{
		querier:  querier,
		logger:   logger,
		metrics:  metrics,
		idleTTL:  idleTTL,
		maxViews: maxViews,
		now:      time.Now,
		views:    make(map[string]*sessionView),
	}
}

// For returns the view of session, creating it on first use
func (d *DashboardViews) For(session string) *DashboardView {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	now := d.now()
	d.sweep(now)

	sv, ok := d.views[session]
	if !ok {
		if d.maxViews > 0 && len(d.views) >= d.maxViews {
			d.evictOldest()
		}
		sv = &sessionView{view: NewDashboardView(d.querier, d.logger, d.metrics)}
		d.views[session] = sv
	}
	sv.lastUsed = now
	return sv.view
}

// Len returns the number of sessions currently held
func (d *DashboardViews) Len() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.views)
}

func (d *DashboardViews) sweep(now time.Time) {
	if d.idleTTL <= 0 {
		return
	}
	for session, sv := range d.views {
		if now.Sub(sv.lastUsed) > d.idleTTL && !sv.view.busy() {
			delete(d.views, session)
		}
	}
}

// evictOldest drops the least recently used idle view. Views with a
// refresh in flight are never evicted.
func (d *DashboardViews) evictOldest() {
	var (
		oldest string
		found  bool
		at     time.Time
	)
	for session, sv := range d.views {
		if sv.view.busy() {
			continue
		}
		if !found || sv.lastUsed.Before(at) {
			oldest, at, found = session, sv.lastUsed, true
		}
	}
	if found {
		delete(d.views, oldest)
		d.logger.WithField("session", oldest).Debug("Evicted idle dashboard view")
	}
}
