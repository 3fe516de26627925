package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"perfhub/internal/domain"
	"perfhub/pkg/logger"
)

// ConnectionRepository implements domain.ConnectionRepository over the
// JSON array stored under domain.ConnectionsKey
type ConnectionRepository struct {
	store  domain.KeyValueStore
	mutex  sync.Mutex
	logger *logger.Logger
}

func NewConnectionRepository(store domain.KeyValueStore, logger *logger.Logger) *ConnectionRepository {
	return &ConnectionRepository{
		store:  store,
		logger: logger,
	}
}

func (r *ConnectionRepository) List(ctx context.Context) ([]domain.ConnectionStatus, error) {
	raw, ok, err := r.store.Get(ctx, domain.ConnectionsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load connections: %w", err)
	}
	if !ok || len(raw) == 0 {
		return []domain.ConnectionStatus{}, nil
	}

	var conns []domain.ConnectionStatus
	if err := json.Unmarshal(raw, &conns); err != nil {
		return nil, fmt.Errorf("failed to decode connections: %w", err)
	}
	if conns == nil {
		conns = []domain.ConnectionStatus{}
	}
	return conns, nil
}

func (r *ConnectionRepository) Get(ctx context.Context, provider domain.ProviderID) (domain.ConnectionStatus, bool, error) {
	conns, err := r.List(ctx)
	if err != nil {
		return domain.ConnectionStatus{}, false, err
	}
	for _, c := range conns {
		if c.Provider == provider {
			return c, true, nil
		}
	}
	return domain.ConnectionStatus{}, false, nil
}

// Upsert replaces the entry for conn.Provider or appends a new one
func (r *ConnectionRepository) Upsert(ctx context.Context, conn domain.ConnectionStatus) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	conns, err := r.List(ctx)
	if err != nil {
		return err
	}

	replaced := false
	for i := range conns {
		if conns[i].Provider == conn.Provider {
			conns[i] = conn
			replaced = true
			break
		}
	}
	if !replaced {
		conns = append(conns, conn)
	}

	if err := r.save(ctx, conns); err != nil {
		return err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"provider":  conn.Provider,
		"connected": conn.IsConnected,
		"replaced":  replaced,
	}).Info("Stored connection status")
	return nil
}

func (r *ConnectionRepository) Remove(ctx context.Context, provider domain.ProviderID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	conns, err := r.List(ctx)
	if err != nil {
		return err
	}

	kept := conns[:0]
	for _, c := range conns {
		if c.Provider != provider {
			kept = append(kept, c)
		}
	}

	if err := r.save(ctx, kept); err != nil {
		return err
	}

	r.logger.WithContext(ctx).WithField("provider", provider).Info("Removed connection status")
	return nil
}

func (r *ConnectionRepository) save(ctx context.Context, conns []domain.ConnectionStatus) error {
	raw, err := json.Marshal(conns)
	if err != nil {
		return fmt.Errorf("failed to encode connections: %w", err)
	}
	if err := r.store.Set(ctx, domain.ConnectionsKey, raw); err != nil {
		return fmt.Errorf("failed to save connections: %w", err)
	}
	return nil
}
