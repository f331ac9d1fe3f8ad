package justaddpower

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"venue-panel/internal/domain"
)

// Registry keeps the last known status of every zone's device for display.
// Nothing that sequences a switch reads from it: capabilities are always
// probed fresh.
type Registry struct {
	client *Client
	zones  []domain.Zone
	bus    sync.Locker
	logger *slog.Logger

	mu       sync.RWMutex
	statuses []domain.DeviceStatus
	index    map[string]int
	syncedAt time.Time
}

// NewRegistry polls zones through client. bus, when set, is held for the
// duration of a sync so polling never interleaves with a running switch.
func NewRegistry(client *Client, zones []domain.Zone, bus sync.Locker, logger *slog.Logger) *Registry {
	return &Registry{
		client: client,
		zones:  zones,
		bus:    bus,
		logger: logger,
		index:  make(map[string]int),
	}
}

func (r *Registry) Sync(ctx context.Context) error {
	if r.bus != nil {
		r.bus.Lock()
		defer r.bus.Unlock()
	}

	statuses := make([]domain.DeviceStatus, 0, len(r.zones))
	online := 0
	for _, z := range r.zones {
		if err := ctx.Err(); err != nil {
			return err
		}
		status := r.poll(ctx, z)
		if status.Online {
			online++
		}
		statuses = append(statuses, status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.statuses = statuses
	r.index = make(map[string]int, len(statuses))
	for i := range r.statuses {
		r.index[r.statuses[i].Zone] = i
	}
	r.syncedAt = time.Now()

	r.logger.Debug("device status sync complete",
		"zones", len(statuses),
		"online", online,
	)

	return nil
}

func (r *Registry) poll(ctx context.Context, z domain.Zone) domain.DeviceStatus {
	status := domain.DeviceStatus{Zone: z.Name, Address: z.Address}

	model, err := r.client.GetModel(ctx, z.Address)
	if err != nil {
		status.LastError = err.Error()
		return status
	}
	status.Model = model
	status.Online = true

	if channel, err := r.client.GetChannel(ctx, z.Address); err == nil {
		status.Channel = &channel
	} else {
		status.LastError = err.Error()
	}

	if volume, err := r.client.GetVolume(ctx, z.Address); err == nil {
		status.Volume = volume
	} else {
		status.LastError = err.Error()
	}

	return status
}

func (r *Registry) Statuses() []domain.DeviceStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]domain.DeviceStatus, len(r.statuses))
	copy(result, r.statuses)
	return result
}

func (r *Registry) FindByZone(name string) (domain.DeviceStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return domain.DeviceStatus{}, false
	}
	return r.statuses[i], true
}

func (r *Registry) SyncedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.syncedAt
}

func (r *Registry) StartPeriodicSync(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.Sync(ctx); err != nil {
					r.logger.Error("periodic status sync failed", "error", err)
				}
			}
		}
	}()
}
