package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"venue-panel/internal/domain"
)

// VolumeSnapshots captures per-zone volumes before a venue-wide source switch
// and replays them when switching back. Only one snapshot is live; every
// capture overwrites it.
type VolumeSnapshots struct {
	transport DeviceTransport
	store     SnapshotStore
	sleep     Sleeper
	timing    Timing
	now       func() time.Time
	logger    *slog.Logger
}

func NewVolumeSnapshots(transport DeviceTransport, store SnapshotStore, sleep Sleeper, timing Timing, logger *slog.Logger) *VolumeSnapshots {
	return &VolumeSnapshots{
		transport: transport,
		store:     store,
		sleep:     sleeperOrDefault(sleep),
		timing:    timing,
		now:       time.Now,
		logger:    logger,
	}
}

// Capture reads every zone's volume and stores the readings. Unreadable zones
// are left out. When no zone could be read the stored snapshot is untouched
// and Capture returns nil.
func (v *VolumeSnapshots) Capture(ctx context.Context, zones []domain.Zone) (*domain.Snapshot, error) {
	volumes := make(map[string]int, len(zones))
	for _, z := range zones {
		level, err := v.transport.GetVolume(ctx, z.Address)
		if err != nil {
			v.logger.Warn("reading volume for snapshot", "zone", z.Name, "address", z.Address, "error", err)
			continue
		}
		if level == nil {
			continue
		}
		volumes[z.Name] = *level
	}

	if len(volumes) == 0 {
		v.logger.Info("no volumes readable, keeping previous snapshot", "zones", len(zones))
		return nil, nil
	}

	snapshot := domain.Snapshot{
		Timestamp: v.now(),
		Volumes:   volumes,
	}
	if err := v.store.Write(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("writing volume snapshot: %w", err)
	}

	v.logger.Info("volume snapshot captured", "zones", len(volumes))
	return &snapshot, nil
}

// Restore sets each zone present in the stored snapshot back to its captured
// volume and returns how many zones took the new level. A missing or malformed
// snapshot means there is nothing to restore. The snapshot stays in place.
func (v *VolumeSnapshots) Restore(ctx context.Context, zones []domain.Zone) int {
	snapshot, err := v.store.Read(ctx)
	switch {
	case errors.Is(err, domain.ErrMalformedSnapshot):
		v.logger.Info("ignoring malformed volume snapshot", "error", err)
		return 0
	case err != nil:
		v.logger.Warn("reading volume snapshot", "error", err)
		return 0
	case snapshot == nil:
		v.logger.Info("no volume snapshot to restore")
		return 0
	}

	attempted, restored := 0, 0
	for _, z := range zones {
		level, ok := snapshot.Volumes[z.Name]
		if !ok {
			continue
		}
		if attempted > 0 {
			v.sleep(v.timing.RestorePacing)
		}
		attempted++

		applied, err := v.transport.SetVolume(ctx, z.Address, level)
		if err != nil || !applied {
			v.logger.Warn("restoring zone volume", "zone", z.Name, "address", z.Address, "level", level, "error", err)
			continue
		}
		restored++
	}

	v.logger.Info("volume snapshot restored", "zones", restored, "taken_at", snapshot.Timestamp)
	return restored
}

// Current returns the stored snapshot, or nil if none exists.
func (v *VolumeSnapshots) Current(ctx context.Context) (*domain.Snapshot, error) {
	return v.store.Read(ctx)
}
