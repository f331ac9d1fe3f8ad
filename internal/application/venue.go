package application

import (
	"context"
	"fmt"
	"log/slog"

	"venue-panel/internal/domain"
)

type VenueSource string

const (
	// VenueSourceCapture is the source whose arrival snapshots the current
	// volumes, e.g. the wireless microphones.
	VenueSourceCapture VenueSource = "capture"
	// VenueSourceRestore is the background music source whose arrival replays
	// the snapshot.
	VenueSourceRestore VenueSource = "restore"
)

type VenueAudioPlan struct {
	CaptureChannel int
	RestoreChannel int
	Zones          []domain.Zone
	// TargetVolumes are the known-good levels applied after switching to the
	// capture source.
	TargetVolumes map[string]int
}

// VenueAudio toggles every audio zone between the capture and restore
// sources. Volumes are restored before switching back so the restore source
// never plays at the capture levels.
type VenueAudio struct {
	plan         VenueAudioPlan
	orchestrator *Orchestrator
	snapshots    *VolumeSnapshots
	transport    DeviceTransport
	sleep        Sleeper
	timing       Timing
	logger       *slog.Logger
}

func NewVenueAudio(
	plan VenueAudioPlan,
	orchestrator *Orchestrator,
	snapshots *VolumeSnapshots,
	transport DeviceTransport,
	sleep Sleeper,
	timing Timing,
	logger *slog.Logger,
) *VenueAudio {
	return &VenueAudio{
		plan:         plan,
		orchestrator: orchestrator,
		snapshots:    snapshots,
		transport:    transport,
		sleep:        sleeperOrDefault(sleep),
		timing:       timing,
		logger:       logger,
	}
}

func (v *VenueAudio) SwitchTo(ctx context.Context, source VenueSource) (*domain.BulkReport, error) {
	switch source {
	case VenueSourceCapture:
		return v.switchToCapture(ctx), nil
	case VenueSourceRestore:
		return v.switchToRestore(ctx), nil
	default:
		return nil, fmt.Errorf("unknown venue audio source: %q", source)
	}
}

func (v *VenueAudio) switchToCapture(ctx context.Context) *domain.BulkReport {
	if _, err := v.snapshots.Capture(ctx, v.plan.Zones); err != nil {
		v.logger.Error("capturing volumes before switch", "error", err)
	}

	report := v.orchestrator.SwitchAll(ctx, v.plan.Zones, v.plan.CaptureChannel, "")

	v.sleep(v.timing.TargetSettle)
	v.applyTargetVolumes(ctx)

	return report
}

func (v *VenueAudio) switchToRestore(ctx context.Context) *domain.BulkReport {
	v.snapshots.Restore(ctx, v.plan.Zones)
	return v.orchestrator.SwitchAll(ctx, v.plan.Zones, v.plan.RestoreChannel, "")
}

func (v *VenueAudio) applyTargetVolumes(ctx context.Context) {
	applied := 0
	for _, z := range v.plan.Zones {
		level, ok := v.plan.TargetVolumes[z.Name]
		if !ok {
			continue
		}
		if applied > 0 {
			v.sleep(v.timing.TargetPacing)
		}
		applied++

		set, err := v.transport.SetVolume(ctx, z.Address, level)
		if err != nil || !set {
			v.logger.Warn("setting target volume", "zone", z.Name, "address", z.Address, "level", level, "error", err)
		}
	}
}

// Zones returns the zones the toggle drives, in order.
func (v *VenueAudio) Zones() []domain.Zone {
	return v.plan.Zones
}
