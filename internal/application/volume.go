package application

import (
	"context"
	"log/slog"
	"math"

	"venue-panel/internal/domain"
)

type VolumeRamp struct {
	transport DeviceTransport
	sleep     Sleeper
	timing    Timing
	logger    *slog.Logger
}

func NewVolumeRamp(transport DeviceTransport, sleep Sleeper, timing Timing, logger *slog.Logger) *VolumeRamp {
	return &VolumeRamp{
		transport: transport,
		sleep:     sleeperOrDefault(sleep),
		timing:    timing,
		logger:    logger,
	}
}

// RampDown drops the volume to zero and returns the level it replaced. A nil
// result means there is nothing to restore: the device has no volume control,
// could not be read, or was already silent.
func (v *VolumeRamp) RampDown(ctx context.Context, address string, caps domain.CapabilityProfile) *int {
	if !caps.SupportsVolume {
		return nil
	}

	current, err := v.transport.GetVolume(ctx, address)
	if err != nil {
		v.logger.Warn("reading volume before ramp down", "address", address, "error", err)
		return nil
	}
	if current == nil || *current <= 0 {
		return nil
	}

	previous := *current
	if !v.set(ctx, address, 0) {
		// The device may still have applied it; keep the prior level so it is
		// put back either way.
		v.logger.Warn("volume ramp down not confirmed", "address", address, "previous", previous)
	}
	v.sleep(v.timing.RampDownSettle)

	return &previous
}

// RampUp fades the volume in from its current zero level to target in
// roughly VolumeRampSteps steps. The last step is clamped, never overshot.
func (v *VolumeRamp) RampUp(ctx context.Context, address string, target int) {
	if target <= 0 {
		return
	}

	step := RampStep(target)
	for level := step; ; level += step {
		if level > target {
			level = target
		}
		v.set(ctx, address, level)
		if level == target {
			return
		}
		v.sleep(v.timing.VolumeStep)
	}
}

// Restore puts the volume straight back without a ramp.
func (v *VolumeRamp) Restore(ctx context.Context, address string, level int) bool {
	return v.set(ctx, address, level)
}

// RampStep is max(1, round(target/VolumeRampSteps)), so targets up to 7 ramp
// in unit steps.
func RampStep(target int) int {
	step := int(math.Round(float64(target) / VolumeRampSteps))
	if step < 1 {
		return 1
	}
	return step
}

// RampLevels lists the levels RampUp will set for target.
func RampLevels(target int) []int {
	if target <= 0 {
		return nil
	}
	step := RampStep(target)
	var levels []int
	for level := step; level < target; level += step {
		levels = append(levels, level)
	}
	return append(levels, target)
}

func (v *VolumeRamp) set(ctx context.Context, address string, level int) bool {
	ok, err := v.transport.SetVolume(ctx, address, level)
	if err != nil {
		v.logger.Warn("setting volume", "address", address, "level", level, "error", err)
		return false
	}
	if !ok {
		v.logger.Warn("volume change not acknowledged", "address", address, "level", level)
	}
	return ok
}
