package application

import (
	"context"
	"fmt"
	"log/slog"

	"venue-panel/internal/domain"
)

// Sequencer changes a device's input source without an audible pop: it takes
// the volume down, closes every audio gate, switches, then reopens the gates in
// reverse order and fades the volume back in.
type Sequencer struct {
	transport DeviceTransport
	prober    *Prober
	gates     *GateController
	volume    *VolumeRamp
	sleep     Sleeper
	timing    Timing
	logger    *slog.Logger
}

func NewSequencer(
	transport DeviceTransport,
	prober *Prober,
	gates *GateController,
	volume *VolumeRamp,
	sleep Sleeper,
	timing Timing,
	logger *slog.Logger,
) *Sequencer {
	return &Sequencer{
		transport: transport,
		prober:    prober,
		gates:     gates,
		volume:    volume,
		sleep:     sleeperOrDefault(sleep),
		timing:    timing,
		logger:    logger,
	}
}

// transitionState is what the recovery path knows about a sequence that
// aborted part way through.
type transitionState struct {
	caps     *domain.CapabilityProfile
	previous *int
}

// SwitchPlain sends the channel command with no audio handling.
func (s *Sequencer) SwitchPlain(ctx context.Context, address string, channel int) bool {
	ok, err := s.transport.SetChannel(ctx, address, channel)
	if err != nil {
		s.logger.Warn("setting channel", "address", address, "channel", channel, "error", err)
		return false
	}
	if !ok {
		s.logger.Warn("channel change not acknowledged", "address", address, "channel", channel)
	}
	return ok
}

// Transition runs the anti-popping switch. Report.Switched mirrors the channel
// command alone; gate and volume failures never change it. Once started the
// sequence is not cancellable, so ctx cancellation is ignored.
func (s *Sequencer) Transition(ctx context.Context, address string, channel int) (report *domain.TransitionReport) {
	ctx = context.WithoutCancel(ctx)
	report = &domain.TransitionReport{Address: address, Channel: channel}
	state := &transitionState{}

	defer func() {
		if r := recover(); r != nil {
			report.Err = fmt.Errorf("transition to channel %d aborted: %v", channel, r)
			report.Switched = false
			s.logger.Error("channel transition failed", "address", address, "channel", channel, "error", report.Err)
			s.recoverAudio(ctx, address, state)
			report.Recovered = true
		}
	}()

	s.run(ctx, address, channel, state, report)
	return report
}

func (s *Sequencer) run(ctx context.Context, address string, channel int, state *transitionState, report *domain.TransitionReport) {
	caps := s.prober.Probe(ctx, address)
	state.caps = &caps
	report.Capabilities = caps

	state.previous = s.volume.RampDown(ctx, address, caps)
	report.PreviousVolume = state.previous

	report.GatesOff = s.gates.Apply(ctx, address, GatesOff(caps), domain.GateOff)
	s.sleep(s.timing.PreSwitchSettle)

	report.Switched = s.SwitchPlain(ctx, address, channel)
	s.sleep(s.timing.PostSwitchSettle)

	report.GatesOn = s.gates.Apply(ctx, address, GatesOn(caps), domain.GateOn)
	s.sleep(s.timing.GateOnSettle)

	if state.previous != nil {
		s.volume.RampUp(ctx, address, *state.previous)
	}

	s.logger.Info("channel transition complete",
		"address", address,
		"channel", channel,
		"switched", report.Switched,
		"dsp", caps.SupportsDSP,
	)
}

// recoverAudio undoes whatever muting may have happened. Every step is
// attempted even if an earlier one fails or panics.
func (s *Sequencer) recoverAudio(ctx context.Context, address string, state *transitionState) {
	s.attempt(address, "unmute hdmi", func() { s.gates.UnmuteHDMI(ctx, address) })
	s.attempt(address, "unmute stereo", func() { s.gates.UnmuteStereo(ctx, address) })

	if state.caps != nil && state.caps.SupportsDSP {
		s.attempt(address, "enable dsp hdmi", func() { s.gates.EnableDSPHDMI(ctx, address) })
		s.attempt(address, "enable dsp line", func() { s.gates.EnableDSPLine(ctx, address) })
	}

	if state.previous != nil {
		level := *state.previous
		s.attempt(address, "restore volume", func() {
			if !s.volume.Restore(ctx, address, level) {
				s.logger.Warn("volume not restored after failed transition", "address", address, "level", level)
			}
		})
	}
}

func (s *Sequencer) attempt(address, step string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("recovery step failed", "address", address, "step", step, "error", r)
		}
	}()
	fn()
}
