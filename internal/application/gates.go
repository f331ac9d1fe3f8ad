package application

import (
	"context"
	"log/slog"

	"venue-panel/internal/domain"
)

// GateController toggles the audio gates of a device. Every call is best
// effort: endpoint support varies by model and firmware, so a failed gate is
// logged at info level and reported as false, never returned as an error.
type GateController struct {
	transport DeviceTransport
	logger    *slog.Logger
}

func NewGateController(transport DeviceTransport, logger *slog.Logger) *GateController {
	return &GateController{transport: transport, logger: logger}
}

func (g *GateController) Set(ctx context.Context, address string, gate domain.GateKind, state domain.GateState) bool {
	ok, err := g.transport.SendGateCommand(ctx, address, gate, state)
	if err != nil {
		g.logger.Info("gate command failed", "address", address, "gate", gate, "state", state.String(), "error", err)
		return false
	}
	if !ok {
		g.logger.Info("gate command not acknowledged", "address", address, "gate", gate, "state", state.String())
	}
	return ok
}

func (g *GateController) DisableDSPLine(ctx context.Context, address string) bool {
	return g.Set(ctx, address, domain.GateDSPLine, domain.GateOff)
}

func (g *GateController) EnableDSPLine(ctx context.Context, address string) bool {
	return g.Set(ctx, address, domain.GateDSPLine, domain.GateOn)
}

func (g *GateController) DisableDSPHDMI(ctx context.Context, address string) bool {
	return g.Set(ctx, address, domain.GateDSPHDMI, domain.GateOff)
}

func (g *GateController) EnableDSPHDMI(ctx context.Context, address string) bool {
	return g.Set(ctx, address, domain.GateDSPHDMI, domain.GateOn)
}

// MuteHDMI silences HDMI audio.
func (g *GateController) MuteHDMI(ctx context.Context, address string) bool {
	return g.Set(ctx, address, domain.GateHDMIMute, domain.GateOff)
}

func (g *GateController) UnmuteHDMI(ctx context.Context, address string) bool {
	return g.Set(ctx, address, domain.GateHDMIMute, domain.GateOn)
}

// MuteStereo silences the analog stereo output.
func (g *GateController) MuteStereo(ctx context.Context, address string) bool {
	return g.Set(ctx, address, domain.GateStereoMute, domain.GateOff)
}

func (g *GateController) UnmuteStereo(ctx context.Context, address string) bool {
	return g.Set(ctx, address, domain.GateStereoMute, domain.GateOn)
}

// Apply attempts every gate in order regardless of earlier results.
func (g *GateController) Apply(ctx context.Context, address string, gates []domain.GateKind, state domain.GateState) []domain.GateOutcome {
	outcomes := make([]domain.GateOutcome, 0, len(gates))
	for _, gate := range gates {
		outcomes = append(outcomes, domain.GateOutcome{
			Gate:  gate,
			State: state,
			OK:    g.Set(ctx, address, gate, state),
		})
	}
	return outcomes
}

// GatesOff lists the gates closed before a switch, in order.
func GatesOff(caps domain.CapabilityProfile) []domain.GateKind {
	var gates []domain.GateKind
	if caps.SupportsDSP {
		gates = append(gates, domain.GateDSPLine, domain.GateDSPHDMI)
	}
	return append(gates, domain.GateHDMIMute, domain.GateStereoMute)
}

// GatesOn is GatesOff reversed.
func GatesOn(caps domain.CapabilityProfile) []domain.GateKind {
	off := GatesOff(caps)
	on := make([]domain.GateKind, len(off))
	for i, gate := range off {
		on[len(off)-1-i] = gate
	}
	return on
}
