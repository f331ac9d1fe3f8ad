package application

import (
	"context"
	"log/slog"
	"strings"

	"venue-panel/internal/domain"
)

// Prober derives a device's capabilities from its reported model string.
type Prober struct {
	transport    DeviceTransport
	volumeModels map[string]struct{}
	dspModels    map[string]struct{}
	logger       *slog.Logger
}

func NewProber(transport DeviceTransport, volumeModels, dspModels []string, logger *slog.Logger) *Prober {
	return &Prober{
		transport:    transport,
		volumeModels: modelSet(volumeModels),
		dspModels:    modelSet(dspModels),
		logger:       logger,
	}
}

// Probe never fails. A device that cannot be queried is treated as the least
// capable one.
func (p *Prober) Probe(ctx context.Context, address string) domain.CapabilityProfile {
	model, err := p.transport.GetModel(ctx, address)
	if err != nil {
		p.logger.Warn("probing device model", "address", address, "error", err)
		return domain.CapabilityProfile{}
	}

	key := normalizeModel(model)
	_, volume := p.volumeModels[key]
	_, dsp := p.dspModels[key]

	return domain.CapabilityProfile{
		Model:          model,
		SupportsVolume: volume,
		SupportsDSP:    dsp,
	}
}

func modelSet(models []string) map[string]struct{} {
	set := make(map[string]struct{}, len(models))
	for _, m := range models {
		set[normalizeModel(m)] = struct{}{}
	}
	return set
}

func normalizeModel(model string) string {
	return strings.ToLower(strings.TrimSpace(model))
}
