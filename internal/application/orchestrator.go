package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"venue-panel/internal/domain"
)

// Orchestrator switches a set of zones one after another. Zones are never
// driven in parallel: the control network drops commands sent too close
// together.
type Orchestrator struct {
	switcher  ChannelSwitcher
	notifier  Notifier
	publisher ReportPublisher
	sleep     Sleeper
	timing    Timing
	logger    *slog.Logger
}

func NewOrchestrator(
	switcher ChannelSwitcher,
	notifier Notifier,
	publisher ReportPublisher,
	sleep Sleeper,
	timing Timing,
	logger *slog.Logger,
) *Orchestrator {
	if notifier == nil {
		notifier = &NoopNotifier{}
	}
	if publisher == nil {
		publisher = &NoopPublisher{}
	}
	return &Orchestrator{
		switcher:  switcher,
		notifier:  notifier,
		publisher: publisher,
		sleep:     sleeperOrDefault(sleep),
		timing:    timing,
		logger:    logger,
	}
}

// SwitchAll moves every zone, in the given order, to channel. An empty mode
// uses each zone's own mode. A failing zone never stops the loop.
func (o *Orchestrator) SwitchAll(ctx context.Context, zones []domain.Zone, channel int, mode domain.SwitchMode) *domain.BulkReport {
	report := &domain.BulkReport{
		OperationID: uuid.NewString(),
		Channel:     channel,
		Results:     make([]domain.TransitionRecord, 0, len(zones)),
	}
	logger := o.logger.With("operation_id", report.OperationID, "channel", channel)
	logger.Info("switching zones", "zones", len(zones))

	for i, z := range zones {
		if i > 0 {
			o.sleep(o.timing.ZonePacing)
		}

		zoneMode := z.Mode
		if mode != "" {
			zoneMode = mode
		}

		record := o.switchZone(ctx, z, channel, zoneMode)
		if record.Success {
			report.SuccessCount++
		} else {
			report.FailureCount++
			logger.Warn("zone switch failed", "zone", z.Name, "address", z.Address, "message", record.Message)
		}
		report.Results = append(report.Results, record)
	}

	report.Message = Summarize(report.SuccessCount, report.FailureCount)
	logger.Info("zones switched", "result", report.Message)

	o.announce(ctx, report)
	return report
}

func (o *Orchestrator) switchZone(ctx context.Context, z domain.Zone, channel int, mode domain.SwitchMode) domain.TransitionRecord {
	record := domain.TransitionRecord{Zone: z.Name, Address: z.Address, Mode: mode}

	if mode == domain.SwitchModeAntiPop {
		tr := o.switcher.Transition(ctx, z.Address, channel)
		record.Success = tr.Switched
		switch {
		case tr.Err != nil:
			record.Message = tr.Err.Error()
		case tr.Switched:
			record.Message = fmt.Sprintf("switched to channel %d", channel)
		default:
			record.Message = fmt.Sprintf("channel %d not accepted", channel)
		}
		return record
	}

	record.Success = o.switcher.SwitchPlain(ctx, z.Address, channel)
	if record.Success {
		record.Message = fmt.Sprintf("switched to channel %d", channel)
	} else {
		record.Message = fmt.Sprintf("channel %d not accepted", channel)
	}
	return record
}

func (o *Orchestrator) announce(ctx context.Context, report *domain.BulkReport) {
	if err := o.publisher.PublishReport(ctx, report); err != nil {
		o.logger.Error("publishing bulk report", "operation_id", report.OperationID, "error", err)
	}

	if report.AllSucceeded() {
		return
	}
	msg := fmt.Sprintf("Switch to channel %d: %s", report.Channel, report.Message)
	if err := o.notifier.Notify(ctx, msg); err != nil {
		o.logger.Error("notifying bulk failure", "operation_id", report.OperationID, "error", err)
	}
}

// Summarize renders the aggregate outcome shown to the operator.
func Summarize(succeeded, failed int) string {
	switch {
	case failed == 0:
		return "all succeeded"
	case succeeded == 0:
		return "all failed"
	default:
		return fmt.Sprintf("%d succeeded, %d failed", succeeded, failed)
	}
}
