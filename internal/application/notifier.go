package application

import (
	"context"
	"errors"

	"venue-panel/internal/domain"
)

type Notifier interface {
	Notify(ctx context.Context, message string) error
}

type NoopNotifier struct{}

func (n *NoopNotifier) Notify(_ context.Context, _ string) error {
	return nil
}

// ReportPublisher ships finished bulk reports to an event bus.
type ReportPublisher interface {
	PublishReport(ctx context.Context, report *domain.BulkReport) error
}

type NoopPublisher struct{}

func (n *NoopPublisher) PublishReport(_ context.Context, _ *domain.BulkReport) error {
	return nil
}

// MultiNotifier fans a message out to every notifier and joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
