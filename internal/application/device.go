package application

import (
	"context"

	"venue-panel/internal/domain"
)

// DeviceTransport talks to a single networked AV device. Every call is a fresh
// query; implementations return domain.ErrDeviceUnreachable or
// domain.ErrUnexpectedResponse (wrapped) on failure.
type DeviceTransport interface {
	GetModel(ctx context.Context, address string) (string, error)
	GetChannel(ctx context.Context, address string) (int, error)
	SetChannel(ctx context.Context, address string, channel int) (bool, error)
	// GetVolume returns nil when the device reports no volume.
	GetVolume(ctx context.Context, address string) (*int, error)
	SetVolume(ctx context.Context, address string, level int) (bool, error)
	SendGateCommand(ctx context.Context, address string, gate domain.GateKind, state domain.GateState) (bool, error)
}

// SnapshotStore persists the single live volume snapshot. Read returns nil
// and no error when nothing has been captured yet.
type SnapshotStore interface {
	Read(ctx context.Context) (*domain.Snapshot, error)
	Write(ctx context.Context, snapshot domain.Snapshot) error
}

// ChannelSwitcher is what the bulk orchestrator needs from the sequencer.
type ChannelSwitcher interface {
	SwitchPlain(ctx context.Context, address string, channel int) bool
	Transition(ctx context.Context, address string, channel int) *domain.TransitionReport
}
