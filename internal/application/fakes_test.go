package application_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"venue-panel/internal/application"
	"venue-panel/internal/domain"
)

const (
	dspModel   = "3G+WP4 TX"
	plainModel = "3G+AVP RX"
	dumbModel  = "2G RX"
)

var (
	testVolumeModels = []string{dspModel, plainModel, "3G+AVP TX"}
	testDSPModels    = []string{dspModel, "3G+AVP TX"}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type call struct {
	Op      string
	Address string
	Gate    domain.GateKind
	State   domain.GateState
	Value   int
}

func (c call) String() string {
	switch c.Op {
	case "gate":
		return fmt.Sprintf("%s %s %s", c.Address, c.Gate, c.State)
	case "setChannel", "setVolume":
		return fmt.Sprintf("%s %s %d", c.Address, c.Op, c.Value)
	default:
		return fmt.Sprintf("%s %s", c.Address, c.Op)
	}
}

type fakeTransport struct {
	mu sync.Mutex

	models      map[string]string
	channels    map[string]int
	volumes     map[string]*int
	volumeErr   map[string]error
	rejectChan  map[string]bool
	failGates   map[domain.GateKind]bool
	panicOnChan map[string]bool

	calls []call
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		models:      make(map[string]string),
		channels:    make(map[string]int),
		volumes:     make(map[string]*int),
		volumeErr:   make(map[string]error),
		rejectChan:  make(map[string]bool),
		failGates:   make(map[domain.GateKind]bool),
		panicOnChan: make(map[string]bool),
	}
}

func (f *fakeTransport) addDevice(address, model string, channel int, volume *int) {
	f.models[address] = model
	f.channels[address] = channel
	f.volumes[address] = volume
}

func (f *fakeTransport) record(c call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeTransport) GetModel(_ context.Context, address string) (string, error) {
	f.record(call{Op: "getModel", Address: address})
	model, ok := f.models[address]
	if !ok {
		return "", fmt.Errorf("get model: %w", domain.ErrDeviceUnreachable)
	}
	return model, nil
}

func (f *fakeTransport) GetChannel(_ context.Context, address string) (int, error) {
	f.record(call{Op: "getChannel", Address: address})
	ch, ok := f.channels[address]
	if !ok {
		return 0, fmt.Errorf("get channel: %w", domain.ErrDeviceUnreachable)
	}
	return ch, nil
}

func (f *fakeTransport) SetChannel(ctx context.Context, address string, channel int) (bool, error) {
	f.record(call{Op: "setChannel", Address: address, Value: channel})
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if f.panicOnChan[address] {
		panic("malformed channel response")
	}
	if _, ok := f.models[address]; !ok {
		return false, fmt.Errorf("set channel: %w", domain.ErrDeviceUnreachable)
	}
	if f.rejectChan[address] {
		return false, nil
	}
	f.channels[address] = channel
	return true, nil
}

func (f *fakeTransport) GetVolume(_ context.Context, address string) (*int, error) {
	f.record(call{Op: "getVolume", Address: address})
	if err := f.volumeErr[address]; err != nil {
		return nil, err
	}
	if _, ok := f.models[address]; !ok {
		return nil, fmt.Errorf("get volume: %w", domain.ErrDeviceUnreachable)
	}
	v := f.volumes[address]
	if v == nil {
		return nil, nil
	}
	level := *v
	return &level, nil
}

func (f *fakeTransport) SetVolume(_ context.Context, address string, level int) (bool, error) {
	f.record(call{Op: "setVolume", Address: address, Value: level})
	if _, ok := f.models[address]; !ok {
		return false, fmt.Errorf("set volume: %w", domain.ErrDeviceUnreachable)
	}
	f.volumes[address] = intPtr(level)
	return true, nil
}

func (f *fakeTransport) SendGateCommand(ctx context.Context, address string, gate domain.GateKind, state domain.GateState) (bool, error) {
	f.record(call{Op: "gate", Address: address, Gate: gate, State: state})
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if f.failGates[gate] {
		return false, fmt.Errorf("gate %s: %w", gate, domain.ErrUnexpectedResponse)
	}
	return true, nil
}

// ops renders the recorded calls, skipping the listed operations.
func (f *fakeTransport) ops(skip ...string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}

	var out []string
	for _, c := range f.calls {
		if skipped[c.Op] {
			continue
		}
		out = append(out, c.String())
	}
	return out
}

func (f *fakeTransport) countOp(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (f *fakeTransport) volumeSets(address string) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var levels []int
	for _, c := range f.calls {
		if c.Op == "setVolume" && c.Address == address {
			levels = append(levels, c.Value)
		}
	}
	return levels
}

type sleepLog struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepLog) sleep(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
}

func (s *sleepLog) all() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.delays))
	copy(out, s.delays)
	return out
}

type memoryStore struct {
	snapshot *domain.Snapshot
	readErr  error
	writes   int
}

func (m *memoryStore) Read(_ context.Context) (*domain.Snapshot, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.snapshot, nil
}

func (m *memoryStore) Write(_ context.Context, snapshot domain.Snapshot) error {
	m.writes++
	m.snapshot = &snapshot
	return nil
}

func intPtr(v int) *int {
	return &v
}

func newSequencer(transport application.DeviceTransport, sleeps *sleepLog) *application.Sequencer {
	logger := discardLogger()
	timing := application.DefaultTiming()
	return application.NewSequencer(
		transport,
		application.NewProber(transport, testVolumeModels, testDSPModels, logger),
		application.NewGateController(transport, logger),
		application.NewVolumeRamp(transport, sleeps.sleep, timing, logger),
		sleeps.sleep,
		timing,
		logger,
	)
}
