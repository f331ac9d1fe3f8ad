package domain

import "time"

type SwitchMode string

const (
	// SwitchModePlain sends the channel command and nothing else.
	SwitchModePlain SwitchMode = "plain"
	// SwitchModeAntiPop runs the full mute, switch, unmute sequence.
	SwitchModeAntiPop SwitchMode = "antipop"
)

func (m SwitchMode) Valid() bool {
	return m == SwitchModePlain || m == SwitchModeAntiPop
}

type Zone struct {
	Name    string
	Address string
	Mode    SwitchMode
}

// Snapshot is the single live capture of per-zone volumes taken before a
// venue-wide switch to the capture source.
type Snapshot struct {
	Timestamp time.Time      `json:"timestamp"`
	Volumes   map[string]int `json:"volumes"`
}

type TransitionRecord struct {
	Zone    string     `json:"zone"`
	Address string     `json:"address"`
	Mode    SwitchMode `json:"mode"`
	Success bool       `json:"success"`
	Message string     `json:"message"`
}

type BulkReport struct {
	OperationID  string             `json:"operation_id"`
	Channel      int                `json:"channel"`
	Results      []TransitionRecord `json:"results"`
	SuccessCount int                `json:"success_count"`
	FailureCount int                `json:"failure_count"`
	Message      string             `json:"message"`
}

func (r *BulkReport) AllSucceeded() bool {
	return r.FailureCount == 0
}

type GateOutcome struct {
	Gate  GateKind  `json:"gate"`
	State GateState `json:"state"`
	OK    bool      `json:"ok"`
}

// TransitionReport describes one anti-popping channel change. Switched is the
// only field that decides success; the rest is for observability.
type TransitionReport struct {
	Address        string            `json:"address"`
	Channel        int               `json:"channel"`
	Capabilities   CapabilityProfile `json:"capabilities"`
	PreviousVolume *int              `json:"previous_volume,omitempty"`
	GatesOff       []GateOutcome     `json:"gates_off,omitempty"`
	GatesOn        []GateOutcome     `json:"gates_on,omitempty"`
	Switched       bool              `json:"switched"`
	Recovered      bool              `json:"recovered"`
	Err            error             `json:"-"`
}
