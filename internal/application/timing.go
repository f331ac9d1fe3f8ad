package application

import "time"

// Fixed pacing of the device network. The hardware gives no acknowledgement
// for audio state changes, so these delays stand in for one.
const (
	RampDownSettle   = 1 * time.Second
	PreSwitchSettle  = 2 * time.Second
	PostSwitchSettle = 3 * time.Second
	GateOnSettle     = 1 * time.Second
	VolumeStepDelay  = 200 * time.Millisecond
	ZonePacing       = 200 * time.Millisecond
	RestorePacing    = 100 * time.Millisecond
	TargetSettle     = 1 * time.Second
	TargetPacing     = 100 * time.Millisecond
)

// VolumeRampSteps is the approximate number of steps of a fade-in.
const VolumeRampSteps = 5

type Timing struct {
	RampDownSettle   time.Duration
	PreSwitchSettle  time.Duration
	PostSwitchSettle time.Duration
	GateOnSettle     time.Duration
	VolumeStep       time.Duration
	ZonePacing       time.Duration
	RestorePacing    time.Duration
	TargetSettle     time.Duration
	TargetPacing     time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		RampDownSettle:   RampDownSettle,
		PreSwitchSettle:  PreSwitchSettle,
		PostSwitchSettle: PostSwitchSettle,
		GateOnSettle:     GateOnSettle,
		VolumeStep:       VolumeStepDelay,
		ZonePacing:       ZonePacing,
		RestorePacing:    RestorePacing,
		TargetSettle:     TargetSettle,
		TargetPacing:     TargetPacing,
	}
}

// Sleeper blocks for the given duration. Delays are unconditional: a started
// sequence is never cut short.
type Sleeper func(d time.Duration)

func realSleep(d time.Duration) {
	time.Sleep(d)
}

func sleeperOrDefault(s Sleeper) Sleeper {
	if s == nil {
		return realSleep
	}
	return s
}
