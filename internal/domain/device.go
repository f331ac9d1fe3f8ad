package domain

import "errors"

var (
	ErrDeviceUnreachable  = errors.New("device unreachable")
	ErrUnexpectedResponse = errors.New("unexpected device response")
	ErrMalformedSnapshot  = errors.New("malformed volume snapshot")
	ErrZoneNotFound       = errors.New("zone not found")
)

// CapabilityProfile describes what a device model can do. It is derived from a
// fresh model query for every operation and never cached.
type CapabilityProfile struct {
	Model          string `json:"model"`
	SupportsVolume bool   `json:"supports_volume"`
	SupportsDSP    bool   `json:"supports_dsp"`
}

type GateKind string

const (
	GateDSPLine    GateKind = "dsp-line"
	GateDSPHDMI    GateKind = "dsp-hdmi"
	GateHDMIMute   GateKind = "hdmi-mute"
	GateStereoMute GateKind = "stereo-mute"
)

// GateState is the desired audio state of a gate. GateOff silences the output.
type GateState bool

const (
	GateOff GateState = false
	GateOn  GateState = true
)

func (s GateState) String() string {
	if s {
		return "on"
	}
	return "off"
}

// DeviceStatus is a point-in-time reading used for display only.
type DeviceStatus struct {
	Zone      string `json:"zone"`
	Address   string `json:"address"`
	Model     string `json:"model,omitempty"`
	Channel   *int   `json:"channel,omitempty"`
	Volume    *int   `json:"volume,omitempty"`
	Online    bool   `json:"online"`
	LastError string `json:"last_error,omitempty"`
}
