// Package japtest provides an in-process Just Add Power device for tests.
package japtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// Device emulates one transmitter or receiver. All fields are guarded by the
// embedded mutex; use the accessor methods from tests.
type Device struct {
	Server *httptest.Server

	mu       sync.Mutex
	model    string
	channel  int
	volume   *int
	muted    map[string]bool
	rejected map[string]bool
	commands []string
}

// NewDevice starts a device. A nil volume means the device reports none.
func NewDevice(model string, channel int, volume *int) *Device {
	d := &Device{
		model:    model,
		channel:  channel,
		volume:   volume,
		muted:    make(map[string]bool),
		rejected: make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /cgi-bin/api/details/device/model", d.handleModel)
	mux.HandleFunc("GET /cgi-bin/api/details/channel", d.handleGetChannel)
	mux.HandleFunc("POST /cgi-bin/api/command/channel", d.handleSetChannel)
	mux.HandleFunc("GET /cgi-bin/api/details/audio/volume", d.handleGetVolume)
	mux.HandleFunc("POST /cgi-bin/api/command/audio/volume", d.handleSetVolume)
	mux.HandleFunc("POST /cgi-bin/api/command/cli", d.handleCLI)
	d.Server = httptest.NewServer(mux)

	return d
}

// Address is what the panel stores for this device.
func (d *Device) Address() string {
	return d.Server.URL
}

func (d *Device) Close() {
	d.Server.Close()
}

// Reject makes the device answer the given CLI command with an error text.
func (d *Device) Reject(command string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rejected[command] = true
}

func (d *Device) Channel() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.channel
}

func (d *Device) Volume() *int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.volume == nil {
		return nil
	}
	v := *d.volume
	return &v
}

// Muted reports whether an output ("hdmi", "stereo", "dsp line", "dsp hdmi")
// is currently silenced.
func (d *Device) Muted(output string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.muted[output]
}

// Commands lists every mutating request in arrival order, e.g.
// "channel 5", "volume 0", "audio hdmi mute".
func (d *Device) Commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.commands))
	copy(out, d.commands)
	return out
}

func (d *Device) handleModel(w http.ResponseWriter, _ *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	writeData(w, d.model)
}

func (d *Device) handleGetChannel(w http.ResponseWriter, _ *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	writeData(w, d.channel)
}

func (d *Device) handleSetChannel(w http.ResponseWriter, r *http.Request) {
	n, ok := readInt(r)
	if !ok {
		http.Error(w, "bad channel", http.StatusBadRequest)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = append(d.commands, "channel "+strconv.Itoa(n))
	d.channel = n
	writeData(w, "OK")
}

func (d *Device) handleGetVolume(w http.ResponseWriter, _ *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.volume == nil {
		writeData(w, nil)
		return
	}
	writeData(w, *d.volume)
}

func (d *Device) handleSetVolume(w http.ResponseWriter, r *http.Request) {
	n, ok := readInt(r)
	if !ok {
		http.Error(w, "bad volume", http.StatusBadRequest)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = append(d.commands, "volume "+strconv.Itoa(n))
	if d.volume == nil {
		writeData(w, "volume control not supported")
		return
	}
	d.volume = &n
	writeData(w, "OK")
}

func (d *Device) handleCLI(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	command := strings.TrimSpace(string(body))

	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = append(d.commands, command)

	if d.rejected[command] {
		writeData(w, "ERROR: command not found")
		return
	}

	fields := strings.Fields(command)
	if len(fields) < 3 || fields[0] != "audio" {
		writeData(w, "ERROR: unknown command")
		return
	}

	output := strings.Join(fields[1:len(fields)-1], " ")
	switch fields[len(fields)-1] {
	case "mute", "off":
		d.muted[output] = true
	case "unmute", "on":
		d.muted[output] = false
	default:
		writeData(w, "ERROR: unknown state")
		return
	}
	writeData(w, "OK")
}

func readInt(r *http.Request) (int, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(body)))
	return n, err == nil
}

func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}
