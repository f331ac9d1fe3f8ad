package justaddpower_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venue-panel/internal/domain"
	"venue-panel/internal/infra"
	"venue-panel/internal/infra/justaddpower"
	"venue-panel/internal/infra/justaddpower/japtest"
)

func newClient() *justaddpower.Client {
	return justaddpower.NewClientWithRetry(2*time.Second, infra.RetryConfig{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1,
	})
}

func intPtr(v int) *int {
	return &v
}

func TestClient_ReadsDeviceState(t *testing.T) {
	dev := japtest.NewDevice("3G+WP4 TX", 3, intPtr(8))
	defer dev.Close()
	client := newClient()
	ctx := context.Background()

	model, err := client.GetModel(ctx, dev.Address())
	require.NoError(t, err)
	assert.Equal(t, "3G+WP4 TX", model)

	channel, err := client.GetChannel(ctx, dev.Address())
	require.NoError(t, err)
	assert.Equal(t, 3, channel)

	volume, err := client.GetVolume(ctx, dev.Address())
	require.NoError(t, err)
	require.NotNil(t, volume)
	assert.Equal(t, 8, *volume)
}

func TestClient_NullVolume(t *testing.T) {
	dev := japtest.NewDevice("2G RX", 1, nil)
	defer dev.Close()

	volume, err := newClient().GetVolume(context.Background(), dev.Address())

	require.NoError(t, err)
	assert.Nil(t, volume)
}

func TestClient_Commands(t *testing.T) {
	dev := japtest.NewDevice("3G+WP4 TX", 3, intPtr(8))
	defer dev.Close()
	client := newClient()
	ctx := context.Background()

	ok, err := client.SetChannel(ctx, dev.Address(), 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5, dev.Channel())

	ok, err = client.SetVolume(ctx, dev.Address(), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.SendGateCommand(ctx, dev.Address(), domain.GateHDMIMute, domain.GateOff)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, dev.Muted("hdmi"))

	ok, err = client.SendGateCommand(ctx, dev.Address(), domain.GateDSPLine, domain.GateOff)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, dev.Muted("dsp line"))

	assert.Equal(t, []string{"channel 5", "volume 0", "audio hdmi mute", "audio dsp line off"}, dev.Commands())
}

func TestClient_GateNotAcknowledged(t *testing.T) {
	dev := japtest.NewDevice("3G+AVP RX", 3, intPtr(8))
	defer dev.Close()
	dev.Reject("audio dsp hdmi off")

	ok, err := newClient().SendGateCommand(context.Background(), dev.Address(), domain.GateDSPHDMI, domain.GateOff)

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_VolumeUnsupported(t *testing.T) {
	dev := japtest.NewDevice("2G RX", 3, nil)
	defer dev.Close()

	ok, err := newClient().SetVolume(context.Background(), dev.Address(), 4)

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	address := server.URL
	server.Close()

	_, err := newClient().GetModel(context.Background(), address)

	assert.ErrorIs(t, err, domain.ErrDeviceUnreachable)
}

func TestClient_UnexpectedResponses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		attempt int32
	}{
		{name: "not json", status: http.StatusOK, body: "<html>", attempt: 1},
		{name: "wrong type", status: http.StatusOK, body: `{"data":{"x":1}}`, attempt: 1},
		{name: "client error", status: http.StatusNotFound, body: "nope", attempt: 1},
		{name: "server error retried", status: http.StatusInternalServerError, body: "boom", attempt: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := newClient().GetChannel(context.Background(), server.URL)

			assert.ErrorIs(t, err, domain.ErrUnexpectedResponse)
			assert.Equal(t, tt.attempt, hits.Load())
		})
	}
}

func TestClient_QuotedNumbers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": " 7 "})
	}))
	defer server.Close()

	channel, err := newClient().GetChannel(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, 7, channel)
}

func TestClient_BareAddress(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{"data": "3G+AVP RX"})
	}))
	defer server.Close()

	_, err := newClient().GetModel(context.Background(), strings.TrimPrefix(server.URL, "http://"))

	require.NoError(t, err)
	assert.Equal(t, "/cgi-bin/api/details/device/model", path)
}

func TestGateCommand(t *testing.T) {
	tests := []struct {
		gate  domain.GateKind
		state domain.GateState
		want  string
	}{
		{domain.GateDSPLine, domain.GateOff, "audio dsp line off"},
		{domain.GateDSPLine, domain.GateOn, "audio dsp line on"},
		{domain.GateDSPHDMI, domain.GateOff, "audio dsp hdmi off"},
		{domain.GateHDMIMute, domain.GateOff, "audio hdmi mute"},
		{domain.GateHDMIMute, domain.GateOn, "audio hdmi unmute"},
		{domain.GateStereoMute, domain.GateOff, "audio stereo mute"},
		{domain.GateStereoMute, domain.GateOn, "audio stereo unmute"},
	}
	for _, tt := range tests {
		got, err := justaddpower.GateCommand(tt.gate, tt.state)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := justaddpower.GateCommand("subwoofer", domain.GateOff)
	assert.Error(t, err)
}

func TestRegistry_Sync(t *testing.T) {
	tx := japtest.NewDevice("3G+WP4 TX", 4, intPtr(10))
	defer tx.Close()
	rx := japtest.NewDevice("2G RX", 4, nil)
	defer rx.Close()

	down := httptest.NewServer(http.NotFoundHandler())
	downAddr := down.URL
	down.Close()

	zones := []domain.Zone{
		{Name: "bowling", Address: tx.Address()},
		{Name: "rink", Address: rx.Address()},
		{Name: "arcade", Address: downAddr},
	}
	registry := justaddpower.NewRegistry(newClient(), zones, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, registry.Sync(context.Background()))

	statuses := registry.Statuses()
	require.Len(t, statuses, 3)

	assert.True(t, statuses[0].Online)
	assert.Equal(t, "3G+WP4 TX", statuses[0].Model)
	assert.Equal(t, intPtr(4), statuses[0].Channel)
	assert.Equal(t, intPtr(10), statuses[0].Volume)

	assert.True(t, statuses[1].Online)
	assert.Nil(t, statuses[1].Volume)

	assert.False(t, statuses[2].Online)
	assert.NotEmpty(t, statuses[2].LastError)

	rink, ok := registry.FindByZone("rink")
	require.True(t, ok)
	assert.Equal(t, rx.Address(), rink.Address)
	assert.False(t, registry.SyncedAt().IsZero())
}
