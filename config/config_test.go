package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venue-panel/config"
	"venue-panel/internal/application"
	"venue-panel/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const fullConfig = `
devices:
  timeout: 3s
  sync_interval: 0s
zones:
  - name: bowling
    address: 10.0.1.1
  - name: dj-booth
    address: 10.0.1.2
    mode: antipop
  - name: rink
    address: 10.0.1.3
    mode: plain
venue_audio:
  capture_channel: 12
  restore_channel: 3
  zones: [bowling, rink]
  target_volumes:
    bowling: 20
snapshot:
  backend: redis
  redis_addr: redis:6379
timing:
  post_switch_settle: 4s
  zone_pacing: 500ms
pushover:
  token: ${PANEL_PUSHOVER_TOKEN}
  user_key: user
  enabled: true
`

func TestLoad_Full(t *testing.T) {
	t.Setenv("PANEL_PUSHOVER_TOKEN", "tok-123")

	cfg, err := config.Load(writeConfig(t, fullConfig))
	require.NoError(t, err)

	assert.Equal(t, "tok-123", cfg.Pushover.Token)

	timeout, err := cfg.DeviceTimeout()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, timeout)

	interval, err := cfg.SyncInterval()
	require.NoError(t, err)
	assert.Zero(t, interval)

	assert.Equal(t, []domain.Zone{
		{Name: "bowling", Address: "10.0.1.1", Mode: domain.SwitchModeAntiPop},
		{Name: "dj-booth", Address: "10.0.1.2", Mode: domain.SwitchModeAntiPop},
		{Name: "rink", Address: "10.0.1.3", Mode: domain.SwitchModePlain},
	}, cfg.ZoneList())

	plan, ok := cfg.VenuePlan()
	require.True(t, ok)
	assert.Equal(t, 12, plan.CaptureChannel)
	assert.Equal(t, 3, plan.RestoreChannel)
	require.Len(t, plan.Zones, 2)
	assert.Equal(t, "bowling", plan.Zones[0].Name)
	assert.Equal(t, "rink", plan.Zones[1].Name)
	assert.Equal(t, map[string]int{"bowling": 20}, plan.TargetVolumes)

	timing, err := cfg.Timing.Apply(application.DefaultTiming())
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, timing.PostSwitchSettle)
	assert.Equal(t, 500*time.Millisecond, timing.ZonePacing)
	assert.Equal(t, application.PreSwitchSettle, timing.PreSwitchSettle)

	assert.Equal(t, config.SnapshotBackendRedis, cfg.Snapshot.Backend)
	assert.Equal(t, "redis:6379", cfg.Snapshot.RedisAddr)
	assert.Equal(t, "venue-panel:volume-snapshot", cfg.Snapshot.RedisKey)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "zones: []\n"))
	require.NoError(t, err)

	assert.Equal(t, "5s", cfg.Devices.Timeout)
	assert.Equal(t, "1m", cfg.Devices.SyncInterval)
	assert.Equal(t, config.DefaultVolumeModels, cfg.Devices.VolumeModels)
	assert.Equal(t, config.DefaultDSPModels, cfg.Devices.DSPModels)
	assert.Equal(t, config.SnapshotBackendFile, cfg.Snapshot.Backend)
	assert.Equal(t, "./data/volume_snapshot.json", cfg.Snapshot.Path)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 60, cfg.HTTP.RateLimit)
	assert.Equal(t, "venue-panel", cfg.MQTT.ClientID)
	assert.Equal(t, "venue-panel/reports", cfg.MQTT.Topic)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)

	_, ok := cfg.VenuePlan()
	assert.False(t, ok)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "unknown venue zone",
			body:    "zones: [{name: bowling, address: 10.0.1.1}]\nvenue_audio: {zones: [arcade]}\n",
			wantErr: `zone not found: "arcade"`,
		},
		{
			name:    "target outside venue",
			body:    "zones: [{name: bowling, address: 10.0.1.1}]\nvenue_audio: {zones: [bowling], target_volumes: {rink: 5}}\n",
			wantErr: `"rink" is not a venue zone`,
		},
		{
			name:    "duplicate zone",
			body:    "zones: [{name: bowling, address: a}, {name: bowling, address: b}]\n",
			wantErr: `duplicate zone "bowling"`,
		},
		{
			name:    "bad mode",
			body:    "zones: [{name: bowling, address: a, mode: loud}]\n",
			wantErr: `unknown mode "loud"`,
		},
		{
			name:    "missing address",
			body:    "zones: [{name: bowling}]\n",
			wantErr: `zone "bowling": address is required`,
		},
		{
			name:    "bad timeout",
			body:    "devices: {timeout: soon}\n",
			wantErr: "devices.timeout",
		},
		{
			name:    "bad timing",
			body:    "timing: {gate_on_settle: -1s}\n",
			wantErr: "timing.gate_on_settle: must not be negative",
		},
		{
			name:    "bad backend",
			body:    "snapshot: {backend: s3}\n",
			wantErr: `unknown backend "s3"`,
		},
		{
			name:    "mqtt without broker",
			body:    "mqtt: {enabled: true}\n",
			wantErr: "broker is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "reading config file")
}
