package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"venue-panel/internal/application"
	"venue-panel/internal/domain"
)

type Config struct {
	Devices    DevicesConfig    `yaml:"devices"`
	Zones      []ZoneConfig     `yaml:"zones"`
	VenueAudio VenueAudioConfig `yaml:"venue_audio"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
	Timing     TimingConfig     `yaml:"timing"`
	HTTP       HTTPConfig       `yaml:"http"`
	Pushover   PushoverConfig   `yaml:"pushover"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Log        LogConfig        `yaml:"log"`
}

type DevicesConfig struct {
	Timeout      string   `yaml:"timeout"`
	VolumeModels []string `yaml:"volume_models"`
	DSPModels    []string `yaml:"dsp_models"`
	SyncInterval string   `yaml:"sync_interval"`
}

type ZoneConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Mode    string `yaml:"mode"`
}

type VenueAudioConfig struct {
	CaptureChannel int            `yaml:"capture_channel"`
	RestoreChannel int            `yaml:"restore_channel"`
	Zones          []string       `yaml:"zones"`
	TargetVolumes  map[string]int `yaml:"target_volumes"`
}

type SnapshotConfig struct {
	Backend       string `yaml:"backend"`
	Path          string `yaml:"path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisKey      string `yaml:"redis_key"`
}

// TimingConfig overrides individual pacing delays. Empty values keep the
// built-in delay.
type TimingConfig struct {
	RampDownSettle   string `yaml:"ramp_down_settle"`
	PreSwitchSettle  string `yaml:"pre_switch_settle"`
	PostSwitchSettle string `yaml:"post_switch_settle"`
	GateOnSettle     string `yaml:"gate_on_settle"`
	VolumeStep       string `yaml:"volume_step"`
	ZonePacing       string `yaml:"zone_pacing"`
	RestorePacing    string `yaml:"restore_pacing"`
	TargetSettle     string `yaml:"target_settle"`
	TargetPacing     string `yaml:"target_pacing"`
}

type HTTPConfig struct {
	Addr      string `yaml:"addr"`
	RateLimit int    `yaml:"rate_limit"`
}

type PushoverConfig struct {
	Token   string `yaml:"token"`
	UserKey string `yaml:"user_key"`
	Enabled bool   `yaml:"enabled"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	Enabled  bool   `yaml:"enabled"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	SnapshotBackendFile  = "file"
	SnapshotBackendRedis = "redis"
)

// Models known to accept volume commands, and the two transmitters with DSP
// audio paths.
var (
	DefaultVolumeModels = []string{"3G+AVP TX", "3G+AVP RX", "3G+WP4 TX", "3G+4+ TX"}
	DefaultDSPModels    = []string{"3G+AVP TX", "3G+WP4 TX"}
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Devices.Timeout == "" {
		c.Devices.Timeout = "5s"
	}
	if len(c.Devices.VolumeModels) == 0 {
		c.Devices.VolumeModels = append([]string(nil), DefaultVolumeModels...)
	}
	if len(c.Devices.DSPModels) == 0 {
		c.Devices.DSPModels = append([]string(nil), DefaultDSPModels...)
	}
	if c.Devices.SyncInterval == "" {
		c.Devices.SyncInterval = "1m"
	}
	for i := range c.Zones {
		if c.Zones[i].Mode == "" {
			c.Zones[i].Mode = string(domain.SwitchModeAntiPop)
		}
	}
	if c.Snapshot.Backend == "" {
		c.Snapshot.Backend = SnapshotBackendFile
	}
	if c.Snapshot.Path == "" {
		c.Snapshot.Path = "./data/volume_snapshot.json"
	}
	if c.Snapshot.RedisAddr == "" {
		c.Snapshot.RedisAddr = "localhost:6379"
	}
	if c.Snapshot.RedisKey == "" {
		c.Snapshot.RedisKey = "venue-panel:volume-snapshot"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.RateLimit == 0 {
		c.HTTP.RateLimit = 60
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "venue-panel"
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "venue-panel/reports"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks cross references between sections. It reports every problem
// found, not just the first.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.DeviceTimeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.SyncInterval(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Timing.Apply(application.DefaultTiming()); err != nil {
		errs = append(errs, err)
	}

	names := make(map[string]struct{}, len(c.Zones))
	for i, z := range c.Zones {
		if z.Name == "" {
			errs = append(errs, fmt.Errorf("zones[%d]: name is required", i))
			continue
		}
		if _, dup := names[z.Name]; dup {
			errs = append(errs, fmt.Errorf("zones[%d]: duplicate zone %q", i, z.Name))
		}
		names[z.Name] = struct{}{}
		if z.Address == "" {
			errs = append(errs, fmt.Errorf("zone %q: address is required", z.Name))
		}
		if !domain.SwitchMode(z.Mode).Valid() {
			errs = append(errs, fmt.Errorf("zone %q: unknown mode %q", z.Name, z.Mode))
		}
	}

	venue := make(map[string]struct{}, len(c.VenueAudio.Zones))
	for _, name := range c.VenueAudio.Zones {
		if _, ok := names[name]; !ok {
			errs = append(errs, fmt.Errorf("venue_audio: %w: %q", domain.ErrZoneNotFound, name))
		}
		venue[name] = struct{}{}
	}
	for name, level := range c.VenueAudio.TargetVolumes {
		if _, ok := venue[name]; !ok {
			errs = append(errs, fmt.Errorf("venue_audio.target_volumes: %q is not a venue zone", name))
		}
		if level < 0 {
			errs = append(errs, fmt.Errorf("venue_audio.target_volumes: %q must not be negative", name))
		}
	}
	if c.VenueAudio.CaptureChannel < 0 || c.VenueAudio.RestoreChannel < 0 {
		errs = append(errs, errors.New("venue_audio: channels must not be negative"))
	}

	switch c.Snapshot.Backend {
	case SnapshotBackendFile, SnapshotBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("snapshot.backend: unknown backend %q", c.Snapshot.Backend))
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt: broker is required when enabled"))
	}

	return errors.Join(errs...)
}

func (c *Config) DeviceTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Devices.Timeout)
	if err != nil {
		return 0, fmt.Errorf("devices.timeout: %w", err)
	}
	return d, nil
}

// SyncInterval of zero disables the status poll.
func (c *Config) SyncInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Devices.SyncInterval)
	if err != nil {
		return 0, fmt.Errorf("devices.sync_interval: %w", err)
	}
	return d, nil
}

func (c *Config) ZoneList() []domain.Zone {
	zones := make([]domain.Zone, 0, len(c.Zones))
	for _, z := range c.Zones {
		zones = append(zones, domain.Zone{
			Name:    z.Name,
			Address: z.Address,
			Mode:    domain.SwitchMode(z.Mode),
		})
	}
	return zones
}

// VenuePlan resolves the venue toggle against the zone list. It reports false
// when no venue zones are configured.
func (c *Config) VenuePlan() (application.VenueAudioPlan, bool) {
	if len(c.VenueAudio.Zones) == 0 {
		return application.VenueAudioPlan{}, false
	}

	byName := make(map[string]domain.Zone, len(c.Zones))
	for _, z := range c.ZoneList() {
		byName[z.Name] = z
	}

	plan := application.VenueAudioPlan{
		CaptureChannel: c.VenueAudio.CaptureChannel,
		RestoreChannel: c.VenueAudio.RestoreChannel,
		TargetVolumes:  c.VenueAudio.TargetVolumes,
	}
	for _, name := range c.VenueAudio.Zones {
		if z, ok := byName[name]; ok {
			plan.Zones = append(plan.Zones, z)
		}
	}
	return plan, true
}

// Apply overlays the configured delays on base.
func (t TimingConfig) Apply(base application.Timing) (application.Timing, error) {
	overrides := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"ramp_down_settle", t.RampDownSettle, &base.RampDownSettle},
		{"pre_switch_settle", t.PreSwitchSettle, &base.PreSwitchSettle},
		{"post_switch_settle", t.PostSwitchSettle, &base.PostSwitchSettle},
		{"gate_on_settle", t.GateOnSettle, &base.GateOnSettle},
		{"volume_step", t.VolumeStep, &base.VolumeStep},
		{"zone_pacing", t.ZonePacing, &base.ZonePacing},
		{"restore_pacing", t.RestorePacing, &base.RestorePacing},
		{"target_settle", t.TargetSettle, &base.TargetSettle},
		{"target_pacing", t.TargetPacing, &base.TargetPacing},
	}

	for _, o := range overrides {
		if o.value == "" {
			continue
		}
		d, err := time.ParseDuration(o.value)
		if err != nil {
			return base, fmt.Errorf("timing.%s: %w", o.key, err)
		}
		if d < 0 {
			return base, fmt.Errorf("timing.%s: must not be negative", o.key)
		}
		*o.dst = d
	}

	return base, nil
}
