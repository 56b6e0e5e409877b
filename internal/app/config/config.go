package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rwiren/securingskies-platform/internal/domain"
	"github.com/rwiren/securingskies-platform/internal/ports"
)

type Config struct {
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Sources  SourcesConfig  `yaml:"sources"`
	Policy   ports.Policy   `yaml:"policy"`
	Fusion   FusionConfig   `yaml:"fusion"`
	API      APIConfig      `yaml:"api"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Recorder RecorderConfig `yaml:"recorder"`
	Forensic ForensicConfig `yaml:"forensic"`
}

// MQTTConfig describes the live broker connection. BrokerURL is checked by
// the runtime only when it actually builds the MQTT collector; replay
// sessions and embedded collectors run without a broker.
type MQTTConfig struct {
	BrokerURL string `yaml:"broker_url"`
	ClientID  string `yaml:"client_id"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	UseTLS    bool   `yaml:"use_tls"`
	QoS       byte   `yaml:"qos"`
}

// SourcesConfig maps each vendor family to its subscription filters. The
// collector subscribes to the union; the classifier registry routes on the
// same filters, so adding a family is a config change plus one classifier.
type SourcesConfig struct {
	Autel     []string `yaml:"autel"`
	Dronetag  []string `yaml:"dronetag"`
	OwnTracks []string `yaml:"owntracks"`
	Pixhawk   []string `yaml:"pixhawk"`
}

// AllTopics returns the union of subscription filters.
func (s SourcesConfig) AllTopics() []string {
	var out []string
	out = append(out, s.Autel...)
	out = append(out, s.Dronetag...)
	out = append(out, s.OwnTracks...)
	out = append(out, s.Pixhawk...)
	return out
}

type FusionConfig struct {
	// PairWindow bounds the receipt-time distance for controller/vehicle
	// correlation; PairRadiusM bounds the spatial distance when both sides
	// hold a fix.
	PairWindow  time.Duration `yaml:"pair_window"`
	PairRadiusM float64       `yaml:"pair_radius_m"`

	// StaleAfter is the default freshness horizon; PerFamilyStaleAfter
	// overrides it for families with slower cadence.
	StaleAfter          time.Duration            `yaml:"stale_after"`
	PerFamilyStaleAfter map[string]time.Duration `yaml:"per_family_stale_after"`
}

// FamilyThresholds converts the per-family overrides to domain keys.
func (f FusionConfig) FamilyThresholds() map[domain.SourceFamily]time.Duration {
	if len(f.PerFamilyStaleAfter) == 0 {
		return nil
	}
	out := make(map[domain.SourceFamily]time.Duration, len(f.PerFamilyStaleAfter))
	for fam, d := range f.PerFamilyStaleAfter {
		out[domain.SourceFamily(fam)] = d
	}
	return out
}

type APIConfig struct {
	Addr string `yaml:"addr"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type RecorderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type ForensicConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "securingskies-fusion"
	}

	if len(c.Sources.Autel) == 0 {
		c.Sources.Autel = []string{
			"thing/product/+/osd",
			"thing/product/+/events",
			"thing/product/+/state",
			"thing/product/sn",
		}
	}
	if len(c.Sources.Dronetag) == 0 {
		c.Sources.Dronetag = []string{"dronetag/#"}
	}
	if len(c.Sources.OwnTracks) == 0 {
		c.Sources.OwnTracks = []string{"owntracks/#"}
	}
	if len(c.Sources.Pixhawk) == 0 {
		c.Sources.Pixhawk = []string{"pixhawk/telemetry"}
	}

	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 10_000
	}
	if c.Policy.MaxBatchSize == 0 {
		c.Policy.MaxBatchSize = 256
	}
	if c.Policy.IdleSleep == 0 {
		c.Policy.IdleSleep = 5 * time.Millisecond
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "block"
	}

	if c.Fusion.PairWindow == 0 {
		c.Fusion.PairWindow = 10 * time.Second
	}
	if c.Fusion.PairRadiusM == 0 {
		c.Fusion.PairRadiusM = 500
	}
	if c.Fusion.StaleAfter == 0 {
		c.Fusion.StaleAfter = 60 * time.Second
	}

	if c.API.Addr == "" {
		c.API.Addr = ":8080"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Recorder.Dir == "" {
		c.Recorder.Dir = "./data/missions"
	}
	if c.Forensic.Table == "" {
		c.Forensic.Table = "telemetry_records"
	}
}

func (c *Config) Validate() error {
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	if c.Policy.OnQueueFull != "block" && c.Policy.OnQueueFull != "drop" {
		return fmt.Errorf("policy.on_queue_full must be \"block\" or \"drop\", got %q", c.Policy.OnQueueFull)
	}
	if c.Fusion.PairWindow < 0 {
		return fmt.Errorf("fusion.pair_window must not be negative")
	}
	if c.Fusion.PairRadiusM < 0 {
		return fmt.Errorf("fusion.pair_radius_m must not be negative")
	}
	if c.Forensic.Enabled && c.Forensic.ConnString == "" {
		return fmt.Errorf("forensic.conn_string is required when forensic storage is enabled")
	}
	return nil
}
