package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
platform:
  id: "swing-lab-2"
channel:
  dir: "/srv/chemspeed/channel"
  poll_interval: 250ms
  timeout: 30m
zones:
  elements_file: "/etc/chemspyd/elements.yaml"
  track_quantities: false
system_liquids_file: "/etc/chemspyd/system_liquids.yaml"
status:
  interval: 5s
  keys:
    - {name: temperature, source_unit: K, target_unit: C}
database:
  path: "/tmp/journal.db"
mqtt:
  enabled: true
  broker:
    host: "broker.lab"
    port: 8883
  qos: 2
logging:
  output: both
  file:
    path: /var/log/chemspyd.log
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Platform.ID != "swing-lab-2" {
		t.Errorf("Platform.ID = %q", cfg.Platform.ID)
	}
	if cfg.Channel.PollInterval != 250*time.Millisecond || cfg.Channel.Timeout != 30*time.Minute {
		t.Errorf("Channel = %+v", cfg.Channel)
	}
	if cfg.Zones.TrackQuantities {
		t.Error("Zones.TrackQuantities should be overridden to false")
	}
	if cfg.Status.Interval != 5*time.Second || len(cfg.Status.Keys) != 1 || cfg.Status.Keys[0].TargetUnit != "C" {
		t.Errorf("Status = %+v", cfg.Status)
	}
	if cfg.MQTT.Broker.Host != "broker.lab" || cfg.MQTT.QoS != 2 {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	// Defaults survive for keys the file leaves out.
	if cfg.Database.BusyTimeout != 5 || !cfg.Database.WALMode {
		t.Errorf("Database defaults lost: %+v", cfg.Database)
	}
	if cfg.MQTT.TopicPrefix != "chemspyd" {
		t.Errorf("MQTT.TopicPrefix = %q", cfg.MQTT.TopicPrefix)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("channel: [dir: ")); err == nil {
		t.Error("Parse() expected error for invalid YAML, got nil")
	}
	if _, err := Parse([]byte("channel:\n  timeout: soon\n")); err == nil {
		t.Error("Parse() expected error for invalid duration, got nil")
	}
}

func TestParse_EmptyDocumentUsesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) error = %v", err)
	}
	if cfg.Channel.PollInterval != 100*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.Channel.PollInterval)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"missing platform id", func(c *Config) { c.Platform.ID = "" }, "platform.id"},
		{"missing dir", func(c *Config) { c.Channel.Dir = "" }, "channel.dir"},
		{"simulation without dir", func(c *Config) { c.Channel.Dir = ""; c.Channel.Simulation = true }, ""},
		{"zero poll interval", func(c *Config) { c.Channel.PollInterval = 0 }, "channel.poll_interval"},
		{"negative timeout", func(c *Config) { c.Channel.Timeout = -time.Second }, "channel.timeout"},
		{"missing elements file", func(c *Config) { c.Zones.ElementsFile = "" }, "zones.elements_file"},
		{"journal without path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"disabled journal without path", func(c *Config) { c.Database.Enabled = false; c.Database.Path = "" }, ""},
		{"invalid qos", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"invalid broker port", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.Broker.Port = 70000 }, "mqtt.broker.port"},
		{"influx without bucket", func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.Bucket = "" }, "influxdb"},
		{"metrics without listen", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Listen = "" }, "metrics.listen"},
		{"bad log output", func(c *Config) { c.Logging.Output = "syslog" }, "logging.output"},
		{"file output without path", func(c *Config) { c.Logging.Output = "file"; c.Logging.File.Path = "" }, "logging.file.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateReportsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Platform.ID = ""
	cfg.MQTT.QoS = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"platform.id", "mqtt.qos"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()

	t.Setenv("CHEMSPYD_CHANNEL_DIR", "/mnt/share/channel")
	t.Setenv("CHEMSPYD_CHANNEL_TIMEOUT", "45s")
	t.Setenv("CHEMSPYD_CHANNEL_SIMULATION", "true")
	t.Setenv("CHEMSPYD_DATABASE_PATH", "/custom/journal.db")
	t.Setenv("CHEMSPYD_MQTT_HOST", "mqtt.example.com")
	t.Setenv("CHEMSPYD_MQTT_PASSWORD", "testpass")
	t.Setenv("CHEMSPYD_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("CHEMSPYD_LOG_LEVEL", "debug")

	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}

	if cfg.Channel.Dir != "/mnt/share/channel" || cfg.Channel.Timeout != 45*time.Second || !cfg.Channel.Simulation {
		t.Errorf("Channel = %+v", cfg.Channel)
	}
	if cfg.Database.Path != "/custom/journal.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" || cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q", cfg.InfluxDB.Token)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestApplyEnvOverrides_InvalidValues(t *testing.T) {
	t.Setenv("CHEMSPYD_CHANNEL_TIMEOUT", "forever")
	t.Setenv("CHEMSPYD_CHANNEL_SIMULATION", "maybe")

	err := applyEnvOverrides(Default())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "CHEMSPYD_CHANNEL_TIMEOUT") || !strings.Contains(err.Error(), "CHEMSPYD_CHANNEL_SIMULATION") {
		t.Errorf("error = %v", err)
	}
}
