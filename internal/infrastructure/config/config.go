package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. CHEMSPYD_CHANNEL_DIR.
const EnvPrefix = "CHEMSPYD_"

// Config is the root configuration of chemspyd. It is loaded from YAML and
// can be overridden by environment variables.
type Config struct {
	Platform          PlatformConfig `yaml:"platform"`
	Channel           ChannelConfig  `yaml:"channel"`
	Zones             ZonesConfig    `yaml:"zones"`
	SystemLiquidsFile string         `yaml:"system_liquids_file"`
	Status            StatusConfig   `yaml:"status"`
	Database          DatabaseConfig `yaml:"database"`
	MQTT              MQTTConfig     `yaml:"mqtt"`
	InfluxDB          InfluxDBConfig `yaml:"influxdb"`
	Metrics           MetricsConfig  `yaml:"metrics"`
	Logging           LoggingConfig  `yaml:"logging"`
}

// PlatformConfig identifies the platform in logs, events and metrics.
type PlatformConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// ChannelConfig configures the command file channel.
type ChannelConfig struct {
	// Dir is the directory shared with the hardware controller.
	Dir string `yaml:"dir"`

	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds each wait phase of a command. 0 waits forever.
	Timeout time.Duration `yaml:"timeout"`

	// Simulation logs commands instead of writing them.
	Simulation bool `yaml:"simulation"`
}

// ZonesConfig points at the element capability document.
type ZonesConfig struct {
	ElementsFile    string `yaml:"elements_file"`
	TrackQuantities bool   `yaml:"track_quantities"`
}

// StatusKeyConfig names one field of status.csv.
type StatusKeyConfig struct {
	Name       string `yaml:"name"`
	SourceUnit string `yaml:"source_unit"`
	TargetUnit string `yaml:"target_unit"`
}

// StatusConfig configures the telemetry monitor.
type StatusConfig struct {
	Interval time.Duration `yaml:"interval"`

	// Keys overrides the stock status.csv layout when set.
	Keys []StatusKeyConfig `yaml:"keys"`
}

// DatabaseConfig contains SQLite journal settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// Retention prunes journaled commands and superseded quantity ledger
	// rows older than this. 0 keeps all.
	Retention time.Duration `yaml:"retention"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains rotating log file settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment
// overrides.
//
// Loading order:
//  1. Defaults
//  2. YAML file values
//  3. CHEMSPYD_* environment variables
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read or parsed, or validation fails
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load for an in-memory document.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Platform: PlatformConfig{
			ID:   "chemspeed-01",
			Name: "Chemspeed SWING",
		},
		Channel: ChannelConfig{
			Dir:          "/var/lib/chemspyd/channel",
			PollInterval: 100 * time.Millisecond,
		},
		Zones: ZonesConfig{
			ElementsFile:    "/etc/chemspyd/elements.yaml",
			TrackQuantities: true,
		},
		Status: StatusConfig{
			Interval: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/chemspyd.db",
			WALMode:     true,
			BusyTimeout: 5,
			Retention:   90 * 24 * time.Hour,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "chemspyd",
			},
			QoS:         1,
			TopicPrefix: "chemspyd",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Org:           "lab",
			Bucket:        "chemspyd",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Metrics: MetricsConfig{
			Listen: ":9464",
			Path:   "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
			File: FileLoggingConfig{
				Path:       "./logs/chemspyd.log",
				MaxSize:    50,
				MaxBackups: 5,
				MaxAge:     30,
			},
		},
	}
}

// applyEnvOverrides applies CHEMSPYD_SECTION_KEY variables.
func applyEnvOverrides(cfg *Config) error {
	str := func(key string, dst *string) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	var errs []string
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	str("PLATFORM_ID", &cfg.Platform.ID)
	str("CHANNEL_DIR", &cfg.Channel.Dir)
	duration("CHANNEL_TIMEOUT", &cfg.Channel.Timeout)
	boolean("CHANNEL_SIMULATION", &cfg.Channel.Simulation)
	str("ZONES_ELEMENTS_FILE", &cfg.Zones.ElementsFile)
	str("SYSTEM_LIQUIDS_FILE", &cfg.SystemLiquidsFile)
	str("DATABASE_PATH", &cfg.Database.Path)
	str("MQTT_HOST", &cfg.MQTT.Broker.Host)
	str("MQTT_USERNAME", &cfg.MQTT.Auth.Username)
	str("MQTT_PASSWORD", &cfg.MQTT.Auth.Password)
	str("INFLUXDB_TOKEN", &cfg.InfluxDB.Token)
	str("LOG_LEVEL", &cfg.Logging.Level)

	if len(errs) > 0 {
		return fmt.Errorf("environment overrides: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Platform.ID == "" {
		errs = append(errs, "platform.id is required")
	}
	if c.Channel.Dir == "" && !c.Channel.Simulation {
		errs = append(errs, "channel.dir is required unless channel.simulation is set")
	}
	if c.Channel.PollInterval <= 0 {
		errs = append(errs, "channel.poll_interval must be positive")
	}
	if c.Channel.Timeout < 0 {
		errs = append(errs, "channel.timeout must not be negative")
	}
	if c.Zones.ElementsFile == "" {
		errs = append(errs, "zones.elements_file is required")
	}
	if c.Status.Interval <= 0 {
		errs = append(errs, "status.interval must be positive")
	}
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the journal is enabled")
	}
	if c.Database.Retention < 0 {
		errs = append(errs, "database.retention must not be negative")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && (c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535) {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, "metrics.listen is required when metrics are enabled")
	}
	switch c.Logging.Output {
	case "stdout", "stderr", "journal":
	case "file", "both":
		if c.Logging.File.Path == "" {
			errs = append(errs, "logging.file.path is required for file output")
		}
	default:
		errs = append(errs, fmt.Sprintf("logging.output %q must be one of stdout, stderr, file, both, journal", c.Logging.Output))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
