package multiverse

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the file-level configuration for a multiverse deployment: how
// transport flushes are tuned, which sun backend each collection sits on,
// and where the transport journal goes. Schemas are code, not config, so
// they do not appear here.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Journal   JournalConfig   `yaml:"journal"`
	Suns      []SunConfig     `yaml:"suns"`
}

// TransportConfig tunes the streaming transport engine.
type TransportConfig struct {
	// BatchSize is the default flush threshold when a destination declares
	// none of its own.
	BatchSize int `yaml:"batch_size"`

	// FlushRate caps flushes per second across a stream. Zero is unlimited.
	FlushRate int `yaml:"flush_rate"`
}

// JournalConfig selects the transport journal backend.
type JournalConfig struct {
	// Type is "none", "memory", or "kafka".
	Type string `yaml:"type"`

	Kafka KafkaJournalConfig `yaml:"kafka"`
}

// KafkaJournalConfig configures the Kafka transport journal.
type KafkaJournalConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// RequiredAcks is 0, 1, or -1 (all replicas).
	RequiredAcks int `yaml:"required_acks"`
}

// SunConfig places one collection of one universe on a storage backend.
type SunConfig struct {
	// Universe and Collection name the slot this sun fills.
	Universe   string `yaml:"universe"`
	Collection string `yaml:"collection"`

	// Type selects the backend: "memory", "redis", "dynamodb", or "mysql".
	Type string `yaml:"type"`

	// BatchSize is the collection's preferred transport flush threshold.
	// Zero defers to the transport default.
	BatchSize int `yaml:"batch_size"`

	Redis  RedisSunConfig  `yaml:"redis"`
	Dynamo DynamoSunConfig `yaml:"dynamodb"`
	MySQL  MySQLSunConfig  `yaml:"mysql"`
}

// RedisSunConfig configures a Redis-backed sun.
type RedisSunConfig struct {
	Endpoints    []string      `yaml:"endpoints"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DynamoSunConfig configures a DynamoDB-backed sun.
type DynamoSunConfig struct {
	Region string `yaml:"region"`
	Table  string `yaml:"table"`

	// Endpoint overrides the service endpoint, e.g. for LocalStack.
	Endpoint string `yaml:"endpoint"`

	// AccessKeyID and SecretAccessKey are optional; an IAM role is used
	// when absent.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// MySQLSunConfig configures a MySQL-backed sun.
type MySQLSunConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Table is the document table records are stored in.
	Table string `yaml:"table"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// DefaultConfig returns a configuration with sensible defaults: memory suns
// only, no journal, default batch size.
func DefaultConfig() Config {
	return Config{
		Transport: TransportConfig{
			BatchSize: DefaultBatchSize,
		},
		Journal: JournalConfig{
			Type: "none",
			Kafka: KafkaJournalConfig{
				Brokers:      []string{"localhost:9092"},
				Topic:        "multiverse-transport",
				BatchSize:    100,
				BatchTimeout: 10 * time.Millisecond,
				WriteTimeout: 10 * time.Second,
				RequiredAcks: -1,
			},
		},
	}
}

// LoadConfig reads a YAML config file, overlaying it on the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for contradictions before anything is
// constructed from it.
func (c Config) Validate() error {
	if c.Transport.BatchSize <= 0 {
		return fmt.Errorf("transport.batch_size must be greater than 0")
	}
	if c.Transport.FlushRate < 0 {
		return fmt.Errorf("transport.flush_rate must be non-negative")
	}

	switch c.Journal.Type {
	case "", "none", "memory":
	case "kafka":
		if len(c.Journal.Kafka.Brokers) == 0 {
			return fmt.Errorf("journal.kafka.brokers is required when journal.type is 'kafka'")
		}
		if c.Journal.Kafka.Topic == "" {
			return fmt.Errorf("journal.kafka.topic is required when journal.type is 'kafka'")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'memory', or 'kafka'")
	}

	seen := make(map[string]bool, len(c.Suns))
	for i, sun := range c.Suns {
		if sun.Universe == "" || sun.Collection == "" {
			return fmt.Errorf("suns[%d]: universe and collection are required", i)
		}
		slot := sun.Universe + "/" + sun.Collection
		if seen[slot] {
			return fmt.Errorf("suns[%d]: duplicate slot %s", i, slot)
		}
		seen[slot] = true
		if sun.Type == "" {
			return fmt.Errorf("suns[%d]: type is required", i)
		}
	}
	return nil
}
