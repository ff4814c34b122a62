// Package config loads settings from the environment (and an optional .env
// file). Command-line flags are bound on top of these values by the CLI.
package config

import (
	"fmt"
	"net"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	SinkNone  = "none"
	SinkFile  = "file"
	SinkKafka = "kafka"
	SinkBoth  = "both"
)

type Config struct {
	// BaseURL is the directory listing that holds dated snapshots.
	BaseURL string `env:"AS2ORG_BASE_URL" default:"https://publicdata.caida.org/datasets/as-organizations"`

	// Data is a local path or URL of a dataset file. Empty means the most
	// recent snapshot in BaseURL.
	Data string `env:"AS2ORG_DATA"`

	Verbose bool `env:"AS2ORG_VERBOSE" default:"false"`

	ListenAddr       string        `env:"AS2ORG_LISTEN_ADDR" default:"127.0.0.1:8080"`
	SnapshotCacheTTL time.Duration `env:"AS2ORG_SNAPSHOT_CACHE_TTL" default:"1h"`
	ShutdownTimeout  time.Duration `env:"AS2ORG_SHUTDOWN_TIMEOUT" default:"10s"`

	DownloadDir string `env:"AS2ORG_DOWNLOAD_DIR" default:"./snapshots"`

	ManifestSink  string `env:"AS2ORG_MANIFEST_SINK" default:"none"`
	ManifestDir   string `env:"AS2ORG_MANIFEST_DIR" default:"./manifest"`
	TopicManifest string `env:"AS2ORG_TOPIC_MANIFEST" default:"as2org.manifest"`

	EnrichSink  string `env:"AS2ORG_ENRICH_SINK" default:"none"`
	EnrichDir   string `env:"AS2ORG_ENRICH_DIR" default:"./enriched"`
	TopicEnrich string `env:"AS2ORG_TOPIC_ENRICH" default:"as2org.enriched"`

	KafkaBootstrap string `env:"AS2ORG_KAFKA_BOOTSTRAP" envAlt:"KAFKA_BOOTSTRAP"`
}

// Load reads an optional .env file, then the environment, applying defaults
// for unset values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	for name, sink := range map[string]string{"manifest sink": c.ManifestSink, "enrich sink": c.EnrichSink} {
		switch sink {
		case SinkNone, SinkFile, SinkKafka, SinkBoth:
		default:
			return fmt.Errorf("invalid %s %q (want none|file|kafka|both)", name, sink)
		}
		if (sink == SinkKafka || sink == SinkBoth) && c.KafkaBootstrap == "" {
			return fmt.Errorf("%s %q requires a kafka bootstrap", name, sink)
		}
	}
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.ListenAddr, err)
	}
	if c.SnapshotCacheTTL < 0 {
		return fmt.Errorf("snapshot cache ttl must not be negative")
	}
	return nil
}

func loadStruct(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)
		if !fieldVal.CanSet() {
			continue
		}
		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value := os.Getenv(envName)
		if alt := field.Tag.Get("envAlt"); value == "" && alt != "" {
			value = os.Getenv(alt)
		}
		if value == "" {
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}
	return nil
}

func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int64:
		if field.Type() != reflect.TypeOf(time.Duration(0)) {
			return fmt.Errorf("unsupported int64 field")
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}
