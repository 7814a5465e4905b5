// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StorageFile    = "file"
	StorageSQLite  = "sqlite"
	StorageElastic = "elastic"

	LookupHTTP    = "http"
	LookupStorage = "storage"
)

type Config struct {
	Host string `env:"HBNB_API_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"HBNB_API_PORT" envDefault:"5000"`

	StorageType  string `env:"HBNB_TYPE_STORAGE" envDefault:"file"`
	FilePath     string `env:"HBNB_FILE_PATH" envDefault:"file.json"`
	SQLitePath   string `env:"HBNB_SQLITE_PATH" envDefault:"hbnb.db"`
	ElasticURL   string `env:"HBNB_ELASTIC_URL" envDefault:"http://localhost:9200"`
	ElasticIndex string `env:"HBNB_ELASTIC_INDEX_PREFIX" envDefault:"hbnb"`

	// AmenityLookup selects how places_search resolves a place's amenities.
	AmenityLookup  string        `env:"HBNB_AMENITY_LOOKUP" envDefault:"http"`
	AmenityAPIURL  string        `env:"HBNB_AMENITY_API_URL"`
	AmenityTimeout time.Duration `env:"HBNB_AMENITY_TIMEOUT" envDefault:"10s"`

	SigningKey string `env:"HBNB_API_SIGNING_KEY"`

	KafkaBrokers []string `env:"HBNB_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"HBNB_KAFKA_TOPIC" envDefault:"hbnb.places"`
	// EventTimeout bounds how long a request waits on publishing its event.
	EventTimeout time.Duration `env:"HBNB_EVENT_TIMEOUT" envDefault:"2s"`

	LogLevel string `env:"HBNB_LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StorageType {
	case StorageFile, StorageSQLite, StorageElastic:
	default:
		return fmt.Errorf("unsupported storage type %q", c.StorageType)
	}
	switch c.AmenityLookup {
	case LookupHTTP, LookupStorage:
	default:
		return fmt.Errorf("unsupported amenity lookup %q", c.AmenityLookup)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// Addr is the listen address of the API server.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// AmenityBaseURL is the API root the amenity lookup client calls.
func (c Config) AmenityBaseURL() string {
	if u := strings.TrimSpace(c.AmenityAPIURL); u != "" {
		return strings.TrimRight(u, "/")
	}
	host := c.Host
	if host == "" {
		host = "0.0.0.0"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Port)) + "/api/v1"
}
