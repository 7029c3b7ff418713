// Package config defines all configuration structures for the customer-atlas
// service.  No I/O or parsing logic lives here — only plain data types and
// validation.  Loading is handled by loader.go, defaults by defaults.go.
package config

import (
	"fmt"
	"time"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// BackendConfig holds CRM backend API connection parameters.  The backend is
// the external collaborator that owns customer and product storage; this
// service only reads from it.
type BackendConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	CustomersPath  string        `mapstructure:"customers_path"`
	ProductsPath   string        `mapstructure:"products_path"`
	RefreshEnabled bool          `mapstructure:"refresh_enabled"`
}

// GeocoderConfig holds external postal-code geocoder parameters.
type GeocoderConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Country  string        `mapstructure:"country"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// RedisConfig holds Redis connection parameters for the geocode cache.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds the dataset-refresh event consumer parameters.  Leaving
// Brokers empty disables the consumer entirely.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
	Topic   string   `mapstructure:"topic"`
}

// MapConfig holds map engine and layer tunables.
type MapConfig struct {
	// ClusterRadiusPx is the clustering radius in screen pixels.
	ClusterRadiusPx float64 `mapstructure:"cluster_radius_px"`

	// ClusterMaxZoom is the zoom level above which points are never clustered.
	ClusterMaxZoom int `mapstructure:"cluster_max_zoom"`

	// DefaultCenterLng / DefaultCenterLat / DefaultZoom define the initial
	// camera position.
	DefaultCenterLng float64 `mapstructure:"default_center_lng"`
	DefaultCenterLat float64 `mapstructure:"default_center_lat"`
	DefaultZoom      float64 `mapstructure:"default_zoom"`

	// ReadyRetryAttempts / ReadyRetryInterval bound the wait for engine
	// readiness before layer creation gives up.
	ReadyRetryAttempts int           `mapstructure:"ready_retry_attempts"`
	ReadyRetryInterval time.Duration `mapstructure:"ready_retry_interval"`

	// CoLocationEpsilonDeg is the coordinate tolerance (in degrees) used when
	// deciding that point features share one location.
	CoLocationEpsilonDeg float64 `mapstructure:"co_location_epsilon_deg"`

	// CoLocationThreshold is the number of co-located features above which a
	// point hit returns an aggregated list instead of a single detail.
	CoLocationThreshold int `mapstructure:"co_location_threshold"`
}

// RadiusConfig holds postal-code radius search tunables.
type RadiusConfig struct {
	DefaultMiles float64       `mapstructure:"default_miles"`
	Debounce     time.Duration `mapstructure:"debounce"`
	FlyDuration  time.Duration `mapstructure:"fly_duration"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `mapstructure:"format"` // "json" | "console"
}

// Config is the root configuration structure for the service.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Geocoder GeocoderConfig `mapstructure:"geocoder"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Map      MapConfig      `mapstructure:"map"`
	Radius   RadiusConfig   `mapstructure:"radius"`
	Log      LogConfig      `mapstructure:"log"`
}

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	if c.Backend.BaseURL == "" {
		return fmt.Errorf("config: backend.base_url is required")
	}
	if c.Geocoder.BaseURL == "" {
		return fmt.Errorf("config: geocoder.base_url is required")
	}
	if len(c.Geocoder.Country) != 2 {
		return fmt.Errorf("config: geocoder.country %q must be a 2-letter code", c.Geocoder.Country)
	}

	if c.Map.ClusterRadiusPx <= 0 {
		return fmt.Errorf("config: map.cluster_radius_px must be > 0, got %v", c.Map.ClusterRadiusPx)
	}
	if c.Map.ClusterMaxZoom < 0 || c.Map.ClusterMaxZoom > 24 {
		return fmt.Errorf("config: map.cluster_max_zoom %d is out of range [0, 24]", c.Map.ClusterMaxZoom)
	}
	if c.Map.ReadyRetryAttempts < 1 {
		return fmt.Errorf("config: map.ready_retry_attempts must be ≥ 1, got %d", c.Map.ReadyRetryAttempts)
	}
	if c.Map.CoLocationThreshold < 1 {
		return fmt.Errorf("config: map.co_location_threshold must be ≥ 1, got %d", c.Map.CoLocationThreshold)
	}

	if c.Radius.DefaultMiles <= 0 {
		return fmt.Errorf("config: radius.default_miles must be > 0, got %v", c.Radius.DefaultMiles)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
