package config

import (
	"time"
)

// Version is the service version, stamped at build time via
// -ldflags "-X github.com/mapplot/customer-atlas/internal/config.Version=...".
var Version = "dev"

// ApplyDefaults fills every unset field of cfg with the platform default.
// The default camera (center of the continental US at zoom 3), the 25 px /
// zoom-16 cluster settings, the 25-mile radius, and the 300 ms geocode
// debounce mirror the dashboard's shipped behavior.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 20 * time.Second
	}
	if cfg.Backend.CustomersPath == "" {
		cfg.Backend.CustomersPath = "/api/customers"
	}
	if cfg.Backend.ProductsPath == "" {
		cfg.Backend.ProductsPath = "/api/products"
	}

	if cfg.Geocoder.BaseURL == "" {
		cfg.Geocoder.BaseURL = "https://api.zippopotam.us"
	}
	if cfg.Geocoder.Country == "" {
		cfg.Geocoder.Country = "us"
	}
	if cfg.Geocoder.Timeout == 0 {
		cfg.Geocoder.Timeout = 10 * time.Second
	}
	if cfg.Geocoder.CacheTTL == 0 {
		cfg.Geocoder.CacheTTL = 24 * time.Hour
	}

	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = 3 * time.Second
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = 3 * time.Second
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "atlas:"
	}

	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "customer-atlas"
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "customer.refresh"
	}

	if cfg.Map.ClusterRadiusPx == 0 {
		cfg.Map.ClusterRadiusPx = 25
	}
	if cfg.Map.ClusterMaxZoom == 0 {
		cfg.Map.ClusterMaxZoom = 16
	}
	if cfg.Map.DefaultCenterLng == 0 {
		cfg.Map.DefaultCenterLng = -98.5
	}
	if cfg.Map.DefaultCenterLat == 0 {
		cfg.Map.DefaultCenterLat = 39.8
	}
	if cfg.Map.DefaultZoom == 0 {
		cfg.Map.DefaultZoom = 3
	}
	if cfg.Map.ReadyRetryAttempts == 0 {
		cfg.Map.ReadyRetryAttempts = 10
	}
	if cfg.Map.ReadyRetryInterval == 0 {
		cfg.Map.ReadyRetryInterval = 100 * time.Millisecond
	}
	if cfg.Map.CoLocationEpsilonDeg == 0 {
		cfg.Map.CoLocationEpsilonDeg = 0.0001
	}
	if cfg.Map.CoLocationThreshold == 0 {
		cfg.Map.CoLocationThreshold = 2
	}

	if cfg.Radius.DefaultMiles == 0 {
		cfg.Radius.DefaultMiles = 25
	}
	if cfg.Radius.Debounce == 0 {
		cfg.Radius.Debounce = 300 * time.Millisecond
	}
	if cfg.Radius.FlyDuration == 0 {
		cfg.Radius.FlyDuration = 1500 * time.Millisecond
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// NewDefaultConfig returns a Config populated entirely with defaults plus a
// localhost backend, suitable for tests and local development.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Backend.BaseURL = "http://localhost:3001"
	ApplyDefaults(cfg)
	return cfg
}
