package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all engine configuration values.
type Config struct {
	ListenPort     int           // OPTIPLACE_LISTEN_PORT, default: 8090 — API server
	HealthPort     int           // OPTIPLACE_HEALTH_PORT, default: 8080
	APIKey         string        // OPTIPLACE_API_KEY, optional — enables bearer auth on the API when set
	RequestTimeout time.Duration // OPTIPLACE_REQUEST_TIMEOUT, default: 30s — per-request budget for plugin/provider calls

	// Result cache
	CacheMaxSize int           // OPTIPLACE_CACHE_MAX_SIZE, default: 1024
	CacheTTL     time.Duration // OPTIPLACE_CACHE_TTL, default: 5m

	// Scheduling
	MaxConcurrentShards int    // OPTIPLACE_MAX_CONCURRENT_SHARDS, default: 0 (GOMAXPROCS)
	DefaultProvider     string // OPTIPLACE_DEFAULT_PROVIDER, default: "" (auto-detect via IMDS)
	RegionsFile         string // OPTIPLACE_REGIONS_FILE, default: "" (compiled-in region table)

	// Scoring weights; must sum to 1.0 when geo-sharding is active.
	SpareCapacityWeight float64 // OPTIPLACE_SPARE_WEIGHT, default: 0.7
	GeoDistanceWeight   float64 // OPTIPLACE_GEO_WEIGHT, default: 0.3

	// Kubernetes adapter
	KubeAdapterEnabled bool   // OPTIPLACE_KUBE_ADAPTER_ENABLED, default: false
	KubeProviderName   string // OPTIPLACE_KUBE_PROVIDER_NAME, default: "edge"

	// Security / debug
	DebugEndpoints bool // OPTIPLACE_DEBUG_ENDPOINTS, default: false — enables pprof/debug on health port

	CloudDetectTimeout time.Duration // OPTIPLACE_CLOUD_DETECT_TIMEOUT, default: 2s
	EngineVersion      string
}

// Load reads configuration from environment variables and returns a Config
// with defaults applied for any unset values.
func Load() Config {
	cfg := Config{
		ListenPort:     parseInt("OPTIPLACE_LISTEN_PORT", 8090),
		HealthPort:     parseInt("OPTIPLACE_HEALTH_PORT", 8080),
		APIKey:         os.Getenv("OPTIPLACE_API_KEY"),
		RequestTimeout: parseDuration("OPTIPLACE_REQUEST_TIMEOUT", 30*time.Second),

		CacheMaxSize: parseInt("OPTIPLACE_CACHE_MAX_SIZE", 1024),
		CacheTTL:     parseDuration("OPTIPLACE_CACHE_TTL", 5*time.Minute),

		MaxConcurrentShards: parseInt("OPTIPLACE_MAX_CONCURRENT_SHARDS", 0),
		DefaultProvider:     os.Getenv("OPTIPLACE_DEFAULT_PROVIDER"),
		RegionsFile:         os.Getenv("OPTIPLACE_REGIONS_FILE"),

		SpareCapacityWeight: parseFloat("OPTIPLACE_SPARE_WEIGHT", 0.7),
		GeoDistanceWeight:   parseFloat("OPTIPLACE_GEO_WEIGHT", 0.3),

		KubeAdapterEnabled: parseBool("OPTIPLACE_KUBE_ADAPTER_ENABLED", false),
		KubeProviderName:   envOrDefault("OPTIPLACE_KUBE_PROVIDER_NAME", "edge"),

		DebugEndpoints: parseBool("OPTIPLACE_DEBUG_ENDPOINTS", false),

		CloudDetectTimeout: parseDuration("OPTIPLACE_CLOUD_DETECT_TIMEOUT", 2*time.Second),
		EngineVersion:      envOrDefault("OPTIPLACE_VERSION", "dev"),
	}

	return cfg
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func parseDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	// Accept both "30s" and bare seconds "30".
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}

func parseInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return defaultVal
}

func parseFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return defaultVal
}

func parseBool(key string, defaultVal bool) bool {
	v := strings.ToLower(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1" || v == "yes"
}
