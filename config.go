package takarakuji

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	// Fetch controls provider access
	Fetch *FetchConfig `mapstructure:"fetch"`

	// Cache controls draw caching
	Cache *CacheConfig `mapstructure:"cache"`

	// Redis backs the check history store
	Redis *RedisConfig `mapstructure:"redis"`

	// CircuitBreaker guards provider fetches
	CircuitBreaker *CircuitBreakerConfig `mapstructure:"circuit_breaker"`

	// History controls check history recording
	History *HistoryConfig `mapstructure:"history"`

	// Server controls the web frontend
	Server *ServerConfig `mapstructure:"server"`
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Fetch.BaseURL == "" {
		return ErrConfigInvalid.WithDetails("fetch.base_url is required")
	}
	if c.Fetch.Timeout <= 0 {
		return ErrConfigInvalid.WithDetails("fetch.timeout must be positive")
	}
	if c.Fetch.RetryAttempts < 0 || c.Fetch.RetryAttempts > MaxFetchRetries {
		return ErrConfigInvalid.WithDetailsf("fetch.retry_attempts must be within 0-%d", MaxFetchRetries)
	}
	if c.Fetch.RetryInterval < 0 {
		return ErrConfigInvalid.WithDetails("fetch.retry_interval cannot be negative")
	}

	if c.Cache.LatestTTL < MinLatestTTL || c.Cache.LatestTTL > MaxLatestTTL {
		return ErrConfigInvalid.WithDetailsf("cache.latest_ttl must be within %s-%s", MinLatestTTL, MaxLatestTTL)
	}

	// Redis only matters while history recording is on.
	if c.History.Enabled {
		if c.Redis.Addr == "" {
			return ErrConfigInvalid.WithDetails("redis.addr is required while history is enabled")
		}
		if c.Redis.PoolSize <= 0 {
			return ErrConfigInvalid.WithDetails("redis.pool_size must be positive")
		}
		if c.History.Keep <= 0 {
			return ErrConfigInvalid.WithDetails("history.keep must be positive")
		}
		if c.History.TTLDays <= 0 {
			return ErrConfigInvalid.WithDetails("history.ttl_days must be positive")
		}
	}

	return nil
}

// FetchConfig controls provider access.
type FetchConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	UserAgent     string        `mapstructure:"user_agent"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// DefaultFetchConfig returns the provider defaults.
func DefaultFetchConfig() *FetchConfig {
	return &FetchConfig{
		BaseURL:       DefaultBaseURL,
		UserAgent:     DefaultUserAgent,
		Timeout:       DefaultFetchTimeout,
		RetryAttempts: DefaultFetchRetries,
		RetryInterval: DefaultRetryInterval,
	}
}

// CacheConfig controls draw caching.
type CacheConfig struct {
	LatestTTL time.Duration `mapstructure:"latest_ttl"`
}

// DefaultCacheConfig returns the cache defaults.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		LatestTTL: DefaultLatestTTL,
	}
}

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	// Connection
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// Pool
	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
	MaxRetries   int `mapstructure:"max_retries"`

	// Timeouts
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`

	// Cluster
	ClusterMode  bool     `mapstructure:"cluster_mode"`
	ClusterAddrs []string `mapstructure:"cluster_addrs"`

	// TLS
	TLSEnabled bool   `mapstructure:"tls_enabled"`
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
	CAFile     string `mapstructure:"ca_file"`
}

// DefaultRedisConfig returns the Redis defaults.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         DefaultRedisAddr,
		Password:     DefaultRedisPassword,
		DB:           DefaultRedisDB,
		PoolSize:     DefaultRedisPoolSize,
		MinIdleConns: DefaultRedisMinIdleConns,
		MaxRetries:   DefaultRedisMaxRetries,
		DialTimeout:  DefaultRedisDialTimeout,
		ReadTimeout:  DefaultRedisReadTimeout,
		WriteTimeout: DefaultRedisWriteTimeout,
		PoolTimeout:  DefaultRedisPoolTimeout,
		ClusterMode:  DefaultRedisClusterMode,
		TLSEnabled:   DefaultRedisTLSEnabled,
	}
}

// CircuitBreakerConfig configures the provider circuit breaker.
type CircuitBreakerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Name          string        `mapstructure:"name"`
	MaxRequests   uint32        `mapstructure:"max_requests"`
	Interval      time.Duration `mapstructure:"interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
	FailureRatio  float64       `mapstructure:"failure_ratio"`
	MinRequests   uint32        `mapstructure:"min_requests"`
	OnStateChange bool          `mapstructure:"on_state_change"`
}

// DefaultCircuitBreakerConfig returns the breaker defaults.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Enabled:       true,
		Name:          DefaultCircuitBreakerName,
		MaxRequests:   DefaultCircuitBreakerMaxRequests,
		Interval:      DefaultCircuitBreakerInterval,
		Timeout:       DefaultCircuitBreakerTimeout,
		FailureRatio:  DefaultCircuitBreakerFailureRatio,
		MinRequests:   DefaultCircuitBreakerMinRequests,
		OnStateChange: DefaultCircuitBreakerOnStateChange,
	}
}

// HistoryConfig controls check history recording.
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Keep    int  `mapstructure:"keep"`
	TTLDays int  `mapstructure:"ttl_days"`
}

// DefaultHistoryConfig returns the history defaults.
func DefaultHistoryConfig() *HistoryConfig {
	return &HistoryConfig{
		Enabled: DefaultHistoryEnabled,
		Keep:    DefaultHistoryKeep,
		TTLDays: DefaultHistoryTTLDays,
	}
}

// ServerConfig configures the web frontend.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	Mode           string        `mapstructure:"mode"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AdminUser      string        `mapstructure:"admin_user"`
	AdminPassword  string        `mapstructure:"admin_password"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// DefaultServerConfig returns the web server defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:           DefaultServerAddr,
		Mode:           DefaultServerMode,
		ReadTimeout:    DefaultServerReadTimeout,
		WriteTimeout:   DefaultServerWriteTimeout,
		RateLimitRPS:   DefaultRateLimitRPS,
		RateLimitBurst: DefaultRateLimitBurst,
	}
}

// DefaultConfig returns the full default configuration.
func DefaultConfig() *Config {
	return &Config{
		Fetch:          DefaultFetchConfig(),
		Cache:          DefaultCacheConfig(),
		Redis:          DefaultRedisConfig(),
		CircuitBreaker: DefaultCircuitBreakerConfig(),
		History:        DefaultHistoryConfig(),
		Server:         DefaultServerConfig(),
	}
}

// ConfigManager loads, watches and hands out configuration.
type ConfigManager struct {
	viper  *viper.Viper
	config *Config
}

// NewConfigManager creates a config manager. Configuration is read from
// takarakuji.yaml in the usual locations, with TAKARA_* environment
// variables taking precedence.
func NewConfigManager() *ConfigManager {
	v := viper.New()

	v.SetConfigName("takarakuji")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/takarakuji")
	v.AddConfigPath("$HOME/.takarakuji")

	v.SetEnvPrefix("TAKARA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &ConfigManager{
		viper: v,
	}
}

// LoadConfig loads and validates the configuration. A missing config file
// is fine; defaults and environment variables still apply.
func (cm *ConfigManager) LoadConfig() (*Config, error) {
	cm.setDefaults()

	if err := cm.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := &Config{}
	if err := cm.viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cm.validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cm.config = config
	return config, nil
}

// setDefaults registers the default configuration values.
func (cm *ConfigManager) setDefaults() {
	// Provider defaults
	cm.viper.SetDefault("fetch.base_url", DefaultBaseURL)
	cm.viper.SetDefault("fetch.user_agent", DefaultUserAgent)
	cm.viper.SetDefault("fetch.timeout", DefaultFetchTimeout.String())
	cm.viper.SetDefault("fetch.retry_attempts", DefaultFetchRetries)
	cm.viper.SetDefault("fetch.retry_interval", DefaultRetryInterval.String())

	// Cache defaults
	cm.viper.SetDefault("cache.latest_ttl", DefaultLatestTTL.String())

	// Redis defaults
	cm.viper.SetDefault("redis.addr", DefaultRedisAddr)
	cm.viper.SetDefault("redis.password", DefaultRedisPassword)
	cm.viper.SetDefault("redis.db", DefaultRedisDB)
	cm.viper.SetDefault("redis.pool_size", DefaultRedisPoolSize)
	cm.viper.SetDefault("redis.min_idle_conns", DefaultRedisMinIdleConns)
	cm.viper.SetDefault("redis.max_retries", DefaultRedisMaxRetries)
	cm.viper.SetDefault("redis.dial_timeout", DefaultRedisDialTimeout.String())
	cm.viper.SetDefault("redis.read_timeout", DefaultRedisReadTimeout.String())
	cm.viper.SetDefault("redis.write_timeout", DefaultRedisWriteTimeout.String())
	cm.viper.SetDefault("redis.pool_timeout", DefaultRedisPoolTimeout.String())
	cm.viper.SetDefault("redis.cluster_mode", DefaultRedisClusterMode)
	cm.viper.SetDefault("redis.tls_enabled", DefaultRedisTLSEnabled)

	// Circuit breaker defaults
	cm.viper.SetDefault("circuit_breaker.enabled", true)
	cm.viper.SetDefault("circuit_breaker.name", DefaultCircuitBreakerName)
	cm.viper.SetDefault("circuit_breaker.max_requests", DefaultCircuitBreakerMaxRequests)
	cm.viper.SetDefault("circuit_breaker.interval", DefaultCircuitBreakerInterval.String())
	cm.viper.SetDefault("circuit_breaker.timeout", DefaultCircuitBreakerTimeout.String())
	cm.viper.SetDefault("circuit_breaker.failure_ratio", DefaultCircuitBreakerFailureRatio)
	cm.viper.SetDefault("circuit_breaker.min_requests", DefaultCircuitBreakerMinRequests)
	cm.viper.SetDefault("circuit_breaker.on_state_change", DefaultCircuitBreakerOnStateChange)

	// History defaults
	cm.viper.SetDefault("history.enabled", DefaultHistoryEnabled)
	cm.viper.SetDefault("history.keep", DefaultHistoryKeep)
	cm.viper.SetDefault("history.ttl_days", DefaultHistoryTTLDays)

	// Server defaults
	cm.viper.SetDefault("server.addr", DefaultServerAddr)
	cm.viper.SetDefault("server.mode", DefaultServerMode)
	cm.viper.SetDefault("server.read_timeout", DefaultServerReadTimeout.String())
	cm.viper.SetDefault("server.write_timeout", DefaultServerWriteTimeout.String())
	cm.viper.SetDefault("server.admin_user", "")
	cm.viper.SetDefault("server.admin_password", "")
	cm.viper.SetDefault("server.rate_limit_rps", DefaultRateLimitRPS)
	cm.viper.SetDefault("server.rate_limit_burst", DefaultRateLimitBurst)
}

// validateConfig validates a loaded configuration.
func (cm *ConfigManager) validateConfig(config *Config) error { return config.Validate() }

// WatchConfig reloads the configuration when the file changes on disk.
func (cm *ConfigManager) WatchConfig(callback func(*Config)) error {
	cm.viper.WatchConfig()
	cm.viper.OnConfigChange(func(e fsnotify.Event) {
		config := &Config{}
		if err := cm.viper.Unmarshal(config); err != nil {
			// Keep serving the previous config on a broken edit.
			return
		}

		if err := cm.validateConfig(config); err != nil {
			return
		}

		cm.config = config
		if callback != nil {
			callback(config)
		}
	})

	return nil
}

// GetConfig returns the most recently loaded configuration.
func (cm *ConfigManager) GetConfig() *Config { return cm.config }

// ReloadConfig reloads the configuration from disk.
func (cm *ConfigManager) ReloadConfig() (*Config, error) { return cm.LoadConfig() }

// NewDefaultConfigManager creates a manager preloaded with defaults,
// for callers that never touch a config file.
func NewDefaultConfigManager() *ConfigManager {
	cm := NewConfigManager()
	cm.setDefaults()
	cm.config = DefaultConfig()
	return cm
}

// NewRedisClient creates a Redis client with default settings.
func NewRedisClient() *redis.Client {
	return NewRedisClientFromConfig(DefaultRedisConfig())
}

// NewRedisClientFromConfig creates a Redis client from config.
func NewRedisClientFromConfig(config *RedisConfig) *redis.Client {
	if config == nil {
		config = DefaultRedisConfig()
	}

	return redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		PoolTimeout:  config.PoolTimeout,
	})
}
