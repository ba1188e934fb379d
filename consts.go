package takarakuji

import "time"

const (
	// DefaultBaseURL is the official Mizuho Bank host serving draw result files
	DefaultBaseURL = "https://www.mizuhobank.co.jp"

	// DefaultUserAgent is sent with every provider request
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

	// DefaultFetchTimeout is the default timeout for a single provider request
	DefaultFetchTimeout = 10 * time.Second

	// DefaultFetchRetries is the default number of retries after a failed fetch.
	// A transient failure is attempted at most 1+DefaultFetchRetries times.
	DefaultFetchRetries = 2

	// DefaultRetryInterval is the default base interval between retry attempts
	DefaultRetryInterval = 100 * time.Millisecond

	// MaxFetchRetries is the maximum number of fetch retries allowed
	MaxFetchRetries = 10

	// DefaultLatestTTL is the freshness window for a cached "latest" draw
	DefaultLatestTTL = 10 * time.Minute

	// MinLatestTTL is the minimum freshness window allowed
	MinLatestTTL = 10 * time.Second

	// MaxLatestTTL is the maximum freshness window allowed
	MaxLatestTTL = 24 * time.Hour

	// SerialDigits is the number of digits printed in a traditional ticket serial
	SerialDigits = 6

	// MaxGroupNumber is the highest unit group printed on traditional tickets
	MaxGroupNumber = 999

	// MaxBatchTickets caps how many tickets one batch check may carry
	MaxBatchTickets = 100
)

const (
	// DefaultCircuitBreakerName is the default name for the provider circuit breaker
	DefaultCircuitBreakerName = "mizuho-fetch"

	// DefaultCircuitBreakerMaxRequests is the default max requests while half-open
	DefaultCircuitBreakerMaxRequests = 3

	// DefaultCircuitBreakerInterval is the default counting interval
	DefaultCircuitBreakerInterval = 60 * time.Second

	// DefaultCircuitBreakerTimeout is the default open-state timeout
	DefaultCircuitBreakerTimeout = 30 * time.Second

	// DefaultCircuitBreakerFailureRatio is the default failure ratio
	DefaultCircuitBreakerFailureRatio = 0.6

	// DefaultCircuitBreakerMinRequests is the default min requests before tripping
	DefaultCircuitBreakerMinRequests = 3

	// DefaultCircuitBreakerOnStateChange is the default for state change logging
	DefaultCircuitBreakerOnStateChange = true
)

const (
	DefaultRedisAddr         = "localhost:6379"
	DefaultRedisPassword     = ""
	DefaultRedisDB           = 0
	DefaultRedisPoolSize     = 50
	DefaultRedisMinIdleConns = 10
	DefaultRedisMaxRetries   = 3
	DefaultRedisDialTimeout  = 5 * time.Second
	DefaultRedisReadTimeout  = 3 * time.Second
	DefaultRedisWriteTimeout = 3 * time.Second
	DefaultRedisPoolTimeout  = 4 * time.Second
	DefaultRedisClusterMode  = false
	DefaultRedisTLSEnabled   = false
)

const (
	// DefaultServerAddr is the default listen address for the web server
	DefaultServerAddr = ":8080"

	// DefaultServerMode is the default gin mode
	DefaultServerMode = "release"

	// DefaultServerReadTimeout bounds how long reading a request may take
	DefaultServerReadTimeout = 10 * time.Second

	// DefaultServerWriteTimeout bounds how long writing a response may take
	DefaultServerWriteTimeout = 20 * time.Second

	// DefaultRateLimitRPS is the default per-client request rate
	DefaultRateLimitRPS = 5.0

	// DefaultRateLimitBurst is the default per-client burst allowance
	DefaultRateLimitBurst = 10
)

const (
	// HistoryKeyPrefix is the prefix for Redis search history keys
	HistoryKeyPrefix = "takarakuji:history:"

	// DefaultHistoryEnabled says whether check history is recorded
	DefaultHistoryEnabled = true

	// DefaultHistoryTTLDays is the default retention for search history records
	DefaultHistoryTTLDays = 30

	// DefaultHistoryKeep is the default length of the recent-searches list
	DefaultHistoryKeep = 200
)
