package config

import "time"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Media:     DefaultMediaConfig(),
		Summary:   DefaultSummaryConfig(),
		Transfer:  DefaultTransferConfig(),
		Redis:     DefaultRedisConfig(),
		History:   DefaultHistoryConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig returns the default HTTP server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultMediaConfig returns the default media provider configuration.
func DefaultMediaConfig() MediaConfig {
	return MediaConfig{
		URL:            "ws://localhost:7880",
		TokenTTL:       6 * time.Hour,
		ConnectTimeout: 10 * time.Second,
		IssueRPS:       50,
		IssueBurst:     100,
	}
}

// DefaultSummaryConfig returns the default summary producer configuration.
func DefaultSummaryConfig() SummaryConfig {
	return SummaryConfig{
		Mode:    "heuristic",
		Timeout: 10 * time.Second,
	}
}

// DefaultTransferConfig returns the default orchestration timings.
func DefaultTransferConfig() TransferConfig {
	return TransferConfig{
		SpeakDelay:      2 * time.Second,
		SettleDelay:     3 * time.Second,
		RelocateTimeout: 15 * time.Second,
	}
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     "localhost:6379",
		DB:       0,
		PoolSize: 10,
	}
}

// DefaultHistoryConfig returns the default history archive configuration.
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Enabled: false,
		Path:    "warmline-history.db",
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "json",
		OutputPaths:  []string{"stdout"},
		EnableCaller: true,
	}
}

// DefaultTelemetryConfig returns the default telemetry configuration.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "warmline",
		SampleRate:   1.0,
	}
}
