package config

import "time"

// DefaultConfig returns a Config with every required field filled in for a
// local initiator session against an in-memory store — enough to run
// `fixengine start` with no config file present.
func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
		Session: SessionConfig{
			BeginString:    "FIX.4.4",
			SenderCompID:   "SENDER",
			TargetCompID:   "TARGET",
			ConnectionType: "initiator",
		},
		Store: StoreConfig{
			MessageStoreType: "memory",
		},
	}
}

// ApplyDefaults fills any zero-valued optional field that Load's Unmarshal
// left unset. Required fields are left to Validate to reject.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applySessionDefaults(&cfg.Session)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applySessionDefaults(cfg *SessionConfig) {
	if cfg.HeartBtInt == 0 {
		cfg.HeartBtInt = 30 * time.Second
	}
	if cfg.LogonTimeout == 0 {
		cfg.LogonTimeout = 30 * time.Second
	}
	if cfg.LogoutTimeout == 0 {
		cfg.LogoutTimeout = 10 * time.Second
	}
	if cfg.ReconnectInterval == 0 {
		cfg.ReconnectInterval = time.Second
	}
	if cfg.ReconnectMaxAttempts == 0 {
		cfg.ReconnectMaxAttempts = 10
	}
}
