package config

import (
	"github.com/spf13/viper"
)

// SetDefaults registers the baseline value of every setting on v.
func SetDefaults(v *viper.Viper) {
	// Gate
	v.SetDefault("gate.period", "second")
	v.SetDefault("gate.limit", 10)
	v.SetDefault("gate.max_wait", "0s")

	// Transport
	v.SetDefault("transport.endpoint", "https://ismp.crpt.ru/api/v3/lk/document/create")
	v.SetDefault("transport.timeout", "30s")
	v.SetDefault("transport.signature_header", "Signature")
	v.SetDefault("transport.user_agent", "")
	v.SetDefault("transport.trace_file", "")

	// Store
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	// Ledger
	v.SetDefault("ledger.enabled", true)
	v.SetDefault("ledger.retention", "720h")

	// Server
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_body_bytes", 1<<20)

	// Inbound throttle
	v.SetDefault("inbound.enabled", true)
	v.SetDefault("inbound.rate", 50.0)
	v.SetDefault("inbound.burst", 100)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	// Metrics
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health
	v.SetDefault("health.enabled", true)
}
