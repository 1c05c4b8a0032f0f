// Package config holds process-wide tunables, in lieu of a CLI
// (explicitly out of scope for this module). LogLevel and
// EnableMonitoring are read once at init from the environment; the
// other tunables are plain variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// LogLevelEnvKey selects the default logger's level: DEBUG, INFO,
	// WARN, or ERROR.
	LogLevelEnvKey = `HALO_CONFIG_LOG_LEVEL`

	// EnableMonitoringEnvKey turns on metrics collection.
	EnableMonitoringEnvKey = `HALO_CONFIG_ENABLE_MONITORING`
)

var (
	// LogLevel is the default logger's level name, read once at init.
	LogLevel = `INFO`

	// EnableMonitoring gates the metrics registry (see package metrics).
	EnableMonitoring = false
)

// ConnRetryCount and ConnRetryPeriod are retry tunables for a
// cross-rank transport's underlying dial. No package in this module
// reads them: the transports issue each send/recv once and report a
// failure as a TransportError without retrying.
var (
	ConnRetryCount  = 40
	ConnRetryPeriod = 500 * time.Millisecond
)

// BarrierTimeout is a timeout tunable for the messaging-library
// barrier. No package in this module reads it: Exchange calls
// Barrier without a timeout.
var BarrierTimeout = 60 * time.Second

func init() {
	if val, ok := os.LookupEnv(LogLevelEnvKey); ok {
		LogLevel = strings.ToUpper(val)
	}
	if val, ok := os.LookupEnv(EnableMonitoringEnvKey); ok {
		EnableMonitoring = isTrue(val)
	}
}

func isTrue(val string) bool {
	b, err := strconv.ParseBool(val)
	return err == nil && b
}
