package util

import (
	"time"

	"github.com/spf13/viper"
)

// Configuration keys with their built-in defaults. Values resolve through
// viper's precedence chain: flag, SOULSYNC_* environment variable, config file.
const (
	KeySlskdURL        = "slskd.url"
	KeySlskdAPIKey     = "slskd.api_key"
	KeyProviderURL     = "provider.url"
	KeyLibraryRoot     = "library.root"
	KeyDownloadDir     = "library.download_dir"
	KeyDatabasePath    = "db"
	KeyWorkerCount     = "workers"
	KeyPollActive      = "poll.active_interval"
	KeyPollIdle        = "poll.idle_interval"
	KeyGraceThreshold  = "poll.grace_threshold"
	KeyAcceptanceFloor = "match.acceptance_floor"
	KeyAllowUnmatched  = "match.allow_unmatched"
)

// GetWorkerCount returns the bounded worker pool size
func GetWorkerCount() int {
	if n := viper.GetInt(KeyWorkerCount); n > 0 {
		return n
	}
	return 4
}

// GetActivePollInterval returns the reconciliation interval while
// transfers are in flight
func GetActivePollInterval() time.Duration {
	if d := viper.GetDuration(KeyPollActive); d > 0 {
		return d
	}
	return time.Second
}

// GetIdlePollInterval returns the reconciliation interval when the
// queue is idle
func GetIdlePollInterval() time.Duration {
	if d := viper.GetDuration(KeyPollIdle); d > 0 {
		return d
	}
	return 5 * time.Second
}

// GetGraceThreshold returns how many consecutive missing polls are
// tolerated before a transfer is considered failed
func GetGraceThreshold() int {
	if n := viper.GetInt(KeyGraceThreshold); n > 0 {
		return n
	}
	return 3
}

// GetAcceptanceFloor returns the minimum confidence for unattended
// match acceptance
func GetAcceptanceFloor() float64 {
	if f := viper.GetFloat64(KeyAcceptanceFloor); f > 0 {
		return f
	}
	return 0.8
}

// GetAllowUnmatched returns whether downloads below the acceptance
// floor may still be organized from parsed filename fields
func GetAllowUnmatched() bool {
	return viper.GetBool(KeyAllowUnmatched)
}
