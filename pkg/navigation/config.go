package navigation

import (
	"time"

	"github.com/varunjain2021/guido-1-sub002/pkg/util"
)

type Config struct {
	// Minimum gap between two announcements of the same step
	DebounceInterval time.Duration
	// Gap after which the current step is repeated regardless of stage
	ReminderInterval time.Duration

	// Route change callbacks this soon after start are engine noise
	InitialRouteGrace        time.Duration
	RerouteMinDistanceMeters int
	RerouteMinTimeSeconds    int
	StationarySpeedMps       float64
	RerouteRevertDelay       time.Duration

	BreadcrumbBatchSize     int
	BreadcrumbFlushInterval time.Duration
}

var defaultConfig = Config{
	DebounceInterval: 5 * time.Second,
	ReminderInterval: 300 * time.Second,

	InitialRouteGrace:        2 * time.Second,
	RerouteMinDistanceMeters: 100,
	RerouteMinTimeSeconds:    30,
	StationarySpeedMps:       0.5,
	RerouteRevertDelay:       1 * time.Second,

	BreadcrumbBatchSize:     10,
	BreadcrumbFlushInterval: 30 * time.Second,
}

func DefaultConfig() Config {
	return defaultConfig
}

// GetConfig returns the navigation configuration from environment variables or defaults
func GetConfig() Config {
	config := defaultConfig

	config.DebounceInterval = util.EnvironmentDuration("GUIDO_NAV_DEBOUNCE", config.DebounceInterval)
	config.ReminderInterval = util.EnvironmentDuration("GUIDO_NAV_REMINDER_INTERVAL", config.ReminderInterval)

	config.RerouteMinDistanceMeters = util.EnvironmentInt("GUIDO_NAV_REROUTE_MIN_DISTANCE_METERS", config.RerouteMinDistanceMeters)
	config.RerouteMinTimeSeconds = util.EnvironmentInt("GUIDO_NAV_REROUTE_MIN_TIME_SECONDS", config.RerouteMinTimeSeconds)
	config.StationarySpeedMps = util.EnvironmentFloat("GUIDO_NAV_STATIONARY_SPEED_MPS", config.StationarySpeedMps)

	config.BreadcrumbBatchSize = util.EnvironmentInt("GUIDO_NAV_BREADCRUMB_BATCH_SIZE", config.BreadcrumbBatchSize)
	config.BreadcrumbFlushInterval = util.EnvironmentDuration("GUIDO_NAV_BREADCRUMB_FLUSH_INTERVAL", config.BreadcrumbFlushInterval)

	if config.BreadcrumbBatchSize < 1 {
		config.BreadcrumbBatchSize = defaultConfig.BreadcrumbBatchSize
	}
	if config.BreadcrumbFlushInterval <= 0 {
		config.BreadcrumbFlushInterval = defaultConfig.BreadcrumbFlushInterval
	}

	return config
}
