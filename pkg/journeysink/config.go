package journeysink

import (
	"time"

	"github.com/varunjain2021/guido-1-sub002/pkg/util"
)

const defaultTable = "navigation_journeys"
const defaultMaxAttempts = 3
const defaultBaseDelay = 500 * time.Millisecond
const defaultRequestTimeout = 15 * time.Second

type RESTConfig struct {
	// BaseURL points at the REST root, eg https://project.supabase.co/rest/v1
	BaseURL string
	APIKey  string
	Table   string

	// MaxAttempts is the total number of tries for a transport failure
	MaxAttempts int
	// BaseDelay doubles after every failed attempt
	BaseDelay      time.Duration
	RequestTimeout time.Duration

	// OptimisticConcurrency guards the fetch-merge-replace fallback with a
	// version column check. Off by default.
	OptimisticConcurrency bool
}

func GetRESTConfig() RESTConfig {
	env := util.GetEnvironmentVariables()

	config := RESTConfig{
		BaseURL:               env["GUIDO_JOURNEY_API_URL"],
		APIKey:                env["GUIDO_JOURNEY_API_KEY"],
		Table:                 defaultTable,
		MaxAttempts:           util.EnvironmentInt("GUIDO_SINK_MAX_ATTEMPTS", defaultMaxAttempts),
		BaseDelay:             util.EnvironmentDuration("GUIDO_SINK_BASE_DELAY", defaultBaseDelay),
		RequestTimeout:        util.EnvironmentDuration("GUIDO_SINK_REQUEST_TIMEOUT", defaultRequestTimeout),
		OptimisticConcurrency: util.EnvironmentBool("GUIDO_SINK_OPTIMISTIC_CONCURRENCY", false),
	}

	if env["GUIDO_JOURNEY_TABLE"] != "" {
		config.Table = env["GUIDO_JOURNEY_TABLE"]
	}

	return config
}

func (c RESTConfig) withDefaults() RESTConfig {
	if c.Table == "" {
		c.Table = defaultTable
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}

	return c
}
