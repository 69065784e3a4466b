package navigation

import "errors"

var (
	ErrAlreadyNavigating      = errors.New("navigation session already active")
	ErrTermsNotAccepted       = errors.New("routing terms not accepted")
	ErrNavigatorUnavailable   = errors.New("navigator unavailable")
	ErrInvalidDestination     = errors.New("invalid destination")
	ErrNoRouteFound           = errors.New("no route found")
	ErrNetwork                = errors.New("network error")
	ErrQuotaExceeded          = errors.New("routing quota exceeded")
	ErrAPIKeyNotAuthorized    = errors.New("routing api key not authorized")
	ErrLocationUnavailable    = errors.New("location unavailable")
	ErrRouteCalculationFailed = errors.New("route calculation failed")
	ErrStartCancelled         = errors.New("navigation stopped while starting")
)

var routeErrors = []error{
	ErrNoRouteFound,
	ErrNetwork,
	ErrQuotaExceeded,
	ErrAPIKeyNotAuthorized,
	ErrLocationUnavailable,
	ErrRouteCalculationFailed,
}
