package httpx

import (
	"net/http"

	"golang.org/x/time/rate"
)

// Throttle paces outbound requests with a token bucket so a burst of UI
// refreshes does not run straight into the API's rate limit.
func Throttle(limiter *rate.Limiter) TransportMiddleware {
	return func(next http.RoundTripper) http.RoundTripper {
		if limiter == nil {
			return next
		}
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if err := limiter.Wait(r.Context()); err != nil {
				return nil, err
			}
			return next.RoundTrip(r)
		})
	}
}

// NewLimiter builds a limiter allowing perSecond requests with the given burst.
// perSecond <= 0 disables pacing.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
