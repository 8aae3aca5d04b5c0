package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// TransportMiddleware decorates an outbound round tripper, the client-side
// counterpart of Middleware.
type TransportMiddleware func(http.RoundTripper) http.RoundTripper

type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// ChainTransport applies m so that ChainTransport(base, a, b) sends through a, then b, then base.
func ChainTransport(base http.RoundTripper, m ...TransportMiddleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	for i := len(m) - 1; i >= 0; i-- {
		base = m[i](base)
	}
	return base
}

// Outbound assembles the API client's round tripper. Retries wrap the
// limiter so every 429 retry waits for a token like a fresh request.
func Outbound(base http.RoundTripper, logger *slog.Logger, limiter *rate.Limiter, retry RetryPolicy) http.RoundTripper {
	return ChainTransport(base,
		PropagateRequestID,
		RetryRateLimited(retry),
		Throttle(limiter),
		LoggingTransport(logger),
	)
}

// PropagateRequestID stamps outbound calls with the inbound request id (or a new one).
func PropagateRequestID(next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if r.Header.Get(RequestIDHeader) != "" {
			return next.RoundTrip(r)
		}
		id := RequestIDFromContext(r.Context())
		if id == "" {
			id = NewRequestID()
		}
		r = r.Clone(r.Context())
		r.Header.Set(RequestIDHeader, id)
		return next.RoundTrip(r)
	})
}

// LoggingTransport logs each outbound attempt. Query strings are dropped so
// customer data never reaches the log.
func LoggingTransport(logger *slog.Logger) TransportMiddleware {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(r)
			attrs := []any{
				"request_id", r.Header.Get(RequestIDHeader),
				"method", r.Method,
				"path", r.URL.Path,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if err != nil {
				logger.Warn("api request failed", append(attrs, "err", err)...)
				return nil, err
			}
			logger.Debug("api request", append(attrs, "status", resp.StatusCode)...)
			return resp, nil
		})
	}
}
