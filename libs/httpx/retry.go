package httpx

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

var errRateLimited = errors.New("rate limited")

// RetryPolicy bounds retries of rate-limited (429) responses. Every other
// status and every transport error is returned to the caller untouched.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// OnRetry is called before each retry wait.
	OnRetry func(attempt int, wait time.Duration)
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	return b
}

// RetryRateLimited retries 429 responses with exponential backoff, honouring
// Retry-After when the API sends one. When retries are exhausted the last 429
// response is returned as-is.
func RetryRateLimited(p RetryPolicy) TransportMiddleware {
	return func(next http.RoundTripper) http.RoundTripper {
		if p.MaxRetries <= 0 {
			return next
		}
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			attempt := 0
			op := func() (*http.Response, error) {
				attempt++
				r, err := replayable(req, attempt)
				if err != nil {
					return nil, backoff.Permanent(err)
				}
				resp, err := next.RoundTrip(r)
				if err != nil {
					return nil, backoff.Permanent(err)
				}
				if resp.StatusCode != http.StatusTooManyRequests || attempt > p.MaxRetries {
					return resp, nil
				}
				wait := retryAfter(resp)
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()
				if wait > 0 {
					return nil, backoff.RetryAfter(int(wait / time.Second))
				}
				return nil, errRateLimited
			}
			return backoff.Retry(req.Context(), op,
				backoff.WithBackOff(p.backOff()),
				backoff.WithMaxTries(uint(p.MaxRetries+1)),
				backoff.WithNotify(func(_ error, d time.Duration) {
					if p.OnRetry != nil {
						p.OnRetry(attempt, d)
					}
				}),
			)
		})
	}
}

func replayable(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 1 || req.Body == nil || req.Body == http.NoBody {
		return req, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	r := req.Clone(req.Context())
	r.Body = body
	return r, nil
}

func retryAfter(resp *http.Response) time.Duration {
	raw := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > time.Second {
			return d.Truncate(time.Second)
		}
	}
	return 0
}
