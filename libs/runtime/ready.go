package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// ReadyCheck is a named dependency check for /readyz.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

type readyReport struct {
	Status   string            `json:"status"`
	Failures map[string]string `json:"failures,omitempty"`
}

// NewBaseMux registers /healthz and /readyz. Each check gets checkTimeout
// (2s when zero).
func NewBaseMux(checkTimeout time.Duration, checks ...ReadyCheck) *http.ServeMux {
	if checkTimeout <= 0 {
		checkTimeout = 2 * time.Second
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		report := readyReport{Status: "ok"}
		for _, check := range checks {
			if check.Check == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			err := check.Check(ctx)
			cancel()
			if err != nil {
				name := check.Name
				if name == "" {
					name = "dependency"
				}
				if report.Failures == nil {
					report.Failures = map[string]string{}
				}
				report.Failures[name] = err.Error()
			}
		}

		code := http.StatusOK
		if len(report.Failures) > 0 {
			report.Status = "unavailable"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(report)
	})
	return mux
}
