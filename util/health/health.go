// Package health aggregates dependency checks into a single HTTP-style status and JSON report.
package health

import (
	"context"
	"fmt"
	"net/http"

	jsoniter "github.com/json-iterator/go"
)

// Check is a named dependency probe. The bool argument selects a liveness check (cheap,
// local state only) over a readiness check (may call out to dependencies).
type Check struct {
	Name  string
	Check func(ctx context.Context, checkLiveness bool) (int, string, error)
}

type dependency struct {
	Resource string `json:"resource"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Message  string `json:"message,omitempty"`
}

type report struct {
	Status       string       `json:"status"`
	Dependencies []dependency `json:"dependencies"`
}

// CheckAll runs every check in order and returns http.StatusOK only when all of them pass.
func CheckAll(ctx context.Context, checkLiveness bool, checks []Check) (int, string, error) {
	r := report{
		Dependencies: make([]dependency, 0, len(checks)),
	}

	overallStatus := http.StatusOK

	for _, check := range checks {
		status, message, err := check.Check(ctx, checkLiveness)
		if err != nil || status != http.StatusOK {
			overallStatus = http.StatusServiceUnavailable
		}

		dep := dependency{
			Resource: check.Name,
			Status:   fmt.Sprintf("%d", status),
			Message:  message,
		}

		if err != nil {
			dep.Error = err.Error()
		}

		r.Dependencies = append(r.Dependencies, dep)
	}

	r.Status = fmt.Sprintf("%d", overallStatus)

	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(r)
	if err != nil {
		return http.StatusInternalServerError, "", err
	}

	return overallStatus, string(b), nil
}
