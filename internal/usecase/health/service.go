package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure. Queries may still be answered.
	Degraded Status = "degraded"
	// Unhealthy indicates the vector store is down and no query can be answered.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	store    StorePinger
	optional map[string]Checker
}

// New creates a Service. Nil checkers are skipped.
func New(store StorePinger, registry, embedding, llm Checker) *Service {
	optional := make(map[string]Checker, 3)
	for name, c := range map[string]Checker{"registry": registry, "embedding": embedding, "llm": llm} {
		if c != nil {
			optional[name] = c
		}
	}
	return &Service{store: store, optional: optional}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.optional)+1)

	status := Healthy
	if err := s.store.Ping(ctx); err != nil {
		checks["vector_store"] = CheckError
		status = Unhealthy
	} else {
		checks["vector_store"] = CheckOK
	}

	for name, c := range s.optional {
		if err := c.HealthCheck(ctx); err != nil {
			checks[name] = CheckError
			if status == Healthy {
				status = Degraded
			}
			continue
		}
		checks[name] = CheckOK
	}

	return Report{Status: status, Checks: checks}
}
