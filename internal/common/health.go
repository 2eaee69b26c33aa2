package common

import (
	"time"

	"go.uber.org/zap"
)

// Status is the outcome of a single health probe.
type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// Report is a point-in-time health snapshot. The engine is an embedded
// library, not a server (spec §6), so this carries no HTTP framing of
// its own; a caller's transport layer decides how (or whether) to
// expose it.
type Report struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Status    Status            `json:"status"`
	Uptime    time.Duration     `json:"uptime"`
	CheckedAt time.Time         `json:"checked_at"`
	Detail    map[string]Status `json:"detail,omitempty"`
}

// Checker reports Status for one subsystem (a symbol's engine, the
// repository's backing store, ...).
type Checker interface {
	Check() Status
}

// CheckerFunc adapts a plain function to Checker.
type CheckerFunc func() Status

func (f CheckerFunc) Check() Status { return f() }

// Reporter aggregates named Checkers into a single Report.
type Reporter struct {
	serviceName    string
	serviceVersion string
	logger         *zap.Logger
	startTime      time.Time
	checks         map[string]Checker
}

// NewReporter creates a health Reporter for serviceName/serviceVersion.
func NewReporter(serviceName, serviceVersion string, logger *zap.Logger) *Reporter {
	return &Reporter{
		serviceName:    serviceName,
		serviceVersion: serviceVersion,
		logger:         logger,
		startTime:      time.Now(),
		checks:         make(map[string]Checker),
	}
}

// Register adds a named Checker; subsequent Report calls include it.
func (r *Reporter) Register(name string, checker Checker) {
	r.checks[name] = checker
}

// Report runs every registered Checker and folds the worst observed
// status into the top-level Status (down beats degraded beats up).
func (r *Reporter) Report() Report {
	detail := make(map[string]Status, len(r.checks))
	overall := StatusUp

	for name, checker := range r.checks {
		s := checker.Check()
		detail[name] = s
		if s == StatusDown {
			overall = StatusDown
		} else if s == StatusDegraded && overall == StatusUp {
			overall = StatusDegraded
		}
	}

	rep := Report{
		Service:   r.serviceName,
		Version:   r.serviceVersion,
		Status:    overall,
		Uptime:    time.Since(r.startTime),
		CheckedAt: time.Now(),
		Detail:    detail,
	}

	if overall != StatusUp {
		r.logger.Warn("health check degraded",
			zap.String("service", r.serviceName),
			zap.String("status", string(overall)))
	}

	return rep
}
