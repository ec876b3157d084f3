package report

import (
	"context"
	"errors"

	"github.com/Sanjeet990/MarswaveHome/internal/device"
)

// Reporter matches the dispatcher's reporting contract.
type Reporter interface {
	ReportState(ctx context.Context, agentUserID string, states map[string]device.State) error
}

// Multi fans one report out to several reporters. Every reporter is
// invoked regardless of sibling failures; errors are joined.
type Multi struct {
	reporters []Reporter
}

// NewMulti creates a fan-out reporter. Nil entries are skipped, so
// callers can pass optional reporters unconditionally.
func NewMulti(reporters ...Reporter) *Multi {
	m := &Multi{}
	for _, r := range reporters {
		if r != nil {
			m.reporters = append(m.reporters, r)
		}
	}
	return m
}

// ReportState delivers to every configured reporter.
func (m *Multi) ReportState(ctx context.Context, agentUserID string, states map[string]device.State) error {
	var errs []error
	for _, r := range m.reporters {
		if err := r.ReportState(ctx, agentUserID, states); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
