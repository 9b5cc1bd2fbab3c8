package checks

import (
	"context"
	"time"

	"github.com/verimem/sentinel/internal/probe"
)

// placeholderCheck is a registered check whose body is not implemented yet.
// It emits a fixed pass so scheduling, persistence, and reporting exercise
// the full pipeline for its ID.
type placeholderCheck struct {
	id          string
	description string
}

func newPlaceholder(id, description string) func(*probe.Client, Options) Check {
	return func(*probe.Client, Options) Check {
		return &placeholderCheck{id: id, description: description}
	}
}

func (p *placeholderCheck) ID() string          { return p.id }
func (p *placeholderCheck) Description() string { return p.description }

func (p *placeholderCheck) Run(ctx context.Context) Result {
	start := time.Now()
	return NewResult(p.id, StatusPass,
		float64(time.Since(start).Microseconds())/1000.0,
		"placeholder check, reporting pass",
		map[string]any{"placeholder": true})
}
