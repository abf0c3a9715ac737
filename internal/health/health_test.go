package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeChecker struct {
	status Status
}

func (f fakeChecker) CheckHealth(ctx context.Context) ComponentHealth {
	return ComponentHealth{Component: "fake", Status: f.status, LastChecked: time.Now()}
}

func TestRegistry_OverallIsWorstOfAllComponents(t *testing.T) {
	r := NewRegistry()
	r.Register("a", fakeChecker{status: StatusHealthy})
	r.Register("b", fakeChecker{status: StatusDegraded})

	report := r.Check(context.Background())
	assert.Equal(t, StatusDegraded, report.Overall)
	assert.Len(t, report.Components, 2)
}

func TestRegistry_DownOutranksDegraded(t *testing.T) {
	r := NewRegistry()
	r.Register("a", fakeChecker{status: StatusDegraded})
	r.Register("b", fakeChecker{status: StatusDown})

	report := r.Check(context.Background())
	assert.Equal(t, StatusDown, report.Overall)
}

func TestRegistry_AllHealthyIsHealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("a", fakeChecker{status: StatusHealthy})

	report := r.Check(context.Background())
	assert.Equal(t, StatusHealthy, report.Overall)
}

func TestRegistry_ReRegisterOverwrites(t *testing.T) {
	r := NewRegistry()
	r.Register("a", fakeChecker{status: StatusDown})
	r.Register("a", fakeChecker{status: StatusHealthy})

	report := r.Check(context.Background())
	assert.Equal(t, StatusHealthy, report.Overall)
	assert.Len(t, report.Components, 1)
}
