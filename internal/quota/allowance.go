package quota

import (
	"context"
	"fmt"
)

type UsageReader interface {
	UsedTokens(ctx context.Context, teamID string) (int64, error)
}

type PlanConfig struct {
	DefaultPlanTokens int64
	Teams             map[string]int64
}

type configAllowanceProvider struct {
	plans PlanConfig
	usage UsageReader
}

// NewConfigAllowanceProvider reads plan sizes from configuration and
// consumption from the usage store. A nil usage reader counts nothing as used.
func NewConfigAllowanceProvider(plans PlanConfig, usage UsageReader) AllowanceProvider {
	return &configAllowanceProvider{plans: plans, usage: usage}
}

func (p *configAllowanceProvider) Allowance(ctx context.Context, teamID string) (Allowance, error) {
	plan, ok := p.plans.Teams[teamID]
	if !ok {
		plan = p.plans.DefaultPlanTokens
	}
	a := Allowance{PlanTokens: plan}
	if p.usage == nil {
		return a, nil
	}
	used, err := p.usage.UsedTokens(ctx, teamID)
	if err != nil {
		return Allowance{}, fmt.Errorf("read token usage for team %s: %w", teamID, err)
	}
	a.UsedTokens = used
	return a, nil
}
