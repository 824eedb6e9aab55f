package domain

import "fmt"

// InvalidPortfolioError reports a portfolio that violates the engine's
// preconditions (non-positive total value). It is a usage error, not a
// transient failure - callers must not proceed with the portfolio.
type InvalidPortfolioError struct {
	PortfolioID string
	TotalValue  float64
}

func (e *InvalidPortfolioError) Error() string {
	return fmt.Sprintf("invalid portfolio %s: total value must be positive, got %v", e.PortfolioID, e.TotalValue)
}

// InvalidScenarioError reports a stress-test call with no scenarios.
// At least one scenario is required.
type InvalidScenarioError struct {
	Reason string
}

func (e *InvalidScenarioError) Error() string {
	return fmt.Sprintf("invalid stress scenario input: %s", e.Reason)
}
