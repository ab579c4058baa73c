package scorer

import (
	"context"
	"fmt"

	"github.com/ayushsreejith06/max/internal/model"
)

// TradeCheck is the trade a RulesChecker validates.
type TradeCheck struct {
	Action   model.ActionType
	Symbol   string
	Quantity float64
	Amount   float64
}

// RuleResult is the outcome of ValidateTrade.
type RuleResult struct {
	Valid  bool
	Errors []string
}

// RulesChecker enforces sector trading rules. An error means the checker
// itself failed, not that the trade broke a rule.
type RulesChecker interface {
	ValidateTrade(ctx context.Context, sector *model.Sector, trade TradeCheck) (RuleResult, error)
	CheckRiskAppetite(ctx context.Context, sector *model.Sector, risk float64) (bool, error)
}

// SectorRules checks trades against the sector's own limits.
type SectorRules struct{}

var _ RulesChecker = SectorRules{}

// ValidateTrade implements RulesChecker.
func (SectorRules) ValidateTrade(_ context.Context, sector *model.Sector, trade TradeCheck) (RuleResult, error) {
	if sector == nil {
		return RuleResult{}, fmt.Errorf("validate trade: nil sector")
	}
	var errs []string
	if !trade.Action.IsValid() {
		errs = append(errs, fmt.Sprintf("unknown action %q", trade.Action))
	}
	if !sector.AllowsSymbol(trade.Symbol) {
		errs = append(errs, fmt.Sprintf("symbol %q is not allowed in sector %s", trade.Symbol, sector.Name))
	}
	if trade.Amount < 0 {
		errs = append(errs, "amount must not be negative")
	}
	if sector.MaxTradeAmount > 0 && trade.Amount > sector.MaxTradeAmount {
		errs = append(errs, fmt.Sprintf("amount %.2f exceeds max trade amount %.2f", trade.Amount, sector.MaxTradeAmount))
	}
	return RuleResult{Valid: len(errs) == 0, Errors: errs}, nil
}

// CheckRiskAppetite implements RulesChecker. A zero appetite means no limit.
func (SectorRules) CheckRiskAppetite(_ context.Context, sector *model.Sector, risk float64) (bool, error) {
	if sector == nil {
		return false, fmt.Errorf("check risk appetite: nil sector")
	}
	if sector.RiskAppetite <= 0 {
		return true, nil
	}
	return risk <= sector.RiskAppetite, nil
}
