package loans

import "math/big"

// Reason explains why a loan is liquidatable.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonMatured             Reason = "matured"
	ReasonUndercollateralized Reason = "undercollateralized"
)

// Policy is the liquidation predicate. It holds no state and is safe to
// evaluate as often as needed.
type Policy struct {
	LiquidationRatioBps uint64
	GracePeriodSeconds  uint64
}

// PolicyFromParams extracts the liquidation policy from module params.
func PolicyFromParams(p Params) Policy {
	return Policy{LiquidationRatioBps: p.LiquidationRatioBps, GracePeriodSeconds: p.GracePeriodSeconds}
}

// MaturesAt returns the first instant a loan becomes liquidatable by time.
func (p Policy) MaturesAt(loan *Loan) uint64 {
	return saturatingAdd(saturatingAdd(loan.StartedAt, loan.Terms.Duration), p.GracePeriodSeconds)
}

// Evaluate reports whether loan may be liquidated at now given the current
// valuation of its collateral.
func (p Policy) Evaluate(now uint64, loan *Loan, valuation *big.Int) (bool, Reason) {
	if loan == nil || loan.State != StateActive {
		return false, ReasonNone
	}
	if loan.Terms.PriceLiquidation && p.undercollateralized(now, loan, valuation) {
		return true, ReasonUndercollateralized
	}
	if now >= p.MaturesAt(loan) {
		return true, ReasonMatured
	}
	return false, ReasonNone
}

// undercollateralized reports valuation * ratio <= debt, compared in basis
// points so no precision is lost.
func (p Policy) undercollateralized(now uint64, loan *Loan, valuation *big.Int) bool {
	if valuation == nil {
		valuation = big.NewInt(0)
	}
	lhs := new(big.Int).Mul(valuation, new(big.Int).SetUint64(p.LiquidationRatioBps))
	rhs := new(big.Int).Mul(loan.Debt(now), bigDenominator)
	return lhs.Cmp(rhs) <= 0
}

func saturatingAdd(a, b uint64) uint64 {
	if a > ^uint64(0)-b {
		return ^uint64(0)
	}
	return a + b
}
