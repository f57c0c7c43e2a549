package loans

import "math/big"

var (
	bigDenominator    = big.NewInt(Denominator)
	bigSecondsPerYear = big.NewInt(SecondsPerYear)
)

// InterestOwed returns balance * rate * elapsed / (Denominator * SecondsPerYear),
// rounded down to the currency base unit.
func InterestOwed(balance *big.Int, rateBps, elapsed uint64) *big.Int {
	if balance == nil || balance.Sign() <= 0 || rateBps == 0 || elapsed == 0 {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(balance, new(big.Int).SetUint64(rateBps))
	num.Mul(num, new(big.Int).SetUint64(elapsed))
	den := new(big.Int).Mul(bigDenominator, bigSecondsPerYear)
	return num.Quo(num, den)
}

// pendingInterest is the interest owed at now without mutating the loan.
func (l *Loan) pendingInterest(now uint64) *big.Int {
	total := amountOrZero(l.InterestAccrued)
	if now <= l.UpdatedAt {
		return total
	}
	return total.Add(total, InterestOwed(l.Balance, l.Terms.InterestRate, now-l.UpdatedAt))
}

// Debt returns balance plus all interest owed at now.
func (l *Loan) Debt(now uint64) *big.Int {
	debt := amountOrZero(l.Balance)
	return debt.Add(debt, l.pendingInterest(now))
}

// accrue moves interest earned since the checkpoint into InterestAccrued and
// advances the checkpoint. Calling it twice at the same instant is a no-op.
func (l *Loan) accrue(now uint64) {
	if now <= l.UpdatedAt {
		return
	}
	l.InterestAccrued = l.pendingInterest(now)
	l.UpdatedAt = now
}
