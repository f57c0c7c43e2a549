package loans

import (
	"math/big"
	"testing"
)

func TestInterestOwedFloorsToBaseUnit(t *testing.T) {
	cases := []struct {
		name    string
		balance int64
		rate    uint64
		elapsed uint64
		want    int64
	}{
		{name: "zero balance", balance: 0, rate: 500, elapsed: SecondsPerYear, want: 0},
		{name: "zero rate", balance: 1_000, rate: 0, elapsed: SecondsPerYear, want: 0},
		{name: "full year", balance: 1_000_000, rate: 500, elapsed: SecondsPerYear, want: 50_000},
		{name: "rounds down", balance: 10, rate: 500, elapsed: 5 * 24 * 60 * 60, want: 0},
		{name: "half year", balance: 2_000, rate: 1_000, elapsed: SecondsPerYear / 2, want: 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := InterestOwed(big.NewInt(tc.balance), tc.rate, tc.elapsed)
			if got.Cmp(big.NewInt(tc.want)) != 0 {
				t.Fatalf("expected %d, got %s", tc.want, got)
			}
		})
	}
}

func TestAccrueIsIdempotentWithinAnInstant(t *testing.T) {
	loan := &Loan{
		State:           StateActive,
		Terms:           LoanTerms{InterestRate: 500, LoanAmount: big.NewInt(1_000_000)},
		Balance:         big.NewInt(1_000_000),
		InterestAccrued: big.NewInt(0),
		StartedAt:       100,
		UpdatedAt:       100,
	}
	now := uint64(100 + SecondsPerYear)
	if debt := loan.Debt(now); debt.Cmp(big.NewInt(1_050_000)) != 0 {
		t.Fatalf("unexpected quote %s", debt)
	}
	loan.accrue(now)
	loan.accrue(now)
	if loan.InterestAccrued.Cmp(big.NewInt(50_000)) != 0 {
		t.Fatalf("interest double counted: %s", loan.InterestAccrued)
	}
	if loan.UpdatedAt != now {
		t.Fatalf("checkpoint not advanced")
	}
	loan.accrue(now - 10)
	if loan.UpdatedAt != now {
		t.Fatalf("checkpoint must not move backwards")
	}
}
