package vault

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var ErrOverflow = errors.New("vault: amount exceeds 256 bits")

func toU256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

// mulDiv computes x*y/d with a 512-bit intermediate, rounding up when roundUp
// is set and the division leaves a remainder.
func mulDiv(x, y, d *big.Int, roundUp bool) (*big.Int, error) {
	ux, err := toU256(x)
	if err != nil {
		return nil, err
	}
	uy, err := toU256(y)
	if err != nil {
		return nil, err
	}
	ud, err := toU256(d)
	if err != nil {
		return nil, err
	}
	if ud.IsZero() {
		return nil, ErrPoolEmpty
	}
	quo, overflow := new(uint256.Int).MulDivOverflow(ux, uy, ud)
	if overflow {
		return nil, ErrOverflow
	}
	if roundUp && !new(uint256.Int).MulMod(ux, uy, ud).IsZero() {
		one := uint256.NewInt(1)
		if _, carry := quo.AddOverflow(quo, one); carry {
			return nil, ErrOverflow
		}
	}
	return quo.ToBig(), nil
}

// sharesForDeposit converts assets into shares, rounding down.
func sharesForDeposit(v *Vault, assets *big.Int) (*big.Int, error) {
	if v.TotalShares.Sign() == 0 {
		return new(big.Int).Set(assets), nil
	}
	if v.TotalAssets.Sign() == 0 {
		return nil, ErrPoolEmpty
	}
	return mulDiv(assets, v.TotalShares, v.TotalAssets, false)
}

// sharesForWithdraw converts assets into the shares that must be burned to
// release them, rounding up so the pool never pays out more than it holds.
func sharesForWithdraw(v *Vault, assets *big.Int) (*big.Int, error) {
	if v.TotalAssets.Sign() == 0 {
		return nil, ErrPoolEmpty
	}
	return mulDiv(assets, v.TotalShares, v.TotalAssets, true)
}

// assetsForShares converts shares into assets, rounding down.
func assetsForShares(v *Vault, shares *big.Int) (*big.Int, error) {
	if v.TotalShares.Sign() == 0 || shares == nil || shares.Sign() == 0 {
		return big.NewInt(0), nil
	}
	return mulDiv(shares, v.TotalAssets, v.TotalShares, false)
}
