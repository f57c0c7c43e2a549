package events

import (
	"math/big"
	"strconv"

	"notelend/crypto"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func uintToString(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func addr(raw [20]byte) string {
	return crypto.FormatRaw(raw)
}
