package asaas

import (
	"fmt"
	"math/big"
)

var hundred = big.NewRat(100, 1)

// ValueToCents converts a decimal currency amount ("150.00") to cents.
// Uses rational arithmetic to avoid float drift on money values.
func ValueToCents(raw string) (int64, error) {
	amount, ok := new(big.Rat).SetString(raw)
	if !ok {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}

	cents := new(big.Rat).Mul(amount, hundred)
	if !cents.IsInt() {
		return 0, fmt.Errorf("amount %q has sub-cent precision", raw)
	}
	if !cents.Num().IsInt64() {
		return 0, fmt.Errorf("amount %q out of range", raw)
	}
	return cents.Num().Int64(), nil
}
