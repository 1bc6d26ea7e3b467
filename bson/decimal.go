package bson

import (
	"math/big"
	"strconv"
	"strings"
)

// Decimal128 holds the raw IEEE 754-2008 decimal128 (BID) bits. No arithmetic
// is provided; the value only needs to survive a round trip and render.
type Decimal128 struct {
	High uint64
	Low  uint64
}

const decimal128ExponentBias = 6176

// maxCoefficient is the largest canonical coefficient, 10^34 - 1.
var maxCoefficient = new(big.Int).Sub(new(big.Int).Exp(big.NewInt(10), big.NewInt(34), nil), big.NewInt(1))

// String formats d following the BSON decimal128 string rules.
func (d Decimal128) String() string {
	neg := d.High>>63 == 1
	var sign string
	if neg {
		sign = "-"
	}

	switch d.High>>58&0x1F {
	case 0x1F:
		return "NaN"
	case 0x1E:
		return sign + "Infinity"
	}

	var exp int
	var coeffHigh, coeffLow uint64
	if d.High>>61&3 == 3 {
		// Combination field 11: coefficient exceeds 34 digits and is treated as zero.
		exp = int(d.High>>47&0x3FFF) - decimal128ExponentBias
	} else {
		exp = int(d.High>>49&0x3FFF) - decimal128ExponentBias
		coeffHigh = d.High & (1<<49 - 1)
		coeffLow = d.Low
	}

	coeff := new(big.Int).SetUint64(coeffHigh)
	coeff.Lsh(coeff, 64)
	coeff.Or(coeff, new(big.Int).SetUint64(coeffLow))
	if coeff.Cmp(maxCoefficient) > 0 {
		// Non-canonical coefficients are read as zero.
		coeff.SetInt64(0)
	}
	digits := coeff.String()

	adjusted := exp + len(digits) - 1
	if exp <= 0 && adjusted >= -6 {
		if exp == 0 {
			return sign + digits
		}
		point := len(digits) + exp
		if point > 0 {
			return sign + digits[:point] + "." + digits[point:]
		}
		return sign + "0." + strings.Repeat("0", -point) + digits
	}

	var b strings.Builder
	b.WriteString(sign)
	b.WriteByte(digits[0])
	if len(digits) > 1 {
		b.WriteByte('.')
		b.WriteString(digits[1:])
	}
	b.WriteByte('E')
	if adjusted >= 0 {
		b.WriteByte('+')
	}
	b.WriteString(strconv.Itoa(adjusted))
	return b.String()
}
