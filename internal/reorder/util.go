package reorder

import "math"

// roundingEpsilon nudges values away from binary floating-point drift before
// rounding, so 85.80000000000001 and 1.005 land on the intended side.
const roundingEpsilon = 1e-9

// Round rounds v to the given number of decimal places. NaN and infinities
// degrade to 0.
func Round(v float64, decimals int) float64 {
	v = finite(v)
	if decimals < 0 {
		decimals = 0
	}

	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor+math.Copysign(roundingEpsilon, v)) / factor
}

// RoundMoney rounds a money-like amount to 2 decimals.
func RoundMoney(v float64) float64 {
	return Round(v, 2)
}

// RoundUnits rounds a unit quantity to an integer.
func RoundUnits(v float64) int {
	return int(Round(v, 0))
}

// RoundRate rounds a per-day rate to 1 decimal.
func RoundRate(v float64) float64 {
	return Round(v, 1)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ceilToMultiple rounds n up to the next multiple of m (m >= 1).
func ceilToMultiple(n, m int) int {
	if n <= 0 {
		return 0
	}
	return ((n + m - 1) / m) * m
}

// floorToMultiple rounds n down to a multiple of m (m >= 1).
func floorToMultiple(n, m int) int {
	if n <= 0 {
		return 0
	}
	return (n / m) * m
}
