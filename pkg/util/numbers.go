package util

import "math"

// SafeInt converts an externally supplied float to an int without the
// undefined behaviour of a direct conversion. NaN maps to 0, infinities and
// out of range values clamp to the int bounds, everything else truncates.
func SafeInt(value float64) int {
	switch {
	case math.IsNaN(value):
		return 0
	case math.IsInf(value, 1), value >= math.MaxInt:
		return math.MaxInt
	case math.IsInf(value, -1), value <= math.MinInt:
		return math.MinInt
	}

	return int(value)
}

// SafeFloat returns nil for negative or non-finite readings
func SafeFloat(value *float64) *float64 {
	if value == nil || math.IsNaN(*value) || math.IsInf(*value, 0) || *value < 0 {
		return nil
	}

	v := *value
	return &v
}

// AbsDiff is |a-b| saturating at math.MaxInt instead of overflowing
func AbsDiff(a, b int) int {
	return SafeInt(math.Abs(float64(a) - float64(b)))
}
