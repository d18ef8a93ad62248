// Package bounds holds the small numeric helpers shared by the mixer, the
// DSHOT encoder and the receiver adapters.
package bounds

import "golang.org/x/exp/constraints"

// Clamp constrains value to [min, max].
func Clamp[T constraints.Integer | constraints.Float](value, min, max T) T {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// MapRange maps value from [fromMin, fromMax] onto [toMin, toMax]. Integer
// callers get truncating division, so order the operands to keep precision.
func MapRange[T constraints.Signed | constraints.Float](value, fromMin, fromMax, toMin, toMax T) T {
	return (value-fromMin)*(toMax-toMin)/(fromMax-fromMin) + toMin
}

// SubFloor subtracts delta from value, stopping at zero instead of wrapping.
func SubFloor[T constraints.Unsigned](value, delta T) T {
	if delta >= value {
		return 0
	}
	return value - delta
}
