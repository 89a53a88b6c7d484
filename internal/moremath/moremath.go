// Package moremath fills gaps between Go's math package and the floating-point semantics the
// WebAssembly specification requires (min/max handling of NaN and signed zero).
package moremath

import "math"

// WasmCompatMin64 implements f64.min: math.Min doesn't comply with the Wasm spec, which requires
// NaN if either operand is NaN, even when the other is -Inf.
func WasmCompatMin64(x, y float64) float64 {
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return math.NaN()
	case math.IsInf(x, -1) || math.IsInf(y, -1):
		return math.Inf(-1)
	case x == 0 && x == y:
		if math.Signbit(x) {
			return x
		}
		return y
	}
	if x < y {
		return x
	}
	return y
}

// WasmCompatMax64 implements f64.max, with the same NaN-dominance and signed-zero rules as
// WasmCompatMin64.
func WasmCompatMax64(x, y float64) float64 {
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return math.NaN()
	case math.IsInf(x, 1) || math.IsInf(y, 1):
		return math.Inf(1)
	case x == 0 && x == y:
		if math.Signbit(x) {
			return y
		}
		return x
	}
	if x > y {
		return x
	}
	return y
}

// WasmCompatMin32 is the float32 form of WasmCompatMin64, used by f32.min.
func WasmCompatMin32(x, y float32) float32 {
	return float32(WasmCompatMin64(float64(x), float64(y)))
}

// WasmCompatMax32 is the float32 form of WasmCompatMax64, used by f32.max.
func WasmCompatMax32(x, y float32) float32 {
	return float32(WasmCompatMax64(float64(x), float64(y)))
}

// WasmCompatNearestF32 implements f32.nearest: round to nearest, ties to even, distinct from
// math.Round (which rounds ties away from zero).
func WasmCompatNearestF32(f float32) float32 {
	return float32(wasmCompatNearest(float64(f)))
}

// WasmCompatNearestF64 implements f64.nearest.
func WasmCompatNearestF64(f float64) float64 {
	return wasmCompatNearest(f)
}

func wasmCompatNearest(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	rounded := math.Round(f)
	if diff := math.Abs(f - math.Trunc(f)); diff == 0.5 {
		// round-half-to-even: if rounding away from zero landed on an odd integer, pull back
		// towards zero by one.
		if math.Mod(rounded, 2) != 0 {
			if rounded > f {
				rounded--
			} else {
				rounded++
			}
		}
	}
	return rounded
}
