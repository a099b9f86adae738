package ctc

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// LogZero is log(0).
var LogZero = math.Inf(-1)

// LogAdd returns log(exp(a) + exp(b)) in a numerically stable way.
// Differences below exp(-36) are lost to float64 precision and skipped.
func LogAdd(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if math.IsInf(b, -1) {
		return a
	}
	d := b - a
	if d < -36.0 {
		return a
	}
	return a + math.Log1p(math.Exp(d))
}

// LogSumExp returns log(sum(exp(x))) over xs, or LogZero when xs is empty.
func LogSumExp(xs []float64) float64 {
	if len(xs) == 0 {
		return LogZero
	}
	return floats.LogSumExp(xs)
}

// logRow writes the log-domain version of row into dst.
func logRow(dst, row []float64, logInput bool) {
	if logInput {
		copy(dst, row)
		return
	}
	for i, p := range row {
		if p <= 0 {
			dst[i] = LogZero
			continue
		}
		dst[i] = math.Log(p)
	}
}

// logProb returns the log-probability of a single matrix value.
func logProb(v float64, logInput bool) float64 {
	if logInput {
		return v
	}
	if v <= 0 {
		return LogZero
	}
	return math.Log(v)
}
