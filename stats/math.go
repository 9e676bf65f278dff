package stats

import "math"

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// sampleStd is the n-1 standard deviation; 0 for fewer than two values.
func sampleStd(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	m := mean(vals)
	var ss float64
	for _, v := range vals {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(vals)-1))
}

// returns converts an equity series into simple per-period returns. A
// period starting from non-positive equity has an undefined return and is
// recorded as 0.
func returns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] <= 0 {
			continue
		}
		out[i-1] = equity[i]/equity[i-1] - 1
	}
	return out
}

// Drawdown returns the deepest peak-to-trough decline of equity as a
// non-positive fraction, and the longest run of consecutive points that
// stayed below the running peak.
func Drawdown(equity []float64) (maxDD float64, duration int) {
	if len(equity) == 0 {
		return 0, 0
	}
	peak := equity[0]
	run := 0
	for _, e := range equity {
		if e >= peak {
			peak = e
			run = 0
			continue
		}
		run++
		if run > duration {
			duration = run
		}
		if peak > 0 {
			if dd := (e - peak) / peak; dd < maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD, duration
}

// finite maps NaN and ±Inf to 0 so reports never carry them.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
