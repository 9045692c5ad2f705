package trajectory

import "math"

// Downsample reduces points to at most k samples. Indices are chosen at a
// uniform stride over the original series, rounded to the nearest sample,
// so the endpoints always survive and the result preserves order. Series
// that already fit are returned unchanged.
func Downsample[P any](points []P, k int) []P {
	n := len(points)
	if n <= 2 || k >= n {
		return points
	}
	if k < 2 {
		k = 2
	}

	step := float64(n-1) / float64(k-1)
	out := make([]P, 0, k)
	last := -1
	for i := 0; i < k; i++ {
		idx := int(math.Round(float64(i) * step))
		if idx > n-1 {
			idx = n - 1
		}
		if idx == last {
			continue
		}
		out = append(out, points[idx])
		last = idx
	}
	return out
}
