package metric

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Euclidean is the L2 distance.
func Euclidean(x, y []float64) float64 {
	return floats.Distance(x, y, 2)
}

// SquaredEuclidean is the squared L2 distance. It is not a metric.
func SquaredEuclidean(x, y []float64) float64 {
	var sum float64
	for i, v := range x {
		d := v - y[i]
		sum += d * d
	}
	return sum
}

// Manhattan is the L1 distance.
func Manhattan(x, y []float64) float64 {
	return floats.Distance(x, y, 1)
}

// Chebyshev is the L-infinity distance.
func Chebyshev(x, y []float64) float64 {
	return floats.Distance(x, y, math.Inf(1))
}

// Cosine is 1 - cos(x, y). Two zero vectors are at distance 0, a zero vector
// and a non-zero vector at distance 1.
func Cosine(x, y []float64) float64 {
	nx, ny := floats.Norm(x, 2), floats.Norm(y, 2)
	switch {
	case nx == 0 && ny == 0:
		return 0
	case nx == 0 || ny == 0:
		return 1
	}
	d := 1 - floats.Dot(x, y)/(nx*ny)
	if d < 0 {
		return 0
	}
	return d
}

// Angular is sqrt(2 (1 - cos(x, y))), the chord length between the
// normalised vectors. Unlike Cosine it satisfies the triangle inequality.
func Angular(x, y []float64) float64 {
	return math.Sqrt(2 * Cosine(x, y))
}

// Correlation is the cosine distance between the mean-centred vectors.
func Correlation(x, y []float64) float64 {
	n := float64(len(x))
	if n == 0 {
		return 0
	}
	mx, my := floats.Sum(x)/n, floats.Sum(y)/n
	var dot, nx, ny float64
	for i, v := range x {
		a, b := v-mx, y[i]-my
		dot += a * b
		nx += a * a
		ny += b * b
	}
	switch {
	case nx == 0 && ny == 0:
		return 0
	case nx == 0 || ny == 0:
		return 1
	}
	d := 1 - dot/math.Sqrt(nx*ny)
	if d < 0 {
		return 0
	}
	return d
}

// Hamming is the fraction of coordinates that differ.
func Hamming(x, y []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var diff int
	for i, v := range x {
		if v != y[i] {
			diff++
		}
	}
	return float64(diff) / float64(len(x))
}

// Canberra is sum |x-y| / (|x|+|y|), skipping coordinates where both are 0.
func Canberra(x, y []float64) float64 {
	var sum float64
	for i, v := range x {
		den := math.Abs(v) + math.Abs(y[i])
		if den > 0 {
			sum += math.Abs(v-y[i]) / den
		}
	}
	return sum
}

// BrayCurtis is sum |x-y| / sum |x+y|.
func BrayCurtis(x, y []float64) float64 {
	var num, den float64
	for i, v := range x {
		num += math.Abs(v - y[i])
		den += math.Abs(v + y[i])
	}
	if den == 0 {
		return 0
	}
	return num / den
}
