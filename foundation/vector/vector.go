// Package vector provides functions for summarizing training statistics
// held in float slices.
package vector

import "gonum.org/v1/gonum/floats"

// Mean calculates the arithmetic mean of the values. An empty slice has a
// mean of zero.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}

	return floats.Sum(values) / float64(len(values))
}

// MeanBool calculates the fraction of true values.
func MeanBool(values []bool) float64 {
	if len(values) == 0 {
		return 0.0
	}

	var n int
	for _, v := range values {
		if v {
			n++
		}
	}

	return float64(n) / float64(len(values))
}

// MeanColumns calculates the mean of every column across the rows. Rows
// shorter than the widest row contribute nothing to the missing columns.
func MeanColumns(rows [][]float64) []float64 {
	var dim int
	for _, row := range rows {
		dim = max(dim, len(row))
	}

	sum := make([]float64, dim)
	count := make([]float64, dim)

	for _, row := range rows {
		Add(sum[:len(row)], row)

		for i := range row {
			count[i]++
		}
	}

	for i := range sum {
		if count[i] > 0 {
			sum[i] /= count[i]
		}
	}

	return sum
}

// Add calculates the addition of two vectors, storing the result in a.
func Add(a, b []float64) []float64 {
	floats.Add(a, b)
	return a
}
