package embedding

import "math"

// MeanVector returns the L2-normalized mean of vectors, or nil when there is
// nothing to average or the dimensions disagree.
func MeanVector(vectors [][]float32) []float32 {
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil
	}
	dim := len(vectors[0])
	sum := make([]float64, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
	}

	var norm float64
	for i := range sum {
		sum[i] /= float64(len(vectors))
		norm += sum[i] * sum[i]
	}
	norm = math.Sqrt(norm)

	out := make([]float32, dim)
	for i, x := range sum {
		if norm > 0 {
			x /= norm
		}
		out[i] = float32(x)
	}
	return out
}
