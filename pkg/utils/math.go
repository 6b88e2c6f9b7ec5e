package utils

import "math"

// NormalizeL2 scales vec in place to unit L2 norm, the form the cosine
// similarity in the index expects. A zero vector stays zero; callers treat it
// as "no embeddable content".
func NormalizeL2(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
}
