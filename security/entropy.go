package security

import "math"

// EntropyThreshold is the bits per byte above which a run is treated as
// encoded. English prose sits around 4, base64 around 5.5 to 6.
const EntropyThreshold = 4.8

// ShannonEntropy returns the entropy of data in bits per byte.
func ShannonEntropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	var freq [256]int
	for _, b := range data {
		freq[b]++
	}
	n := float64(len(data))
	var h float64
	for _, c := range freq {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		h -= p * math.Log2(p)
	}
	return h
}
