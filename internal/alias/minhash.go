package alias

import (
	"math"
	"math/bits"

	"github.com/cespare/xxhash/v2"
)

// Signatures are computed with the standard double-hashing construction:
// two independent xxhash values h1, h2 per shingle simulate SignatureSize
// permutations as h1 + i*h2. The salt separates the second hash stream.
const minhashSalt = "\x00telwerk-minhash"

// shingleHashes returns the two base hashes for one shingle.
func shingleHashes(s string) (uint64, uint64) {
	h1 := xxhash.Sum64String(s)
	h2 := xxhash.Sum64String(s + minhashSalt)
	// h2 must be odd so the simulated permutations cover the full range.
	return h1, h2 | 1
}

// MinHash computes the SignatureSize-slot MinHash signature of the shingle
// set. An empty set yields a signature of all math.MaxUint64, which
// estimates zero similarity against any non-empty set.
func MinHash(shingles []string) []uint64 {
	sig := make([]uint64, SignatureSize)
	for i := range sig {
		sig[i] = math.MaxUint64
	}
	for _, s := range shingles {
		h1, h2 := shingleHashes(s)
		for i := range sig {
			h := h1 + uint64(i)*h2
			if h < sig[i] {
				sig[i] = h
			}
		}
	}
	return sig
}

// EstimateJaccard estimates the Jaccard similarity of the two shingle sets
// underlying the signatures: the fraction of agreeing slots. Signatures of
// unequal length (index version mismatch) estimate to 0.
func EstimateJaccard(a, b []uint64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	equal := 0
	for i := range a {
		if a[i] == b[i] {
			equal++
		}
	}
	return float64(equal) / float64(len(a))
}

// SimHash computes the 64-bit SimHash of the shingle set: each shingle's
// hash votes per bit, and the sign of the tally decides the output bit.
func SimHash(shingles []string) uint64 {
	if len(shingles) == 0 {
		return 0
	}
	var tally [64]int
	for _, s := range shingles {
		h := xxhash.Sum64String(s)
		for b := 0; b < 64; b++ {
			if h&(1<<uint(b)) != 0 {
				tally[b]++
			} else {
				tally[b]--
			}
		}
	}
	var out uint64
	for b := 0; b < 64; b++ {
		if tally[b] > 0 {
			out |= 1 << uint(b)
		}
	}
	return out
}

// SimHashSimilarity maps the Hamming distance between two SimHash values to
// a 0.0–1.0 similarity.
func SimHashSimilarity(a, b uint64) float64 {
	return 1 - float64(bits.OnesCount64(a^b))/64
}
