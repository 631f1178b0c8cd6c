package exam

import (
	"hash/fnv"
	"math/rand/v2"
)

// RightOrder returns the display order of the right-hand column of a matching
// question for one attempt: order[display] == canonical index. The order is
// stable for a given (attemptID, questionID) so a resumed attempt sees the
// same layout it was graded against.
func RightOrder(attemptID, questionID string, n int) []int {
	if n <= 0 {
		return nil
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(attemptID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(questionID))
	seed := h.Sum64()
	r := rand.New(rand.NewPCG(seed, seed>>1|1))
	return r.Perm(n)
}

// ToCanonical rewrites displayed right indices to canonical ones. Indices
// outside the display range are kept as -1 so grading rejects them.
func ToCanonical(pairs []PairChoice, order []int) []PairChoice {
	out := make([]PairChoice, len(pairs))
	for i, p := range pairs {
		out[i] = PairChoice{LeftIndex: p.LeftIndex, RightIndex: -1}
		if p.RightIndex >= 0 && p.RightIndex < len(order) {
			out[i].RightIndex = order[p.RightIndex]
		}
	}
	return out
}
