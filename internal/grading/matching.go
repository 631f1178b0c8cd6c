package grading

import "github.com/mind-engage/mindengage-exams/internal/exam"

// matchingCorrect is all-or-nothing: the submission must have exactly n pairs,
// use each left and right index once, and map every i to i.
func matchingCorrect(n int, pairs []exam.PairChoice) bool {
	if n == 0 || len(pairs) != n {
		return false
	}
	left := make(map[int]int, n)
	right := make(map[int]struct{}, n)
	for _, p := range pairs {
		if _, dup := left[p.LeftIndex]; dup {
			return false
		}
		if _, dup := right[p.RightIndex]; dup {
			return false
		}
		left[p.LeftIndex] = p.RightIndex
		right[p.RightIndex] = struct{}{}
	}
	for i := 0; i < n; i++ {
		got, ok := left[i]
		if !ok || got != i {
			return false
		}
	}
	return true
}
