package util

// FindFirst returns the first element of s satisfying pred.
func FindFirst[T any](s []T, pred func(T) bool) (T, bool) {
	for _, v := range s {
		if pred(v) {
			return v, true
		}
	}
	var zero T
	return zero, false
}
