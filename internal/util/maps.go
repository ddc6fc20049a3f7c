package util

import "errors"

var (
	ErrNoElements       = errors.New("no element found")
	ErrMultipleElements = errors.New("multiple elements found")
)

// GetOne returns the only value in m. It fails with ErrNoElements or
// ErrMultipleElements when m does not hold exactly one entry.
func GetOne[K comparable, T any](m map[K]T) (T, error) {
	var zero T
	switch len(m) {
	case 0:
		return zero, ErrNoElements
	case 1:
		for _, v := range m {
			return v, nil
		}
	}
	return zero, ErrMultipleElements
}
