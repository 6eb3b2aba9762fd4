// Package utils holds small generic helpers shared across packages.
package utils

// Value dereferences p, yielding the zero value of T when p is nil. Useful
// for optional request fields modeled as pointers.
func Value[T any](p *T) T {
	if p == nil {
		return *new(T)
	}
	return *p
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
