package utils

func Ptr[T any](v T) *T {
	return &v
}

// Is reports whether p is set and points at v.
func Is[T comparable](p *T, v T) bool {
	return p != nil && *p == v
}
