package utils

import "time"

func PtrTo[T any](v T) *T {
	return &v
}

// TimeOrZero dereferences t, returning the zero time for nil.
func TimeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
