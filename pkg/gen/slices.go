package gen

// DeleteFromSliceUnordered removes element i by swapping in the last element
func DeleteFromSliceUnordered[T any](s []T, i int) []T {
	s[i] = s[len(s)-1]
	var zero T
	s[len(s)-1] = zero
	return s[:len(s)-1]
}

// DeleteFirst removes the first occurrence of v. Order is not preserved.
func DeleteFirst[T comparable](s []T, v T) []T {
	for i := range s {
		if s[i] == v {
			return DeleteFromSliceUnordered(s, i)
		}
	}
	return s
}
