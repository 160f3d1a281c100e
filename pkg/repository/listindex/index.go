// Package listindex converts Redis style list indexes into slice bounds so
// every log store backend shares one interpretation.
package listindex

// Bounds maps the inclusive range [start, end] over a list of length n to
// the half-open slice bounds [from, to). Negative indexes count from the
// tail. ok is false when the range selects nothing.
func Bounds(start, end, n int64) (from, to int64, ok bool) {
	if start < 0 {
		start += n
	}
	if end < 0 {
		end += n
	}
	if start < 0 {
		start = 0
	}
	if end >= n {
		end = n - 1
	}
	if n == 0 || start > end || start >= n {
		return 0, 0, false
	}
	return start, end + 1, true
}
