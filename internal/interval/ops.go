package interval

import "cmp"

// coalesce merges touching or overlapping intervals of an input sorted by start.
func coalesce[T cmp.Ordered](in []Interval[T]) []Interval[T] {
	out := make([]Interval[T], 0, len(in))
	for _, iv := range in {
		if n := len(out); n > 0 && iv.from <= out[n-1].to {
			if iv.to > out[n-1].to {
				out[n-1].to = iv.to
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

func union[T cmp.Ordered](a, b []Interval[T]) []Interval[T] {
	out := make([]Interval[T], 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		var next Interval[T]
		if j >= len(b) || (i < len(a) && a[i].from <= b[j].from) {
			next = a[i]
			i++
		} else {
			next = b[j]
			j++
		}
		if n := len(out); n > 0 && next.from <= out[n-1].to {
			if next.to > out[n-1].to {
				out[n-1].to = next.to
			}
			continue
		}
		out = append(out, next)
	}
	return out
}

func intersection[T cmp.Ordered](a, b []Interval[T]) []Interval[T] {
	var out []Interval[T]
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		from := max(a[i].from, b[j].from)
		to := min(a[i].to, b[j].to)
		if from < to {
			out = append(out, Interval[T]{from: from, to: to})
		}
		if a[i].to < b[j].to {
			i++
		} else {
			j++
		}
	}
	return out
}

func difference[T cmp.Ordered](a, b []Interval[T]) []Interval[T] {
	var out []Interval[T]
	j := 0
	for _, iv := range a {
		from := iv.from
		for j < len(b) && b[j].to <= from {
			j++
		}
		for k := j; k < len(b) && b[k].from < iv.to; k++ {
			if b[k].from > from {
				out = append(out, Interval[T]{from: from, to: b[k].from})
			}
			if b[k].to > from {
				from = b[k].to
			}
			if from >= iv.to {
				break
			}
		}
		if from < iv.to {
			out = append(out, Interval[T]{from: from, to: iv.to})
		}
	}
	return out
}

func intersects[T cmp.Ordered](a, b []Interval[T]) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].Intersects(b[j]) {
			return true
		}
		if a[i].to <= b[j].to {
			i++
		} else {
			j++
		}
	}
	return false
}
