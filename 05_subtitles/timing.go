package subtitles

// Interval is a half-open time range in seconds
type Interval struct {
	Start float64
	End   float64
}

// Valid reports whether the interval has positive length
func (iv Interval) Valid() bool {
	return iv.End > iv.Start
}

// Normalize makes a track monotonic. Left to right, each start is raised
// to the previous end and each end is floored to start+minDur. When total
// is positive a backward pass pulls ends inside [0, total], moving starts
// back to keep minDur while the audio allows it. Intervals that cannot keep
// minDur inside the audio come back with End <= Start and must be dropped
// by the caller.
func Normalize(ivs []Interval, minDur, total float64) []Interval {
	out := make([]Interval, len(ivs))
	prevEnd := 0.0
	for i, iv := range ivs {
		start := max(iv.Start, prevEnd, 0)
		end := max(iv.End, start+minDur)
		out[i] = Interval{Start: start, End: end}
		prevEnd = end
	}
	if total <= 0 {
		return out
	}

	limit := total
	for i := len(out) - 1; i >= 0; i-- {
		iv := out[i]
		if iv.End > limit {
			iv.End = limit
		}
		if iv.End-iv.Start < minDur {
			iv.Start = max(iv.End-minDur, 0)
		}
		if iv.End-iv.Start < minDur-1e-9 {
			iv.Start = iv.End
		}
		out[i] = iv
		if iv.Valid() {
			limit = iv.Start
		}
	}
	return out
}
