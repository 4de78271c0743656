package touchstate

import (
	"math"

	"glidetype/internal/geometry"
)

// refreshDistanceCache resizes the distance cache and key bitsets to the
// current sampled size and fills rows for points at or after lastSavedSize.
// Rows for the retained prefix are left untouched; this is the main
// incremental saving of the whole design.
func (s *State) refreshDistanceCache(lastSavedSize int) {
	n := s.sampledSize
	s.distanceCache = resizeFloats(s.distanceCache, n*s.keyCount)
	s.nearKeys = s.resizeBitsets(s.nearKeys, n)
	s.searchKeys = s.resizeBitsets(s.searchKeys, n)

	for i := lastSavedSize; i < n; i++ {
		s.nearKeys[i].Reset()
		s.searchKeys[i].Reset()
		x := s.sampledXs[i]
		y := s.sampledYs[i]
		row := i * s.keyCount
		for k := 0; k < s.keyCount; k++ {
			d := s.geo.NormalizedSquaredDistanceFromCenter(k, x, y)
			s.distanceCache[row+k] = d
			if d < s.tuning.NearKeyThreshold {
				s.nearKeys[i].Set(k)
			}
		}
	}
}

// updateSearchKeys recomputes the forward-window unions. searchKeys[i] is
// the union of nearKeys[j] for all j >= max(i, lastSavedSize) within the
// path-length window, so it is always a superset of nearKeys[i] for new
// points and only ever grows for retained ones. The scan stops at the first
// point past the window, never truncating mid-point.
func (s *State) updateSearchKeys(lastSavedSize int) {
	window := int(s.tuning.ForwardWindowScale *
		math.Hypot(float64(s.geo.KeyboardWidth()), float64(s.geo.KeyboardHeight())))
	for i := 0; i < s.sampledSize; i++ {
		if i >= lastSavedSize {
			s.searchKeys[i].Reset()
		}
		start := i
		if lastSavedSize > start {
			start = lastSavedSize
		}
		for j := start; j < s.sampledSize; j++ {
			if s.lengthCache[j]-s.lengthCache[i] >= window {
				break
			}
			s.searchKeys[i].Or(s.nearKeys[j])
		}
	}
}

func (s *State) resizeBitsets(v []KeyBitset, n int) []KeyBitset {
	if cap(v) < n {
		next := make([]KeyBitset, n)
		copy(next, v)
		v = next
	} else {
		v = v[:n]
	}
	for i := range v {
		if v[i].words == nil || len(v[i].words) != (s.keyCount+63)/64 {
			v[i] = NewKeyBitset(s.keyCount)
		}
	}
	return v
}

// PointToKeyLength returns the normalized distance from sampled point
// inputIndex to the key for codePoint, capped at the max point-to-key length
// given to Initialize. Code points without a key read as MaxPointToKeyLength
// unless they are skippable word characters (apostrophe, hyphen), which cost
// nothing spatially.
func (s *State) PointToKeyLength(inputIndex int, codePoint rune) float64 {
	keyID := s.geo.KeyIndexOf(codePoint)
	if keyID != geometry.NotAnIndex {
		return s.PointToKeyLengthByID(inputIndex, keyID)
	}
	if isSkippableCodePoint(codePoint) {
		return 0
	}
	return MaxPointToKeyLength
}

// PointToKeyLengthByID is PointToKeyLength for a known key index.
func (s *State) PointToKeyLengthByID(inputIndex, keyID int) float64 {
	if keyID == geometry.NotAnIndex || inputIndex < 0 || inputIndex >= s.sampledSize {
		return s.maxPointToKeyLength
	}
	d := s.distanceCache[inputIndex*s.keyCount+keyID]
	if d > s.maxPointToKeyLength {
		return s.maxPointToKeyLength
	}
	return d
}

// NearKeys reports whether keyID is within the near-key threshold of sampled
// point i.
func (s *State) NearKeys(i, keyID int) (bool, error) {
	if i < 0 || i >= s.sampledSize {
		return false, ErrIndexOutOfRange
	}
	return s.nearKeys[i].Test(keyID), nil
}

// IsKeyReachable reports whether keyID is still worth considering at or
// after sampled point i, per the forward search window.
func (s *State) IsKeyReachable(i, keyID int) (bool, error) {
	if keyID < 0 {
		return false, ErrIndexOutOfRange
	}
	if i < 0 || i >= s.sampledSize {
		return false, ErrIndexOutOfRange
	}
	return s.searchKeys[i].Test(keyID), nil
}

// AllPossibleCodePoints appends the code points of every search key of
// sampled point i to filter, skipping duplicates, and returns the extended
// slice. An out-of-range index returns filter unchanged.
func (s *State) AllPossibleCodePoints(i int, filter []rune) []rune {
	if i < 0 || i >= s.sampledSize {
		return filter
	}
	for k := 0; k < s.keyCount; k++ {
		if !s.searchKeys[i].Test(k) {
			continue
		}
		cp := s.geo.CodePointOf(k)
		seen := false
		for _, f := range filter {
			if f == cp {
				seen = true
				break
			}
		}
		if !seen {
			filter = append(filter, cp)
		}
	}
	return filter
}

// LineToKeySquaredDistance returns the squared distance from the key center
// to the segment between sampled points from and to. With extend, the
// segment is treated as an infinite line. Out-of-range indexes return 0.
func (s *State) LineToKeySquaredDistance(from, to, keyID int, extend bool) float64 {
	if from < 0 || from > s.sampledSize-1 {
		return 0
	}
	if to < 0 || to > s.sampledSize-1 {
		return 0
	}
	keyX, keyY := s.geo.KeyCenter(keyID)
	return pointToSegmentSquaredDistance(
		float64(keyX), float64(keyY),
		float64(s.sampledXs[from]), float64(s.sampledYs[from]),
		float64(s.sampledXs[to]), float64(s.sampledYs[to]), extend)
}

// pointToSegmentSquaredDistance projects (px, py) onto the segment
// (x0, y0)-(x1, y1), clamping to the endpoints unless extend is set.
func pointToSegmentSquaredDistance(px, py, x0, y0, x1, y1 float64, extend bool) float64 {
	dx := x1 - x0
	dy := y1 - y0
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return squaredDistance(px, py, x0, y0)
	}
	t := ((px-x0)*dx + (py-y0)*dy) / lenSq
	if !extend {
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
	}
	return squaredDistance(px, py, x0+t*dx, y0+t*dy)
}

func squaredDistance(x0, y0, x1, y1 float64) float64 {
	dx := x1 - x0
	dy := y1 - y0
	return dx*dx + dy*dy
}

// isSkippableCodePoint marks intra-word punctuation that has no key of its
// own on most layouts and must not be charged the unknown-key distance.
func isSkippableCodePoint(c rune) bool {
	return c == '\'' || c == '-'
}
