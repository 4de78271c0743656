package touchstate

import "math"

// refreshSpeedRates recomputes the stroke's average speed and fills local
// speed rates and directions for sampled points at or after lastSavedSize.
// The returned average is length units per time unit over the whole stroke.
func (s *State) refreshSpeedRates(lastSavedSize int) float64 {
	n := s.sampledSize
	s.speedRates = resizeFloats(s.speedRates, n)
	s.directions = resizeFloats(s.directions, n)

	duration := s.times[n-1] - s.times[0]
	if duration <= 0 {
		duration = 1
	}
	average := float64(s.lengthCache[n-1]) / float64(duration)
	if average <= 0 {
		average = 1
	}

	for i := lastSavedSize; i < n; i++ {
		s.speedRates[i] = s.localSpeed(i) / average
		if i > 0 {
			s.directions[i] = direction(s.sampledXs[i-1], s.sampledYs[i-1],
				s.sampledXs[i], s.sampledYs[i])
		} else {
			s.directions[i] = 0
		}
	}
	return average
}

// localSpeed measures speed across the neighborhood [i-1, i+1], clamped at
// the stroke ends.
func (s *State) localSpeed(i int) float64 {
	lo := i - 1
	if lo < 0 {
		lo = 0
	}
	hi := i + 1
	if hi > s.sampledSize-1 {
		hi = s.sampledSize - 1
	}
	if lo == hi {
		return 0
	}
	dt := s.times[hi] - s.times[lo]
	if dt <= 0 {
		dt = 1
	}
	return float64(s.lengthCache[hi]-s.lengthCache[lo]) / float64(dt)
}

// refreshBeelinePercentiles fills the beeline-speed score for sampled points
// at or after lastSavedSize. The beeline speed of point i is the
// straight-line distance between the sampled points roughly one key width of
// path behind and ahead of i, divided by the elapsed time; the score maps it
// onto 0-100 with 50 at the stroke's average speed. A low score means the
// finger lingered or doubled back near the point, a strong signal that the
// point sits on an intended key.
func (s *State) refreshBeelinePercentiles(lastSavedSize int) {
	n := s.sampledSize
	s.beelinePercentiles = resizeInts(s.beelinePercentiles, n)

	radius := int(s.tuning.BeelineLookupRadiusScale * float64(s.mostCommonKeyWidth))
	for i := lastSavedSize; i < n; i++ {
		lo := i
		for lo > 0 && s.lengthCache[i]-s.lengthCache[lo-1] < radius {
			lo--
		}
		hi := i
		for hi < n-1 && s.lengthCache[hi+1]-s.lengthCache[i] < radius {
			hi++
		}
		s.beelinePercentiles[i] = s.beelineScore(lo, hi)
	}
}

func (s *State) beelineScore(lo, hi int) int {
	if lo >= hi {
		return 0
	}
	dt := s.times[hi] - s.times[lo]
	if dt <= 0 {
		dt = 1
	}
	beeline := euclidean(s.sampledXs[lo], s.sampledYs[lo],
		s.sampledXs[hi], s.sampledYs[hi]) / float64(dt)
	rate := beeline / s.averageSpeed
	score := int(math.Round(rate * 50))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

func resizeFloats(v []float64, n int) []float64 {
	if cap(v) < n {
		next := make([]float64, n)
		copy(next, v)
		return next
	}
	old := len(v)
	v = v[:n]
	for i := old; i < n; i++ {
		v[i] = 0
	}
	return v
}

func resizeInts(v []int, n int) []int {
	if cap(v) < n {
		next := make([]int, n)
		copy(next, v)
		return next
	}
	old := len(v)
	v = v[:n]
	for i := old; i < n; i++ {
		v[i] = 0
	}
	return v
}
