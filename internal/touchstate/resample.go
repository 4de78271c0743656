package touchstate

import "math"

// resample scans the raw trajectory from startIndex and appends sampled
// points for this pointer, returning the new sampled size.
//
// Gesture mode thins the stream: a raw point is materialized only when it
// is at least minSampleSpacing away from the previous sampled point, except
// the final raw point, which is always materialized so the stroke tail is
// represented. That forced tail point is exactly why Initialize retracts the
// trailing two points before resuming: re-running the same scan over an
// unchanged raw prefix reproduces the same sampled prefix.
//
// Tap mode keeps every raw point; each one is a distinct key press.
func (s *State) resample(traj *Trajectory, pointerID, startIndex int) int {
	rawSize := traj.Size()
	minSpacing := 0.0
	if s.gestureMode {
		minSpacing = s.tuning.SampleSpacingScale * float64(s.mostCommonKeyWidth)
	}
	for i := startIndex; i < rawSize; i++ {
		if traj.PointerIDs != nil && traj.PointerIDs[i] != pointerID {
			continue
		}
		x := traj.Xs[i]
		y := traj.Ys[i]
		t := sampleTime(traj, i)
		isLast := i == rawSize-1
		s.pushSampledPoint(i, x, y, t, minSpacing, isLast)
	}
	return len(s.sampledXs)
}

// pushSampledPoint appends one sampled point unless gesture-mode spacing
// suppresses it. The length cache entry is the previous cumulative length
// plus the Euclidean step from the prior sampled point.
func (s *State) pushSampledPoint(rawIndex, x, y, t int, minSpacing float64, isLast bool) {
	n := len(s.sampledXs)
	dist := 0.0
	if n > 0 {
		dist = euclidean(s.sampledXs[n-1], s.sampledYs[n-1], x, y)
		if !isLast && dist < minSpacing {
			return
		}
	}
	prevLength := 0
	if n > 0 {
		prevLength = s.lengthCache[n-1]
	}
	s.sampledXs = append(s.sampledXs, x)
	s.sampledYs = append(s.sampledYs, y)
	s.times = append(s.times, t)
	s.inputIndexes = append(s.inputIndexes, rawIndex)
	s.lengthCache = append(s.lengthCache, prevLength+int(dist))
}

func euclidean(x0, y0, x1, y1 int) float64 {
	return math.Hypot(float64(x1-x0), float64(y1-y0))
}
