package touchstate

import (
	"context"
	"math"

	"glidetype/internal/geometry"
	"glidetype/internal/logging"
)

// Trajectory is one snapshot of a raw touch stream: parallel slices of
// coordinates, timestamps and pointer ids, plus tap-mode key codes. The
// engine does not retain it beyond the Initialize call that receives it.
// Any slice may be nil; missing coordinates yield an empty sampled state.
type Trajectory struct {
	Codes      []rune
	Xs         []int
	Ys         []int
	Times      []int
	PointerIDs []int
}

// Size returns the number of raw input positions.
func (t *Trajectory) Size() int {
	if t.Xs != nil {
		return len(t.Xs)
	}
	return len(t.Codes)
}

// State is the per-pointer spatial-matching state: the sampled trajectory
// and every per-point cache derived from it. All per-point slices are
// resized in lockstep and share indexes; readers never observe a partially
// resized state because all mutation happens inside Initialize.
type State struct {
	geo    geometry.Oracle
	log    *logging.Logger
	tuning Tuning

	gestureMode         bool
	maxPointToKeyLength float64
	keyCount            int
	mostCommonKeyWidth  int
	hasTouchCorrection  bool

	// Per-sampled-point vectors, index-aligned.
	sampledXs    []int
	sampledYs    []int
	times        []int
	inputIndexes []int // raw-trajectory index each sampled point came from
	lengthCache  []int // cumulative path length, non-decreasing

	distanceCache []float64   // sampledSize x keyCount, row-major
	nearKeys      []KeyBitset // distance < NearKeyThreshold
	searchKeys    []KeyBitset // forward-window union of near keys

	speedRates         []float64
	directions         []float64
	beelinePercentiles []int
	charProbabilities  []map[int]float64

	averageSpeed float64
	sampledSize  int

	// Tap-mode state, indexed by raw input position.
	proximityCodePoints [][]rune
	squaredDistances    [][]int
	primaryInputWord    []rune
	touchCorrection     bool

	continued bool
}

// NewState creates an empty state. The logger is an optional diagnostics
// sink; pass nil to disable engine tracing.
func NewState(tuning Tuning, log *logging.Logger) *State {
	return &State{tuning: tuning, log: log}
}

// Initialize rebuilds the state for the trajectory so far. It is called once
// per touch-move (gesture mode) or once per tap (tap mode) with the full
// trajectory from the stroke start. When the trajectory extends the one from
// the previous call, only the new tail is recomputed.
//
// Missing coordinate slices are not an error: the sampled state stays empty
// and tap-mode proximity lists (which need no coordinates) are still built.
func (s *State) Initialize(pointerID int, maxPointToKeyLength float64,
	geo geometry.Oracle, traj *Trajectory, gestureMode bool) {
	s.continued = s.isContinuationPossible(traj, gestureMode)

	s.geo = geo
	s.gestureMode = gestureMode
	s.maxPointToKeyLength = maxPointToKeyLength
	s.keyCount = geo.KeyCount()
	s.mostCommonKeyWidth = geo.MostCommonKeyWidth()
	s.hasTouchCorrection = geo.HasTouchPositionCorrectionData()

	s.proximityCodePoints = nil
	if !gestureMode && pointerID == 0 {
		s.buildProximityCodePoints(traj)
	}

	resampleStart := 0
	lastSavedSize := 0
	if s.continued && len(s.inputIndexes) > 1 {
		// The trailing two sampled points are never final while the stroke
		// is still extending through them, so they are retracted and
		// recomputed from the raw tail.
		resampleStart = s.inputIndexes[len(s.inputIndexes)-2]
		s.retractUnstableTail()
		lastSavedSize = len(s.sampledXs)
	} else {
		s.clearSampledState()
	}
	s.debug("state init", "continued", s.continued,
		"resample_start", resampleStart, "last_saved", lastSavedSize)

	s.sampledSize = 0
	if traj.Xs != nil && traj.Ys != nil {
		s.sampledSize = s.resample(traj, pointerID, resampleStart)
	}

	if s.sampledSize > 0 && gestureMode {
		s.averageSpeed = s.refreshSpeedRates(lastSavedSize)
		s.refreshBeelinePercentiles(lastSavedSize)
	}

	if s.sampledSize > 0 {
		s.refreshDistanceCache(lastSavedSize)
		if gestureMode {
			s.updateAlignProbabilities(lastSavedSize)
			s.updateSearchKeys(lastSavedSize)
		}
	}

	s.primaryInputWord = nil
	s.squaredDistances = nil
	s.touchCorrection = s.sampledSize > 0 && s.hasTouchCorrection &&
		traj.Xs != nil && traj.Ys != nil
	if !gestureMode && pointerID == 0 {
		s.refreshTapDistances(traj)
	}

	s.debug("state init done",
		"sampled", s.sampledSize, "raw", traj.Size(), "gesture", gestureMode)
	s.dumpSampledPoints()
}

// Continued reports whether the last Initialize call reused the cached
// prefix instead of rebuilding. Exposed for tests and diagnostics.
func (s *State) Continued() bool { return s.continued }

// SampledSize returns the number of sampled points.
func (s *State) SampledSize() int { return s.sampledSize }

// isContinuationPossible decides whether the cached sampled state is a
// prefix-consistent view of the new trajectory. In gesture mode every
// sampled point must still match the raw sample it was derived from; in tap
// mode the raw stream must not have shrunk and the leading coordinates must
// be unchanged. A mismatch is not an error, it just forces a full rebuild.
func (s *State) isContinuationPossible(traj *Trajectory, gestureMode bool) bool {
	if traj.Xs == nil || traj.Ys == nil {
		return false
	}
	rawSize := traj.Size()
	if gestureMode {
		for i := 0; i < s.sampledSize; i++ {
			idx := s.inputIndexes[i]
			if idx >= rawSize ||
				traj.Xs[idx] != s.sampledXs[i] ||
				traj.Ys[idx] != s.sampledYs[i] ||
				sampleTime(traj, idx) != s.times[i] {
				return false
			}
		}
		return true
	}
	if rawSize < s.sampledSize {
		return false
	}
	for i := 0; i < s.sampledSize && i < MaxWordLength; i++ {
		if traj.Xs[i] != s.sampledXs[i] || traj.Ys[i] != s.sampledYs[i] {
			return false
		}
	}
	return true
}

// retractUnstableTail pops the last two sampled points and their cache
// entries, leaving the stable prefix in place.
func (s *State) retractUnstableTail() {
	s.popSampledPoint()
	s.popSampledPoint()
}

func (s *State) popSampledPoint() {
	n := len(s.sampledXs)
	if n == 0 {
		return
	}
	s.sampledXs = s.sampledXs[:n-1]
	s.sampledYs = s.sampledYs[:n-1]
	s.times = s.times[:n-1]
	s.inputIndexes = s.inputIndexes[:n-1]
	s.lengthCache = s.lengthCache[:n-1]
}

// clearSampledState drops every per-point vector in lockstep.
func (s *State) clearSampledState() {
	s.sampledXs = s.sampledXs[:0]
	s.sampledYs = s.sampledYs[:0]
	s.times = s.times[:0]
	s.inputIndexes = s.inputIndexes[:0]
	s.lengthCache = s.lengthCache[:0]
	s.distanceCache = s.distanceCache[:0]
	s.nearKeys = s.nearKeys[:0]
	s.searchKeys = s.searchKeys[:0]
	s.speedRates = s.speedRates[:0]
	s.directions = s.directions[:0]
	s.beelinePercentiles = s.beelinePercentiles[:0]
	s.charProbabilities = s.charProbabilities[:0]
	s.averageSpeed = 0
}

// InputX returns the x coordinate of sampled point i.
func (s *State) InputX(i int) int { return s.sampledXs[i] }

// InputY returns the y coordinate of sampled point i.
func (s *State) InputY(i int) int { return s.sampledYs[i] }

// InputTime returns the timestamp of sampled point i.
func (s *State) InputTime(i int) int { return s.times[i] }

// InputIndex returns the raw-trajectory index sampled point i came from.
func (s *State) InputIndex(i int) int { return s.inputIndexes[i] }

// PathLength returns the cumulative path length up to sampled point i.
func (s *State) PathLength(i int) int { return s.lengthCache[i] }

// Duration returns the time between sampled points i and i+1, or 0 when i
// is the last point or out of range.
func (s *State) Duration(i int) int {
	if i >= 0 && i < s.sampledSize-1 {
		return s.times[i+1] - s.times[i]
	}
	return 0
}

// Direction returns the path direction (radians) from sampled point i0 to
// i1, or 0 when either index is out of range.
func (s *State) Direction(i0, i1 int) float64 {
	if i0 < 0 || i0 > s.sampledSize-1 {
		return 0
	}
	if i1 < 0 || i1 > s.sampledSize-1 {
		return 0
	}
	return direction(s.sampledXs[i0], s.sampledYs[i0], s.sampledXs[i1], s.sampledYs[i1])
}

// SpeedRate returns the local speed of sampled point i relative to the
// stroke average. Gesture mode only; 0 otherwise.
func (s *State) SpeedRate(i int) float64 {
	if i < 0 || i >= len(s.speedRates) {
		return 0
	}
	return s.speedRates[i]
}

// BeelineSpeedPercentile returns the 0-100 beeline-speed score of sampled
// point i, where 50 is the stroke's average speed. Gesture mode only.
func (s *State) BeelineSpeedPercentile(i int) int {
	if i < 0 || i >= len(s.beelinePercentiles) {
		return 0
	}
	return s.beelinePercentiles[i]
}

// AverageSpeed returns the stroke's average speed (length units per time
// unit). Gesture mode only.
func (s *State) AverageSpeed() float64 { return s.averageSpeed }

// SpaceY returns the y coordinate of the space key's center, or
// geometry.NotACoordinate when the layout has no space key.
func (s *State) SpaceY() int {
	keyID := s.geo.KeyIndexOf(' ')
	if keyID == geometry.NotAnIndex {
		return geometry.NotACoordinate
	}
	_, y := s.geo.KeyCenter(keyID)
	return y
}

// HasSpaceProximity reports whether sampled point i is within proximity
// range of the space key.
func (s *State) HasSpaceProximity(i int) (bool, error) {
	if i < 0 || i >= s.sampledSize {
		return false, ErrIndexOutOfRange
	}
	return s.geo.HasSpaceProximity(s.sampledXs[i], s.sampledYs[i]), nil
}

func (s *State) debug(msg string, args ...any) {
	if s.log != nil {
		s.log.Debug(msg, args...)
	}
}

// dumpSampledPoints traces every sampled point through the diagnostics sink.
func (s *State) dumpSampledPoints() {
	if s.log == nil || !s.log.Enabled(context.Background(), logging.LevelDebug) {
		return
	}
	for i := 0; i < s.sampledSize; i++ {
		s.log.Debug("sampled point",
			"i", i,
			"x", s.sampledXs[i],
			"y", s.sampledYs[i],
			"time", s.times[i],
			"speed_rate", s.SpeedRate(i),
			"beeline", s.BeelineSpeedPercentile(i))
	}
}

func sampleTime(traj *Trajectory, i int) int {
	if traj.Times == nil {
		return 0
	}
	return traj.Times[i]
}

func direction(x0, y0, x1, y1 int) float64 {
	return math.Atan2(float64(y1-y0), float64(x1-x0))
}
