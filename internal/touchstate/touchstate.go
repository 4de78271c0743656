// Package touchstate turns raw touch trajectories into the normalized
// per-point statistical state a word decoder scores dictionary candidates
// against.
//
// The central type is State: one instance per active pointer, re-initialized
// (not recreated) on every touch-move with the full trajectory so far. When
// the new trajectory extends the previous one, State keeps the stable prefix
// of its caches and recomputes only the tail; otherwise it rebuilds from
// scratch. All other methods are pure reads over the current caches and may
// be called any number of times between Initialize calls.
//
// A State is owned by exactly one pointer context and is not safe for
// concurrent use.
package touchstate

import (
	"errors"
	"fmt"
)

// MaxWordLength bounds reconstructed words and the tap-mode continuation
// prefix check.
const MaxWordLength = 48

// MaxPointToKeyLength is the distance reported for code points that are not
// on the keyboard at all. Callers treat it as "no spatial evidence".
const MaxPointToKeyLength float64 = 10000000

// SkipKey is the pseudo-key index in alignment probability maps meaning
// "this sampled point aligns to no key".
const SkipKey = -1

// Normalized-squared-distance table encoding (tap mode).
const (
	// DistanceScalingFactor scales float normalized squared distances into
	// the integer table.
	DistanceScalingFactor = 1 << 10

	// NotADistance marks a slot with no distance information at all.
	NotADistance = -1
	// EquivalentCharWithoutDistanceInfo marks the primary slot when sweet-spot
	// data is unavailable: the character matches, there is just nothing to
	// scale by.
	EquivalentCharWithoutDistanceInfo = 0
	// ProximityCharWithoutDistanceInfo marks a non-primary slot without
	// sweet-spot data.
	ProximityCharWithoutDistanceInfo = -2
)

// ErrIndexOutOfRange is returned by guarded accessors when the sampled-point
// or raw-position index is outside the current state.
var ErrIndexOutOfRange = errors.New("touchstate: index out of range")

// Tuning holds the numeric policy knobs of the engine. Zero values are not
// usable; start from DefaultTuning.
type Tuning struct {
	// NearKeyThreshold is the normalized squared distance below which a key
	// is "near" a sampled point and seeds the alignment model.
	NearKeyThreshold float64

	// ForwardWindowScale scales the keyboard diagonal into the path-length
	// budget of the forward search-key window.
	ForwardWindowScale float64

	// SampleSpacingScale scales the most common key width into the minimum
	// spacing between gesture-mode sampled points.
	SampleSpacingScale float64

	// DemotionLogProbability is added to the skip pseudo-key's score during
	// greedy reconstruction, biasing reconstruction toward emitting keys.
	DemotionLogProbability float64

	// AlignBaseSigma is the base width of the distance cost curve in the
	// alignment model, in key widths.
	AlignBaseSigma float64

	// AlignSpeedSigmaBoost widens the cost curve when the finger moves
	// faster than the stroke average.
	AlignSpeedSigmaBoost float64

	// SkipMinCost and SkipMaxCost bound the skip pseudo-key score. Slow
	// movement directly over a key costs SkipMaxCost to skip; fast movement
	// far from any key costs SkipMinCost.
	SkipMinCost float64
	SkipMaxCost float64

	// TerminalSkipPenalty is added to the skip score at the first and last
	// sampled points, which almost always sit on intended keys.
	TerminalSkipPenalty float64

	// BeelineLookupRadiusScale scales the most common key width into the
	// path-length window of the beeline speed measurement.
	BeelineLookupRadiusScale float64
}

// DefaultTuning returns the stock engine parameters.
func DefaultTuning() Tuning {
	return Tuning{
		NearKeyThreshold:         4.0,
		ForwardWindowScale:       0.95,
		SampleSpacingScale:       0.25,
		DemotionLogProbability:   0.3,
		AlignBaseSigma:           0.6,
		AlignSpeedSigmaBoost:     0.5,
		SkipMinCost:              0.1,
		SkipMaxCost:              3.0,
		TerminalSkipPenalty:      1.0,
		BeelineLookupRadiusScale: 1.0,
	}
}

// Validate checks the tuning for internally consistent values.
func (t Tuning) Validate() error {
	if t.NearKeyThreshold <= 0 {
		return fmt.Errorf("near key threshold must be positive, got %v", t.NearKeyThreshold)
	}
	if t.ForwardWindowScale <= 0 || t.ForwardWindowScale > 2 {
		return fmt.Errorf("forward window scale must be in (0, 2], got %v", t.ForwardWindowScale)
	}
	if t.SampleSpacingScale < 0 || t.SampleSpacingScale >= 1 {
		return fmt.Errorf("sample spacing scale must be in [0, 1), got %v", t.SampleSpacingScale)
	}
	if t.DemotionLogProbability < 0 {
		return fmt.Errorf("demotion log probability must be non-negative, got %v", t.DemotionLogProbability)
	}
	if t.AlignBaseSigma <= 0 {
		return fmt.Errorf("alignment sigma must be positive, got %v", t.AlignBaseSigma)
	}
	if t.SkipMinCost < 0 || t.SkipMaxCost < t.SkipMinCost {
		return fmt.Errorf("skip cost bounds invalid: min %v, max %v", t.SkipMinCost, t.SkipMaxCost)
	}
	if t.BeelineLookupRadiusScale <= 0 {
		return fmt.Errorf("beeline lookup radius scale must be positive, got %v", t.BeelineLookupRadiusScale)
	}
	return nil
}
