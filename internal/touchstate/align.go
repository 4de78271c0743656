package touchstate

import (
	"math"
	"sort"

	"glidetype/internal/geometry"
)

// updateAlignProbabilities assigns each newly added sampled point a sparse
// map of key index to score, lower meaning a better explanation of the
// point. The map always carries the SkipKey pseudo-entry. The shape below is
// one policy, not a contract: a speed-widened Gaussian over normalized key
// distance, with skipping cheap where the finger moves fast or touches no
// key and expensive where it lingers on one.
func (s *State) updateAlignProbabilities(lastSavedSize int) {
	n := s.sampledSize
	s.charProbabilities = resizeProbMaps(s.charProbabilities, n)

	for i := lastSavedSize; i < n; i++ {
		m := make(map[int]float64)
		speed := s.speedRates[i]

		sigma := s.tuning.AlignBaseSigma
		if speed > 1 {
			boost := speed - 1
			if boost > 1 {
				boost = 1
			}
			sigma *= 1 + boost*s.tuning.AlignSpeedSigmaBoost
		}

		minDistance := s.tuning.NearKeyThreshold
		row := i * s.keyCount
		for k := 0; k < s.keyCount; k++ {
			if !s.nearKeys[i].Test(k) {
				continue
			}
			d := s.distanceCache[row+k]
			m[k] = 0.5*d/(sigma*sigma) + math.Log(sigma)
			if d < minDistance {
				minDistance = d
			}
		}

		m[SkipKey] = s.skipScore(i, n, speed, minDistance)
		s.charProbabilities[i] = m
	}
}

// skipScore prices the "align to nothing" option. Slowness and nearness to a
// key both push the price up; the stroke endpoints carry an extra penalty
// because users start and finish gestures on intended keys.
func (s *State) skipScore(i, sampledSize int, speed, minDistance float64) float64 {
	fastness := speed / 2
	if fastness > 1 {
		fastness = 1
	} else if fastness < 0 {
		fastness = 0
	}
	nearness := math.Exp(-minDistance)
	score := s.tuning.SkipMinCost +
		(s.tuning.SkipMaxCost-s.tuning.SkipMinCost)*(1-fastness)*nearness
	if i == 0 || i == sampledSize-1 {
		score += s.tuning.TerminalSkipPenalty
	}
	return score
}

// Probability returns the alignment score of keyIndex at sampled point i,
// or MaxPointToKeyLength when the key is not in the point's sparse map.
// Lower is better.
func (s *State) Probability(i, keyIndex int) (float64, error) {
	if i < 0 || i >= s.sampledSize {
		return 0, ErrIndexOutOfRange
	}
	if i >= len(s.charProbabilities) {
		return MaxPointToKeyLength, nil
	}
	if p, ok := s.charProbabilities[i][keyIndex]; ok {
		return p, nil
	}
	return MaxPointToKeyLength, nil
}

// MostProbableString reconstructs a best-effort code-point sequence from the
// per-point alignment maps, returning the string and the accumulated score
// of the chosen entries (lower is more plausible).
//
// Each sampled point independently contributes its minimal-score entry, with
// the skip pseudo-key demoted by DemotionLogProbability; skip contributes no
// character. The walk is deliberately greedy: a globally optimal sequence
// needs dynamic programming, which was traded away for per-touch-move
// latency. Exact score ties break toward the smallest key index so repeated
// calls agree.
func (s *State) MostProbableString() (string, float64) {
	var out []rune
	sum := 0.0
	for i := 0; i < s.sampledSize && len(out) < MaxWordLength-1; i++ {
		if i >= len(s.charProbabilities) {
			break
		}
		best := MaxPointToKeyLength
		bestKey := SkipKey
		for _, k := range sortedKeys(s.charProbabilities[i]) {
			score := s.charProbabilities[i][k]
			if k == SkipKey {
				score += s.tuning.DemotionLogProbability
			}
			if score < best {
				best = score
				bestKey = k
			}
		}
		if bestKey != SkipKey {
			if cp := s.geo.CodePointOf(bestKey); cp != geometry.NotACode {
				out = append(out, cp)
			}
		}
		sum += best
	}
	return string(out), sum
}

// sortedKeys orders a probability map deterministically: SkipKey (-1) first,
// then ascending key indexes.
func sortedKeys(m map[int]float64) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func resizeProbMaps(v []map[int]float64, n int) []map[int]float64 {
	if cap(v) < n {
		next := make([]map[int]float64, n)
		copy(next, v)
		return next
	}
	old := len(v)
	v = v[:n]
	for i := old; i < n; i++ {
		v[i] = nil
	}
	return v
}
