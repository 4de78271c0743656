package touchstate

import (
	"unicode"

	"golang.org/x/text/unicode/norm"

	"glidetype/internal/geometry"
)

// ProximityType is the tap-mode match tier of a dictionary character against
// the proximity list recorded for an input position.
type ProximityType int

const (
	// EquivalentChar is an exact or case-only match of what the user typed
	// at this position.
	EquivalentChar ProximityType = iota
	// NearProximityChar matched a key adjacent to the typed one, or is the
	// accent-folded form of it.
	NearProximityChar
	// AdditionalProximityChar matched only the weaker tier after the
	// delimiter.
	AdditionalProximityChar
	// UnrelatedChar matched nothing.
	UnrelatedChar
)

func (p ProximityType) String() string {
	switch p {
	case EquivalentChar:
		return "equivalent"
	case NearProximityChar:
		return "near"
	case AdditionalProximityChar:
		return "additional"
	default:
		return "unrelated"
	}
}

// buildProximityCodePoints fills the per-position proximity lists for a
// tap-mode trajectory through the geometry oracle.
func (s *State) buildProximityCodePoints(traj *Trajectory) {
	size := traj.Size()
	s.proximityCodePoints = make([][]rune, size)
	for i := 0; i < size; i++ {
		code := geometry.NotACode
		if traj.Codes != nil && i < len(traj.Codes) {
			code = traj.Codes[i]
		}
		x, y := geometry.NotACoordinate, geometry.NotACoordinate
		if traj.Xs != nil && traj.Ys != nil {
			x, y = traj.Xs[i], traj.Ys[i]
		}
		if code == geometry.NotACode {
			continue
		}
		s.proximityCodePoints[i] = s.geo.ProximityCodePoints(code, x, y)
	}
}

// refreshTapDistances records the primary code point per position and, when
// sweet-spot data is available, the scaled normalized squared distance from
// each tap to every code point in its proximity list.
func (s *State) refreshTapDistances(traj *Trajectory) {
	size := traj.Size()
	s.primaryInputWord = make([]rune, 0, size)
	for i := 0; i < size; i++ {
		s.primaryInputWord = append(s.primaryInputWord, s.PrimaryCodePointAt(i))
	}

	if !s.touchCorrection {
		return
	}
	s.squaredDistances = make([][]int, s.sampledSize)
	for i := 0; i < s.sampledSize && i < size; i++ {
		list := s.proximityCodePointsAt(i)
		row := make([]int, len(list))
		for j, cp := range list {
			if cp == geometry.AdditionalProximityDelimiter {
				row[j] = NotADistance
				continue
			}
			d := s.normalizedSweetSpotDistance(s.geo.KeyIndexOf(cp), i)
			switch {
			case d >= 0:
				row[j] = int(d * DistanceScalingFactor)
			case j == 0:
				row[j] = EquivalentCharWithoutDistanceInfo
			default:
				row[j] = ProximityCharWithoutDistanceInfo
			}
		}
		s.squaredDistances[i] = row
	}
}

// normalizedSweetSpotDistance returns the squared distance from sampled
// point i to the key's sweet-spot center divided by the squared sweet-spot
// radius, so a touch exactly on the center reads 0.0 and one radius away
// reads 1.0. Missing sweet-spot data or coordinates read as -1.
func (s *State) normalizedSweetSpotDistance(keyIndex, i int) float64 {
	if keyIndex == geometry.NotAnIndex {
		return float64(NotADistance)
	}
	if !s.geo.HasSweetSpotData(keyIndex) {
		return float64(NotADistance)
	}
	if s.sampledXs[i] == geometry.NotACoordinate {
		return float64(NotADistance)
	}
	cx, cy := s.geo.SweetSpotCenter(keyIndex)
	dx := float64(s.sampledXs[i]) - cx
	dy := float64(s.sampledYs[i]) - cy
	r := s.geo.SweetSpotRadius(keyIndex)
	return (dx*dx + dy*dy) / (r * r)
}

// PrimaryCodePointAt returns the code point assumed typed at raw position i
// (the first proximity slot), or geometry.NotACode.
func (s *State) PrimaryCodePointAt(i int) rune {
	list := s.proximityCodePointsAt(i)
	if len(list) == 0 {
		return geometry.NotACode
	}
	return list[0]
}

// PrimaryInputWord returns the code points typed so far, one per tap.
func (s *State) PrimaryInputWord() []rune { return s.primaryInputWord }

// NormalizedSquaredDistance returns the scaled tap distance for the given
// raw position and proximity-list slot, or NotADistance when no distance
// data was recorded.
func (s *State) NormalizedSquaredDistance(position, slot int) int {
	if position < 0 || position >= len(s.squaredDistances) {
		return NotADistance
	}
	row := s.squaredDistances[position]
	if slot < 0 || slot >= len(row) {
		return NotADistance
	}
	return row[slot]
}

func (s *State) proximityCodePointsAt(i int) []rune {
	if i < 0 || i >= len(s.proximityCodePoints) {
		return nil
	}
	return s.proximityCodePoints[i]
}

// MatchedProximityType classifies dictionary code point c against the
// proximity list at raw position index. The second return is the matching
// proximity-list slot for near and additional matches, or
// geometry.NotAnIndex.
//
// Accented characters sit alone in their proximity slot, so only explicit
// accent folding relates them to their base letter: the fold of the primary
// matching c is a near match, but keys adjacent to the base letter are not
// implied for the accented form.
func (s *State) MatchedProximityType(index int, c rune, checkProximity bool) (ProximityType, int, error) {
	list := s.proximityCodePointsAt(index)
	if len(list) == 0 {
		return UnrelatedChar, geometry.NotAnIndex, ErrIndexOutOfRange
	}
	primary := list[0]
	baseLowerC := BaseLowerCodePoint(c)

	// The first slot is what the user typed; matching it outright (or up to
	// case) means the word has that same character here. Accent differences
	// are deliberately not equivalent: they fold to a near match below.
	if primary == c || primary == unicode.ToLower(c) {
		return EquivalentChar, geometry.NotAnIndex, nil
	}

	if !checkProximity {
		return UnrelatedChar, geometry.NotAnIndex, nil
	}

	// c and the typed character differ only by accents.
	if BaseLowerCodePoint(primary) == baseLowerC {
		return NearProximityChar, geometry.NotAnIndex, nil
	}

	j := 1
	for j < len(list) && list[j] != geometry.AdditionalProximityDelimiter {
		if list[j] == baseLowerC || list[j] == c {
			return NearProximityChar, j, nil
		}
		j++
	}
	if j < len(list) && list[j] == geometry.AdditionalProximityDelimiter {
		j++
		for j < len(list) {
			if list[j] == baseLowerC || list[j] == c {
				return AdditionalProximityChar, j, nil
			}
			j++
		}
	}
	return UnrelatedChar, geometry.NotAnIndex, nil
}

// BaseLowerCodePoint lowercases a code point and strips combining marks, so
// 'É' folds to 'e'. Code points that decompose to nothing fold to
// themselves.
func BaseLowerCodePoint(c rune) rune {
	decomposed := norm.NFD.String(string(c))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		return unicode.ToLower(r)
	}
	return unicode.ToLower(c)
}
