package touchstate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glidetype/internal/geometry"
	"glidetype/internal/logging"
)

// gestureTrajectory interpolates a path through the given key code points on
// the keyboard, one sample every stepPx along each leg, 10ms apart.
func gestureTrajectory(t *testing.T, kb *geometry.Keyboard, word string, stepPx int) *Trajectory {
	t.Helper()
	traj := &Trajectory{}
	now := 0
	push := func(x, y int) {
		traj.Xs = append(traj.Xs, x)
		traj.Ys = append(traj.Ys, y)
		traj.Times = append(traj.Times, now)
		now += 10
	}
	var prevX, prevY int
	for i, c := range word {
		ki := kb.KeyIndexOf(c)
		require.NotEqual(t, geometry.NotAnIndex, ki, "key %q missing from layout", c)
		x, y := kb.KeyCenter(ki)
		if i == 0 {
			push(x, y)
		} else {
			dx, dy := x-prevX, y-prevY
			steps := max(abs(dx), abs(dy)) / stepPx
			for s := 1; s <= steps; s++ {
				push(prevX+dx*s/(steps+1), prevY+dy*s/(steps+1))
			}
			push(x, y)
		}
		prevX, prevY = x, y
	}
	return traj
}

func prefix(traj *Trajectory, n int) *Trajectory {
	return &Trajectory{
		Xs:    traj.Xs[:n],
		Ys:    traj.Ys[:n],
		Times: traj.Times[:n],
	}
}

func TestDiagnosticsSinkDumpsSampledPoints(t *testing.T) {
	kb := geometry.QWERTY()
	traj := gestureTrajectory(t, kb, "go", 20)

	logPath := filepath.Join(t.TempDir(), "trace.log")
	log, err := logging.New(&logging.Config{
		Level:    logging.LevelDebug,
		Format:   logging.FormatJSON,
		Output:   "file",
		FilePath: logPath,
	})
	require.NoError(t, err)
	defer log.Close()

	st := NewState(DefaultTuning(), log)
	st.Initialize(1, 16.0, kb, traj, true)
	require.NoError(t, log.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	out := string(data)
	assert.Equal(t, st.SampledSize(), strings.Count(out, `"msg":"sampled point"`))
	assert.Contains(t, out, `"speed_rate":`)
	assert.Contains(t, out, `"beeline":`)
}

func TestInitializeBounds(t *testing.T) {
	kb := geometry.QWERTY()
	traj := gestureTrajectory(t, kb, "hello", 20)

	st := NewState(DefaultTuning(), nil)
	st.Initialize(0, 16.0, kb, traj, true)

	n := st.SampledSize()
	require.Greater(t, n, 0)
	assert.LessOrEqual(t, n, traj.Size(), "sampled size must not exceed raw size")

	// Every per-point vector is resized in lockstep.
	assert.Len(t, st.sampledXs, n)
	assert.Len(t, st.sampledYs, n)
	assert.Len(t, st.times, n)
	assert.Len(t, st.inputIndexes, n)
	assert.Len(t, st.lengthCache, n)
	assert.Len(t, st.nearKeys, n)
	assert.Len(t, st.searchKeys, n)
	assert.Len(t, st.distanceCache, n*kb.KeyCount())
	assert.Len(t, st.speedRates, n)
	assert.Len(t, st.directions, n)
	assert.Len(t, st.beelinePercentiles, n)
	assert.Len(t, st.charProbabilities, n)

	// Length cache is non-decreasing and the index map strictly increasing.
	for i := 1; i < n; i++ {
		assert.GreaterOrEqual(t, st.lengthCache[i], st.lengthCache[i-1])
		assert.Greater(t, st.inputIndexes[i], st.inputIndexes[i-1])
	}

	// Search keys are a superset of near keys at every point.
	for i := 0; i < n; i++ {
		assert.True(t, st.searchKeys[i].ContainsAll(st.nearKeys[i]),
			"searchKeys[%d] must contain nearKeys[%d]", i, i)
	}
}

func TestInitializeMissingCoordinates(t *testing.T) {
	kb := geometry.QWERTY()
	st := NewState(DefaultTuning(), nil)

	// Tap mode without coordinates is a valid no-spatial-correction setup.
	st.Initialize(0, 16.0, kb, &Trajectory{Codes: []rune("he")}, false)
	assert.Equal(t, 0, st.SampledSize())
	assert.Equal(t, 'h', st.PrimaryCodePointAt(0))
	assert.Equal(t, 'e', st.PrimaryCodePointAt(1))
	assert.Equal(t, NotADistance, st.NormalizedSquaredDistance(0, 0))
}

func TestReadAccessorsAreDeterministic(t *testing.T) {
	kb := geometry.QWERTY()
	traj := gestureTrajectory(t, kb, "the", 20)

	st := NewState(DefaultTuning(), nil)
	st.Initialize(0, 16.0, kb, traj, true)

	word1, score1 := st.MostProbableString()
	word2, score2 := st.MostProbableString()
	assert.Equal(t, word1, word2)
	assert.Equal(t, score1, score2)

	for i := 0; i < st.SampledSize(); i++ {
		d1 := st.PointToKeyLength(i, 't')
		d2 := st.PointToKeyLength(i, 't')
		assert.Equal(t, d1, d2)
		assert.Equal(t, st.BeelineSpeedPercentile(i), st.BeelineSpeedPercentile(i))
	}
}

func TestGestureContinuationEquivalence(t *testing.T) {
	kb := geometry.QWERTY()
	full := gestureTrajectory(t, kb, "hello", 20)
	n := full.Size()

	oneShot := NewState(DefaultTuning(), nil)
	oneShot.Initialize(0, 16.0, kb, full, true)

	for _, k := range []int{n / 4, n / 2, 3 * n / 4} {
		if k < 2 {
			continue
		}
		incremental := NewState(DefaultTuning(), nil)
		incremental.Initialize(0, 16.0, kb, prefix(full, k), true)
		incremental.Initialize(0, 16.0, kb, full, true)
		require.True(t, incremental.Continued(), "prefix %d: continuation expected", k)

		// The trailing two sampled points are recomputed and may differ
		// until the stroke is finalized; everything before them must match
		// the one-shot run exactly.
		stable := min(oneShot.SampledSize(), incremental.SampledSize()) - 2
		require.Greater(t, stable, 0)
		for i := 0; i < stable; i++ {
			assert.Equal(t, oneShot.sampledXs[i], incremental.sampledXs[i], "x[%d] prefix %d", i, k)
			assert.Equal(t, oneShot.sampledYs[i], incremental.sampledYs[i], "y[%d] prefix %d", i, k)
			assert.Equal(t, oneShot.times[i], incremental.times[i], "time[%d] prefix %d", i, k)
			assert.Equal(t, oneShot.inputIndexes[i], incremental.inputIndexes[i], "index[%d] prefix %d", i, k)
			assert.Equal(t, oneShot.lengthCache[i], incremental.lengthCache[i], "length[%d] prefix %d", i, k)
			for kk := 0; kk < kb.KeyCount(); kk++ {
				assert.Equal(t,
					oneShot.distanceCache[i*kb.KeyCount()+kk],
					incremental.distanceCache[i*kb.KeyCount()+kk],
					"distance[%d,%d] prefix %d", i, kk, k)
				assert.Equal(t, oneShot.nearKeys[i].Test(kk), incremental.nearKeys[i].Test(kk),
					"nearKeys[%d,%d] prefix %d", i, kk, k)
			}
			// Search keys from the incremental run may retain contributions
			// of since-retracted points; they must never lose any bit the
			// one-shot run has.
			assert.True(t, incremental.searchKeys[i].ContainsAll(oneShot.searchKeys[i]),
				"searchKeys[%d] prefix %d lost bits", i, k)
		}
	}
}

func TestGestureContinuationRejectsMismatch(t *testing.T) {
	kb := geometry.QWERTY()
	traj := gestureTrajectory(t, kb, "hi", 20)

	st := NewState(DefaultTuning(), nil)
	st.Initialize(0, 16.0, kb, traj, true)
	require.Greater(t, st.SampledSize(), 0)

	// Perturb a coordinate the cached state relied on: full rebuild, no
	// error.
	mutated := &Trajectory{
		Xs:    append([]int(nil), traj.Xs...),
		Ys:    append([]int(nil), traj.Ys...),
		Times: append([]int(nil), traj.Times...),
	}
	mutated.Xs[st.inputIndexes[0]] += 5
	st.Initialize(0, 16.0, kb, mutated, true)
	assert.False(t, st.Continued())
	assert.Greater(t, st.SampledSize(), 0)

	// A shrinking trajectory also degrades to a rebuild.
	st.Initialize(0, 16.0, kb, prefix(mutated, 1), true)
	assert.False(t, st.Continued())
}

func TestTapContinuation(t *testing.T) {
	kb := geometry.QWERTY()
	center := func(c rune) (int, int) { return kb.KeyCenter(kb.KeyIndexOf(c)) }
	hx, hy := center('h')
	ix, iy := center('i')

	st := NewState(DefaultTuning(), nil)
	st.Initialize(0, 16.0, kb, &Trajectory{
		Codes: []rune{'h'}, Xs: []int{hx}, Ys: []int{hy}, Times: []int{0},
	}, false)
	require.Equal(t, 1, st.SampledSize())

	st.Initialize(0, 16.0, kb, &Trajectory{
		Codes: []rune{'h', 'i'}, Xs: []int{hx, ix}, Ys: []int{hy, iy}, Times: []int{0, 80},
	}, false)
	assert.True(t, st.Continued())
	assert.Equal(t, 2, st.SampledSize())
	assert.Equal(t, []rune{'h', 'i'}, st.PrimaryInputWord())

	// Shrinking raw input invalidates the tap cache.
	st.Initialize(0, 16.0, kb, &Trajectory{
		Codes: []rune{'h'}, Xs: []int{hx}, Ys: []int{hy}, Times: []int{0},
	}, false)
	assert.False(t, st.Continued())
}

func TestDurationAndDirection(t *testing.T) {
	kb := geometry.QWERTY()
	st := NewState(DefaultTuning(), nil)
	st.Initialize(0, 16.0, kb, &Trajectory{
		Xs:    []int{100, 400, 400},
		Ys:    []int{100, 100, 400},
		Times: []int{0, 30, 90},
	}, true)
	require.Equal(t, 3, st.SampledSize())

	assert.Equal(t, 30, st.Duration(0))
	assert.Equal(t, 60, st.Duration(1))
	assert.Equal(t, 0, st.Duration(2), "last point has no successor")
	assert.Equal(t, 0, st.Duration(-1))

	assert.InDelta(t, 0.0, st.Direction(0, 1), 1e-9, "eastward leg")
	assert.InDelta(t, 1.5707963, st.Direction(1, 2), 1e-6, "southward leg")
	assert.Equal(t, 0.0, st.Direction(0, 99), "out of range reads 0")
}

func TestGuardedAccessorErrors(t *testing.T) {
	kb := geometry.QWERTY()
	st := NewState(DefaultTuning(), nil)
	st.Initialize(0, 16.0, kb, gestureTrajectory(t, kb, "no", 20), true)

	_, err := st.IsKeyReachable(st.SampledSize(), 0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = st.IsKeyReachable(0, -1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = st.Probability(-1, 0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = st.HasSpaceProximity(st.SampledSize())
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestSearchKeysPruneFarKeys(t *testing.T) {
	kb := geometry.QWERTY()
	// A long stroke across the whole board: the forward window must make
	// keys near the start unreachable from late points.
	traj := gestureTrajectory(t, kb, "qpqp", 20)

	st := NewState(DefaultTuning(), nil)
	st.Initialize(0, 16.0, kb, traj, true)
	n := st.SampledSize()
	require.Greater(t, n, 4)

	qKey := kb.KeyIndexOf('q')
	early, err := st.IsKeyReachable(0, qKey)
	require.NoError(t, err)
	assert.True(t, early, "q must be reachable from the stroke start")

	// From the very last point, only keys within the tail window remain.
	last := n - 1
	pKey := kb.KeyIndexOf('p')
	late, err := st.IsKeyReachable(last, pKey)
	require.NoError(t, err)
	assert.True(t, late, "p is under the final point")

	stale, err := st.IsKeyReachable(last, qKey)
	require.NoError(t, err)
	assert.False(t, stale, "q is outside the final point's forward window")
}

func TestAllPossibleCodePointsDeduplicates(t *testing.T) {
	kb := geometry.QWERTY()
	st := NewState(DefaultTuning(), nil)
	st.Initialize(0, 16.0, kb, gestureTrajectory(t, kb, "fg", 30), true)
	require.Greater(t, st.SampledSize(), 0)

	filter := st.AllPossibleCodePoints(0, nil)
	filter = st.AllPossibleCodePoints(0, filter)
	seen := map[rune]int{}
	for _, c := range filter {
		seen[c]++
	}
	for c, count := range seen {
		assert.Equal(t, 1, count, "code point %q duplicated", c)
	}
	assert.Contains(t, filter, 'f')
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
