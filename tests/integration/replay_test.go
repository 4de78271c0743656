// Package integration exercises the full replay path: config, layout
// parsing, incremental engine updates, and trace persistence together.
package integration

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glidetype/internal/config"
	"glidetype/internal/geometry"
	"glidetype/internal/touchstate"
	"glidetype/internal/tracestore"
)

// strokeAcross generates a horizontal gesture between two key centers with
// evenly spaced samples.
func strokeAcross(kb *geometry.Keyboard, from, to rune, samples int) *touchstate.Trajectory {
	x0, y0 := kb.KeyCenter(kb.KeyIndexOf(from))
	x1, y1 := kb.KeyCenter(kb.KeyIndexOf(to))

	traj := &touchstate.Trajectory{}
	for i := 0; i < samples; i++ {
		f := float64(i) / float64(samples-1)
		traj.Xs = append(traj.Xs, x0+int(f*float64(x1-x0)))
		traj.Ys = append(traj.Ys, y0+int(f*float64(y1-y0)))
		traj.Times = append(traj.Times, i*16)
	}
	return traj
}

func prefix(traj *touchstate.Trajectory, n int) *touchstate.Trajectory {
	return &touchstate.Trajectory{
		Xs:    traj.Xs[:n],
		Ys:    traj.Ys[:n],
		Times: traj.Times[:n],
	}
}

func TestConfiguredGestureReplay(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	doc := `
version = 1

[storage]
path = "` + filepath.ToSlash(filepath.Join(dir, "traces.db")) + `"

[logging]
level = "error"
`
	require.NoError(t, os.WriteFile(configPath, []byte(doc), 0o644))

	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	kb := geometry.QWERTY()
	traj := strokeAcross(kb, 'a', 'k', 40)

	// Incremental replay, the way a keyboard delivers touch events.
	incremental := touchstate.NewState(cfg.Tuning(), nil)
	continuations := 0
	for n := 1; n <= traj.Size(); n++ {
		incremental.Initialize(1, cfg.Proximity.MaxPointToKeyLength, kb, prefix(traj, n), true)
		if incremental.Continued() {
			continuations++
		}
	}
	require.Greater(t, incremental.SampledSize(), 2)
	assert.Greater(t, continuations, 0, "a growing stroke should reuse its prefix")

	// One-shot replay of the same trajectory.
	oneShot := touchstate.NewState(cfg.Tuning(), nil)
	oneShot.Initialize(1, cfg.Proximity.MaxPointToKeyLength, kb, traj, true)
	require.Equal(t, oneShot.SampledSize(), incremental.SampledSize())

	for i := 0; i < oneShot.SampledSize(); i++ {
		assert.Equal(t, oneShot.InputX(i), incremental.InputX(i), "x at %d", i)
		assert.Equal(t, oneShot.InputY(i), incremental.InputY(i), "y at %d", i)
		assert.Equal(t, oneShot.PathLength(i), incremental.PathLength(i), "length at %d", i)
	}

	// Retained sampled points keep the speed rates computed against the
	// stroke average at the time they were sampled, so incremental alignment
	// scores drift slightly from a one-shot run. The reconstructed word must
	// still agree.
	wordA, scoreA := oneShot.MostProbableString()
	wordB, scoreB := incremental.MostProbableString()
	assert.Equal(t, wordA, wordB)
	assert.InDelta(t, scoreA, scoreB, 0.5)
	assert.NotEmpty(t, wordA)
	assert.False(t, math.IsNaN(scoreA))

	// Persist the trace with its result and read it back.
	store, err := tracestore.Open(cfg.Storage.Path, cfg.Storage.BusyTimeoutMs, cfg.Storage.MaxConnections)
	require.NoError(t, err)
	defer store.Close()

	trace := tracestore.FromTrajectory("a-to-k", kb.Name(), 1, true, traj)
	id, err := store.Save(trace)
	require.NoError(t, err)
	require.NoError(t, store.SetResult(id, wordA, scoreA))

	stored, err := store.Get(id)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, wordA, stored.Word)

	// A replay from storage matches the live replay.
	replayed := touchstate.NewState(cfg.Tuning(), nil)
	replayed.Initialize(1, cfg.Proximity.MaxPointToKeyLength, kb, stored.Trajectory(), true)
	wordC, _ := replayed.MostProbableString()
	assert.Equal(t, wordA, wordC)
}

func TestConfiguredTapReplay(t *testing.T) {
	cfg := config.DefaultConfig()
	require.NoError(t, cfg.Validate())

	kb := geometry.QWERTY()
	word := "cat"

	traj := &touchstate.Trajectory{}
	for i, c := range word {
		x, y := kb.KeyCenter(kb.KeyIndexOf(c))
		traj.Codes = append(traj.Codes, c)
		traj.Xs = append(traj.Xs, x)
		traj.Ys = append(traj.Ys, y)
		traj.Times = append(traj.Times, i*120)
	}

	st := touchstate.NewState(cfg.Tuning(), nil)
	for n := 1; n <= traj.Size(); n++ {
		st.Initialize(0, cfg.Proximity.MaxPointToKeyLength, kb, &touchstate.Trajectory{
			Codes: traj.Codes[:n],
			Xs:    traj.Xs[:n],
			Ys:    traj.Ys[:n],
			Times: traj.Times[:n],
		}, false)
	}

	assert.Equal(t, word, string(st.PrimaryInputWord()))

	// Exact characters are equivalent, neighbors are near, far keys are
	// unrelated.
	typ, _, err := st.MatchedProximityType(0, 'c', true)
	require.NoError(t, err)
	assert.Equal(t, touchstate.EquivalentChar, typ)

	typ, _, err = st.MatchedProximityType(0, 'v', true)
	require.NoError(t, err)
	assert.Equal(t, touchstate.NearProximityChar, typ)

	typ, _, err = st.MatchedProximityType(0, 'p', true)
	require.NoError(t, err)
	assert.Equal(t, touchstate.UnrelatedChar, typ)

	// Taps on key centers carry sweet-spot distances.
	assert.Equal(t, 0, st.NormalizedSquaredDistance(0, 0))
}
