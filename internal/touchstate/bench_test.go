package touchstate

import (
	"testing"

	"glidetype/internal/geometry"
)

// benchStroke synthesizes a zig-zag gesture across the keyboard with enough
// raw points that the resampler has work to do.
func benchStroke(kb *geometry.Keyboard, points int) *Trajectory {
	traj := &Trajectory{}
	w := kb.KeyboardWidth()
	h := kb.KeyboardHeight()
	x, y := w/8, h/4
	dx := 17
	for i := 0; i < points; i++ {
		x += dx
		if x >= w-w/8 || x <= w/8 {
			dx = -dx
			y += h / 8
			if y >= h-h/8 {
				y = h / 4
			}
		}
		traj.Xs = append(traj.Xs, x)
		traj.Ys = append(traj.Ys, y)
		traj.Times = append(traj.Times, i*8)
	}
	return traj
}

func BenchmarkInitializeFull(b *testing.B) {
	kb := geometry.QWERTY()
	traj := benchStroke(kb, 256)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		st := NewState(DefaultTuning(), nil)
		st.Initialize(1, 16.0, kb, traj, true)
	}
}

// BenchmarkInitializeIncremental measures the per-event cost of a growing
// stroke, where only the retracted tail should be recomputed.
func BenchmarkInitializeIncremental(b *testing.B) {
	kb := geometry.QWERTY()
	traj := benchStroke(kb, 256)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		st := NewState(DefaultTuning(), nil)
		for n := 1; n <= traj.Size(); n++ {
			st.Initialize(1, 16.0, kb, prefix(traj, n), true)
		}
	}
}

func BenchmarkMostProbableString(b *testing.B) {
	kb := geometry.QWERTY()
	traj := benchStroke(kb, 256)
	st := NewState(DefaultTuning(), nil)
	st.Initialize(1, 16.0, kb, traj, true)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		st.MostProbableString()
	}
}
