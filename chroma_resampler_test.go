package hdrtools

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"
)

func yuvFrame(w, h int, format ChromaFormat, storage SampleStorage, bd int) *Frame {
	return NewFrame(FrameFormat{Width: w, Height: h, ChromaFormat: format, Storage: storage, BitDepth: bd,
		ColorSpace: ColorSpaceYCbCr, ColorPrimaries: PrimariesBT709})
}

// withFatalPanic makes fatal preconditions panic for the duration of the test.
func withFatalPanic(t *testing.T) {
	t.Helper()
	prev := fatalf
	fatalf = func(format string, args ...any) {
		panic(fmt.Sprintf(format, args...))
	}
	t.Cleanup(func() { fatalf = prev })
}

func expectFatal(t *testing.T, substr string, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Fatal("expected a fatal precondition")
		}
		if msg := fmt.Sprint(r); !strings.Contains(msg, substr) {
			t.Fatalf("fatal message %q does not mention %q", msg, substr)
		}
	}()
	fn()
}

func TestGenericResamplerFlat(t *testing.T) {
	for _, preset := range []FilterPreset{FilterF0, FilterL2, FilterL3, FilterL4, FilterL6, FilterSNW4} {
		for loc := ChromaLocLeft; loc <= ChromaLocBottom; loc++ {
			o := ResamplerOptions{Location: loc, Filter: preset}

			in := yuvFrame(7, 5, ChromaFormat444, StorageFloat, 0)
			for i := range in.FloatComp[0] {
				in.FloatComp[0][i] = float32(i) / 35
			}
			in.Fill(1, 0.3)
			in.Fill(2, -0.2)

			sub := yuvFrame(7, 5, ChromaFormat420, StorageFloat, 0)
			NewConv444to420Generic(o).Process(sub, in)
			back := yuvFrame(7, 5, ChromaFormat444, StorageFloat, 0)
			NewConv420to444Generic(o).Process(back, sub)

			for _, f := range []*Frame{sub, back} {
				for i := 0; i < f.CompSize[1]; i++ {
					if !near(float64(f.FloatComp[1][i]), 0.3, 1e-6) || !near(float64(f.FloatComp[2][i]), -0.2, 1e-6) {
						t.Fatalf("%s location %d: sample %d = %v %v", preset, loc, i, f.FloatComp[1][i], f.FloatComp[2][i])
					}
				}
				for i := range in.FloatComp[0] {
					if f.FloatComp[0][i] != in.FloatComp[0][i] {
						t.Fatalf("%s location %d: luma changed at %d", preset, loc, i)
					}
				}
				if !f.IsAvailable {
					t.Fatal("output not marked available")
				}
			}
		}
	}
}

func TestGenericResamplerFixedFlat(t *testing.T) {
	for _, tc := range []struct {
		storage SampleStorage
		bd      int
		value   float64
	}{
		{StorageUint16, 10, 700},
		{StorageUint16, 16, 65535},
		{StorageUint8, 8, 17},
	} {
		o := DefaultResamplerOptions()
		in := yuvFrame(6, 4, ChromaFormat444, tc.storage, tc.bd)
		in.Fill(1, tc.value)
		in.Fill(2, tc.value)

		h := yuvFrame(6, 4, ChromaFormat422, tc.storage, tc.bd)
		NewConv444to422Generic(o).Process(h, in)
		if h.Width[1] != 3 || h.Height[1] != 4 {
			t.Fatalf("4:2:2 chroma is %dx%d", h.Width[1], h.Height[1])
		}
		back := yuvFrame(6, 4, ChromaFormat444, tc.storage, tc.bd)
		NewConv422to444Generic(o).Process(back, h)

		for _, f := range []*Frame{h, back} {
			for c := 1; c < 3; c++ {
				for i := 0; i < f.CompSize[c]; i++ {
					if f.Value(c, i) != tc.value {
						t.Fatalf("%d-bit: plane %d sample %d = %v", tc.bd, c, i, f.Value(c, i))
					}
				}
			}
		}
	}
}

func stepFrame(w, h int, storage SampleStorage, bd int, lo, hi float64) *Frame {
	f := yuvFrame(w, h, ChromaFormat444, storage, bd)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := lo
			if x >= w/2 {
				v = hi
			}
			f.SetFixed(1, y*w+x, v)
			f.SetFixed(2, y*w+x, v)
		}
	}
	return f
}

func TestGenericResamplerBounds(t *testing.T) {
	for _, bound := range []BoundMode{BoundSupport, BoundNeighbors, BoundCenter} {
		o := ResamplerOptions{Location: ChromaLocCenter, Filter: FilterL6, Bound: bound}
		in := stepFrame(12, 4, StorageFloat, 0, -0.3, 0.3)

		sub := yuvFrame(12, 4, ChromaFormat420, StorageFloat, 0)
		NewConv444to420Generic(o).Process(sub, in)
		back := yuvFrame(12, 4, ChromaFormat444, StorageFloat, 0)
		NewConv420to444Generic(o).Process(back, sub)

		for _, f := range []*Frame{sub, back} {
			for i := 0; i < f.CompSize[1]; i++ {
				if v := float64(f.FloatComp[1][i]); v < -0.3-1e-7 || v > 0.3+1e-7 {
					t.Fatalf("bound %d: sample %d = %v overshoots", bound, i, v)
				}
			}
		}

		// Bounded output does not change flat regions.
		if v := sub.FloatComp[1][0]; !near(float64(v), -0.3, 1e-6) {
			t.Fatalf("bound %d: flat region = %v", bound, v)
		}
	}
}

func TestCrBoundsFlat(t *testing.T) {
	for _, storage := range []SampleStorage{StorageFloat, StorageUint16} {
		value, bd := 0.3, 0
		if storage == StorageUint16 {
			value, bd = 300, 10
		}
		in := yuvFrame(8, 6, ChromaFormat444, storage, bd)
		in.Fill(1, value)
		in.Fill(2, value)

		down := NewConv444to420CrBounds(ChromaLocLeft)
		var picked []int
		down.onSelect = func(_ bool, idx int) { picked = append(picked, idx) }
		sub := yuvFrame(8, 6, ChromaFormat420, storage, bd)
		down.Process(sub, in)

		up := NewConv420to444CrBounds(ChromaLocLeft)
		up.onSelect = down.onSelect
		back := yuvFrame(8, 6, ChromaFormat444, storage, bd)
		up.Process(back, sub)

		for _, f := range []*Frame{sub, back} {
			for i := 0; i < f.CompSize[1]; i++ {
				if !near(f.Value(1, i), value, 1e-6) {
					t.Fatalf("storage %d: sample %d = %v", storage, i, f.Value(1, i))
				}
			}
		}
		if len(picked) == 0 {
			t.Fatal("no filter selections observed")
		}
		for _, idx := range picked {
			if idx != 0 {
				t.Fatalf("storage %d: flat input selected candidate %d", storage, idx)
			}
		}
	}
}

func TestCrBoundsSelection(t *testing.T) {
	for _, storage := range []SampleStorage{StorageFloat, StorageUint16} {
		lo, hi, bd := 0.0, 1.0, 0
		if storage == StorageUint16 {
			lo, hi, bd = 0, 1023, 10
		}
		in := yuvFrame(8, 6, ChromaFormat444, storage, bd)
		for i := 0; i < in.CompSize[1]; i++ {
			v := lo
			if i%2 == 1 {
				v = hi
			}
			in.SetFixed(1, i, v)
			in.SetFixed(2, i, v)
		}

		down := NewConv444to420CrBounds(ChromaLocLeft)
		last := len(crBoundsPresets) - 1
		var vertical, horizontal int
		down.onSelect = func(v bool, idx int) {
			switch {
			case v && idx != 0:
				t.Fatalf("storage %d: uniform columns selected vertical candidate %d", storage, idx)
			case !v && idx != last:
				t.Fatalf("storage %d: stripes selected horizontal candidate %d", storage, idx)
			case v:
				vertical++
			default:
				horizontal++
			}
		}
		sub := yuvFrame(8, 6, ChromaFormat420, storage, bd)
		down.Process(sub, in)

		// Two planes; the vertical pass covers 8x3 samples, the horizontal 4x3.
		if vertical != 2*8*3 || horizontal != 2*4*3 {
			t.Fatalf("storage %d: %d vertical and %d horizontal selections", storage, vertical, horizontal)
		}
	}
}

func TestResamplerFatal(t *testing.T) {
	withFatalPanic(t)
	o := DefaultResamplerOptions()

	expectFatal(t, "float or fixed", func() {
		NewConv444to420Generic(o).Process(yuvFrame(4, 4, ChromaFormat420, StorageUint16, 10), yuvFrame(4, 4, ChromaFormat444, StorageFloat, 0))
	})
	expectFatal(t, "bit depth", func() {
		NewConv444to420CrBounds(ChromaLocLeft).Process(yuvFrame(4, 4, ChromaFormat420, StorageUint16, 12), yuvFrame(4, 4, ChromaFormat444, StorageUint16, 10))
	})
	expectFatal(t, "luma size", func() {
		NewConv420to444Generic(o).Process(yuvFrame(4, 2, ChromaFormat444, StorageFloat, 0), yuvFrame(4, 4, ChromaFormat420, StorageFloat, 0))
	})
	expectFatal(t, "Conv444to420Generic: chroma plane", func() {
		NewConv444to420Generic(o).Process(yuvFrame(4, 4, ChromaFormat422, StorageFloat, 0), yuvFrame(4, 4, ChromaFormat444, StorageFloat, 0))
	})
	expectFatal(t, "Conv444to420Adaptive", func() {
		NewConv444to420Adaptive(ChromaLocLeft, FilterL4).Process(yuvFrame(4, 4, ChromaFormat444, StorageFloat, 0), yuvFrame(4, 4, ChromaFormat444, StorageFloat, 0))
	})
}

func TestUpsampleOddSize(t *testing.T) {
	sub := yuvFrame(7, 5, ChromaFormat420, StorageUint16, 10)
	sub.Fill(1, 123)
	sub.Fill(2, 456)
	out := yuvFrame(7, 5, ChromaFormat444, StorageUint16, 10)
	NewConv420to444CrBounds(ChromaLocCenter).Process(out, sub)
	for i := 0; i < out.CompSize[1]; i++ {
		if out.Ui16Comp[1][i] != 123 || out.Ui16Comp[2][i] != 456 {
			t.Fatalf("sample %d = %d %d", i, out.Ui16Comp[1][i], out.Ui16Comp[2][i])
		}
	}
}

func TestBestCandidate(t *testing.T) {
	for _, costs := range [][]float64{
		{5, 3, 4, 3, 9},
		{1, 1, 1},
		{9, 8, 7, 6, 5},
		{0, 4, 0},
		{2},
		{math.Inf(1), 7, 7},
	} {
		want := 0
		for k, c := range costs {
			if c < costs[want] {
				want = k
			}
		}

		got := bestCandidate(len(costs), func(k int, limit float64) float64 {
			// Mimic an early exit: stop accumulating once the limit is reached.
			if costs[k] >= limit {
				return limit
			}
			return costs[k]
		})
		if got != want {
			t.Fatalf("%v: best %d, want %d", costs, got, want)
		}
	}
}

func TestAdaptiveFlat(t *testing.T) {
	for _, storage := range []SampleStorage{StorageFloat, StorageUint16, StorageUint8} {
		value, bd := 0.25, 0
		switch storage {
		case StorageUint16:
			value, bd = 640, 10
		case StorageUint8:
			value, bd = 77, 8
		}
		in := yuvFrame(9, 7, ChromaFormat444, storage, bd)
		in.Fill(1, value)
		in.Fill(2, value)

		a := NewConv444to420Adaptive(ChromaLocLeft, FilterL4)
		var vertical, horizontal int
		a.onSelect = func(v bool, idx int) {
			if storage != StorageFloat && idx != 0 {
				t.Fatalf("storage %d: flat input selected candidate %d", storage, idx)
			}
			if v {
				vertical++
			} else {
				horizontal++
			}
		}
		out := yuvFrame(9, 7, ChromaFormat420, storage, bd)
		a.Process(out, in)

		for i := 0; i < out.CompSize[1]; i++ {
			if !near(out.Value(1, i), value, 1e-6) || !near(out.Value(2, i), value, 1e-6) {
				t.Fatalf("storage %d: sample %d = %v", storage, i, out.Value(1, i))
			}
		}
		if vertical != 2*4 || horizontal != 2*5 {
			t.Fatalf("storage %d: %d vertical and %d horizontal selections", storage, vertical, horizontal)
		}
	}
}

func TestAdaptivePicksCandidateOutput(t *testing.T) {
	in := stepFrame(16, 8, StorageFloat, 0, -0.4, 0.4)
	a := NewConv444to420Adaptive(ChromaLocLeft, FilterL2)
	var picks []int
	a.onSelect = func(v bool, idx int) {
		if !v {
			picks = append(picks, idx)
		}
	}
	out := yuvFrame(16, 8, ChromaFormat420, StorageFloat, 0)
	a.Process(out, in)

	cands := make([]*Frame, len(adaptivePresets))
	for k, p := range adaptivePresets {
		cands[k] = yuvFrame(16, 8, ChromaFormat420, StorageFloat, 0)
		NewConv444to420Generic(ResamplerOptions{Location: ChromaLocLeft, Filter: p}).Process(cands[k], in)
	}

	// The first plane's horizontal picks come first, one per output column.
	for x := 0; x < out.Width[1]; x++ {
		k := picks[x]
		for y := 0; y < out.Height[1]; y++ {
			i := y*out.Width[1] + x
			if !near(float64(out.FloatComp[1][i]), float64(cands[k].FloatComp[1][i]), 1e-6) {
				t.Fatalf("column %d row %d = %v, candidate %s gives %v", x, y, out.FloatComp[1][i],
					adaptivePresets[k], cands[k].FloatComp[1][i])
			}
		}
	}
}

func TestResamplerClip(t *testing.T) {
	ff := FrameFormat{Width: 4, Height: 4, ChromaFormat: ChromaFormat444, Storage: StorageUint16, BitDepth: 10,
		SampleRange: SampleRangeSDI}
	in := NewFrame(ff)
	for i := range in.Ui16Comp[1] {
		in.Ui16Comp[1][i] = 1023
	}
	ff.ChromaFormat = ChromaFormat420

	conv := NewConv444to420Generic(DefaultResamplerOptions())
	out := NewFrame(ff)
	conv.Process(out, in)
	if out.Ui16Comp[1][0] != 1019 {
		t.Fatalf("clipped sample = %d", out.Ui16Comp[1][0])
	}

	for _, b := range []*filterBank{&conv.hBank, &conv.vBank} {
		for _, cands := range b.cands {
			for i := range cands {
				cands[i].Clip = false
			}
		}
	}
	conv.Process(out, in)
	if out.Ui16Comp[1][0] != 1023 {
		t.Fatalf("unclipped sample = %d", out.Ui16Comp[1][0])
	}
}

func clearClip(banks ...[]ScaleFilter) {
	for _, cands := range banks {
		for i := range cands {
			cands[i].Clip = false
		}
	}
}

func TestResamplerFloatClip(t *testing.T) {
	for _, tc := range []struct {
		space  ColorSpace
		lo, hi float64
	}{
		{ColorSpaceRGB, 0, 1},
		{ColorSpaceYCbCr, -0.5, 0.5},
	} {
		ff := FrameFormat{Width: 16, Height: 4, ChromaFormat: ChromaFormat444, ColorSpace: tc.space}
		in := NewFrame(ff)
		for i := range in.FloatComp[1] {
			v := tc.lo
			if i%16 >= 8 {
				v = tc.hi
			}
			in.FloatComp[1][i], in.FloatComp[2][i] = float32(v), float32(v)
		}
		ff.ChromaFormat = ChromaFormat420
		out := NewFrame(ff)

		// Lanczos lobes ring around a full range edge.
		conv := NewConv444to420Generic(ResamplerOptions{Location: ChromaLocLeft, Filter: FilterL6})
		conv.Process(out, in)
		for c := 1; c < 3; c++ {
			for i, v := range out.FloatComp[c] {
				if float64(v) < tc.lo || float64(v) > tc.hi {
					t.Fatalf("space %d: plane %d sample %d = %v outside [%v, %v]", tc.space, c, i, v, tc.lo, tc.hi)
				}
			}
		}

		clearClip(conv.hBank.cands[0], conv.hBank.cands[1], conv.vBank.cands[0], conv.vBank.cands[1])
		conv.Process(out, in)
		var overshoot bool
		for _, v := range out.FloatComp[1] {
			overshoot = overshoot || float64(v) < tc.lo || float64(v) > tc.hi
		}
		if !overshoot {
			t.Fatalf("space %d: unclipped output stays in range", tc.space)
		}
	}
}

func TestAdaptiveFloatClip(t *testing.T) {
	in := yuvFrame(6, 4, ChromaFormat444, StorageFloat, 0)
	in.Fill(1, 0.7)
	in.Fill(2, -0.6)
	out := yuvFrame(6, 4, ChromaFormat420, StorageFloat, 0)

	a := NewConv444to420Adaptive(ChromaLocLeft, FilterL4)
	a.Process(out, in)
	for i := 0; i < out.CompSize[1]; i++ {
		if out.FloatComp[1][i] != 0.5 || out.FloatComp[2][i] != -0.5 {
			t.Fatalf("clipped sample %d = %v, %v", i, out.FloatComp[1][i], out.FloatComp[2][i])
		}
	}

	clearClip(a.hDown, a.vDown)
	a.Process(out, in)
	for i := 0; i < out.CompSize[1]; i++ {
		if !near(float64(out.FloatComp[1][i]), 0.7, 1e-6) || !near(float64(out.FloatComp[2][i]), -0.6, 1e-6) {
			t.Fatalf("unclipped sample %d = %v, %v", i, out.FloatComp[1][i], out.FloatComp[2][i])
		}
	}
}

func TestAdaptiveScratchReuse(t *testing.T) {
	in := yuvFrame(9, 7, ChromaFormat444, StorageFloat, 0)
	in.Fill(1, 0.25)
	out := yuvFrame(9, 7, ChromaFormat420, StorageFloat, 0)

	a := NewConv444to420Adaptive(ChromaLocLeft, FilterL4)
	a.Process(out, in)
	res, temp := &a.fs.res[0], &a.fs.temp[0]

	in.Fill(1, -0.125)
	a.Process(out, in)
	if &a.fs.res[0] != res || &a.fs.temp[0] != temp {
		t.Fatal("scratch planes reallocated")
	}
	for i := 0; i < out.CompSize[1]; i++ {
		if !near(float64(out.FloatComp[1][i]), -0.125, 1e-6) {
			t.Fatalf("sample %d = %v", i, out.FloatComp[1][i])
		}
	}
}

// minimalDistortion decimates src along one axis, scoring every candidate of
// down in full by the squared error of its reconstruction through up. It
// returns the winner per output line, earliest on ties, and the result.
func minimalDistortion(down []ScaleFilter, up *[2]ScaleFilter, src []float64, vertical bool, lines, n int) ([]int, []float64) {
	m := (n + 1) / 2
	at := func(l, size int) (start, stride int) {
		if vertical {
			return l, lines
		}
		return l * size, 1
	}

	cands := make([][]float64, len(down))
	for k := range down {
		cands[k] = make([]float64, m*lines)
		for l := 0; l < lines; l++ {
			ss, sStride := at(l, n)
			ds, dStride := at(l, m)
			for o := 0; o < m; o++ {
				cands[k][ds+o*dStride] = filterFloat(&down[k], src[ss:], 2*o, sStride, n)
			}
		}
	}

	picks := make([]int, m)
	dst := make([]float64, m*lines)
	for o := 0; o < m; o++ {
		best, bestSSE := -1, 0.0
		for k := range down {
			var sse float64
			for t := 2 * o; t < 2*o+2 && t < n; t++ {
				for l := 0; l < lines; l++ {
					ss, sStride := at(l, n)
					cs, cStride := at(l, m)
					d := filterFloat(&up[t&1], cands[k][cs:], t>>1, cStride, m) - src[ss+t*sStride]
					sse += d * d
				}
			}
			if best < 0 || sse < bestSSE {
				best, bestSSE = k, sse
			}
		}
		picks[o] = best
		for l := 0; l < lines; l++ {
			ds, dStride := at(l, m)
			dst[ds+o*dStride] = cands[best][ds+o*dStride]
		}
	}
	return picks, dst
}

func TestAdaptiveMinimalDistortion(t *testing.T) {
	const w, h = 11, 7
	rng := rand.New(rand.NewSource(42))
	in := yuvFrame(w, h, ChromaFormat444, StorageFloat, 0)
	for c := 1; c < 3; c++ {
		for i := range in.FloatComp[c] {
			in.FloatComp[c][i] = float32(0.8*rng.Float64() - 0.4)
		}
	}

	a := NewConv444to420Adaptive(ChromaLocLeft, FilterL4)
	var vPicks, hPicks []int
	a.onSelect = func(v bool, idx int) {
		if v {
			vPicks = append(vPicks, idx)
		} else {
			hPicks = append(hPicks, idx)
		}
	}
	out := yuvFrame(w, h, ChromaFormat420, StorageFloat, 0)
	a.Process(out, in)

	src := make([]float64, w*h)
	for i, v := range in.FloatComp[1] {
		src[i] = float64(v)
	}
	h2, w2 := (h+1)/2, (w+1)/2
	// The first plane is decimated first, rows before columns.
	wantV, tmp := minimalDistortion(a.vDown, &a.vUp, src, true, w, h)
	wantH, res := minimalDistortion(a.hDown, &a.hUp, tmp, false, h2, w)
	if len(vPicks) != 2*h2 || len(hPicks) != 2*w2 {
		t.Fatalf("%d vertical and %d horizontal selections", len(vPicks), len(hPicks))
	}
	for o, k := range wantV {
		if vPicks[o] != k {
			t.Fatalf("row %d: picked %s, lowest distortion %s", o, adaptivePresets[vPicks[o]], adaptivePresets[k])
		}
	}
	for o, k := range wantH {
		if hPicks[o] != k {
			t.Fatalf("column %d: picked %s, lowest distortion %s", o, adaptivePresets[hPicks[o]], adaptivePresets[k])
		}
	}
	for i, v := range res {
		if want := float32(clampf(v, -0.5, 0.5)); out.FloatComp[1][i] != want {
			t.Fatalf("sample %d = %v, want %v", i, out.FloatComp[1][i], want)
		}
	}
}
