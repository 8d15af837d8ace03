package hdrtools

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// chromaOverride replaces the chroma of its output with fixed values,
// standing in for a lossy subsample and upsample round trip.
type chromaOverride struct {
	cb, cr float32
}

func (o chromaOverride) Process(out, in *Frame) {
	for i := 0; i < out.CompSize[1]; i++ {
		out.FloatComp[1][i], out.FloatComp[2][i] = o.cb, o.cr
	}
}

type discard struct{}

func (discard) Process(_, _ *Frame) {}

var rgb709ToYCbCr = ColorTransformParams{
	IColorSpace: ColorSpaceRGB, OColorSpace: ColorSpaceYCbCr,
	IColorPrimaries: PrimariesBT709, OColorPrimaries: PrimariesBT709,
}

func rgbTestFrame(w, h int) *Frame {
	in := floatFrame(w, h, ChromaFormat444, ColorSpaceRGB, PrimariesBT709)
	for i := 0; i < in.CompSize[0]; i++ {
		x := float32(i) / float32(in.CompSize[0])
		in.FloatComp[0][i], in.FloatComp[1][i], in.FloatComp[2][i] = 0.8-0.5*x, 0.2+0.3*x, 0.1+0.6*x*x
	}
	return in
}

func plainYCbCr(t *testing.T, in *Frame) *Frame {
	t.Helper()
	ct, err := NewColorTransform(rgb709ToYCbCr)
	if err != nil {
		t.Fatal(err)
	}
	out := floatFrame(in.Width[0], in.Height[0], ChromaFormat444, ColorSpaceYCbCr, PrimariesBT709)
	ct.Process(out, in)
	return out
}

func TestYSumLinFlat(t *testing.T) {
	ct, err := NewColorTransformYSumLin(rgb709ToYCbCr, LumaAdjustParams{UseFloatPrecision: true})
	if err != nil {
		t.Fatal(err)
	}
	in := floatFrame(8, 8, ChromaFormat444, ColorSpaceRGB, PrimariesBT709)
	fillRGB(in, 0.4, 0.3, 0.2)
	out := floatFrame(8, 8, ChromaFormat444, ColorSpaceYCbCr, PrimariesBT709)
	ct.Process(out, in)

	want := plainYCbCr(t, in)
	for c := 0; c < 3; c++ {
		for i := range out.FloatComp[c] {
			if !near(float64(out.FloatComp[c][i]), float64(want.FloatComp[c][i]), 1e-6) {
				t.Fatalf("component %d sample %d = %v, want %v", c, i, out.FloatComp[c][i], want.FloatComp[c][i])
			}
		}
	}
}

func TestYSumLinCorrection(t *testing.T) {
	p := rgb709ToYCbCr
	p.Transfer = Power{Gamma: 2}
	override := chromaOverride{cb: 0.1, cr: -0.05}
	ct, err := NewColorTransformYSumLin(p, LumaAdjustParams{UseFloatPrecision: true, Down: discard{}, Up: override})
	if err != nil {
		t.Fatal(err)
	}

	in := rgbTestFrame(4, 2)
	out := floatFrame(4, 2, ChromaFormat444, ColorSpaceYCbCr, PrimariesBT709)
	ct.Process(out, in)

	plain := plainYCbCr(t, in)
	yRow, _ := SetYConversion(PrimariesBT709)
	_, inv := TransformMatrices(TransformRGB709ToYUV709)
	for i := 0; i < in.CompSize[0]; i++ {
		dCb := float64(override.cb) - float64(plain.FloatComp[1][i])
		dCr := float64(override.cr) - float64(plain.FloatComp[2][i])
		var num, den float64
		for c := 0; c < 3; c++ {
			d := 2 * float64(in.FloatComp[c][i]) * yRow[c]
			num += d * (inv[c][1]*dCb + inv[c][2]*dCr)
			den += d
		}
		want := clamp01(float64(plain.FloatComp[0][i]) - num/den)
		if got := float64(out.FloatComp[0][i]); !near(got, want, 1e-6) {
			t.Fatalf("sample %d: Y = %v, want %v", i, got, want)
		}
		if out.FloatComp[1][i] != plain.FloatComp[1][i] {
			t.Fatalf("sample %d: chroma changed", i)
		}
	}
}

func TestYSumLinLinearTransfer(t *testing.T) {
	p := rgb709ToYCbCr
	p.Transfer = Linear{}
	ct, err := NewColorTransformYSumLin(p, LumaAdjustParams{UseFloatPrecision: true, Down: discard{}, Up: chromaOverride{cb: 0.2, cr: 0.1}})
	if err != nil {
		t.Fatal(err)
	}
	in := rgbTestFrame(4, 2)
	out := floatFrame(4, 2, ChromaFormat444, ColorSpaceYCbCr, PrimariesBT709)
	ct.Process(out, in)

	// Chroma errors carry no luminance when luma is already linear.
	plain := plainYCbCr(t, in)
	for i := range out.FloatComp[0] {
		if !near(float64(out.FloatComp[0][i]), float64(plain.FloatComp[0][i]), 2e-4) {
			t.Fatalf("sample %d: Y = %v, want %v", i, out.FloatComp[0][i], plain.FloatComp[0][i])
		}
	}
}

func TestYSumLinFixedRoundTrip(t *testing.T) {
	ct, err := NewColorTransformYSumLin(rgb709ToYCbCr, LumaAdjustParams{BitDepth: 10})
	if err != nil {
		t.Fatal(err)
	}
	in := rgbTestFrame(8, 6)
	out := floatFrame(8, 6, ChromaFormat444, ColorSpaceYCbCr, PrimariesBT709)
	ct.Process(out, in)

	plain := plainYCbCr(t, in)
	var changed bool
	for i := range out.FloatComp[0] {
		d := math.Abs(float64(out.FloatComp[0][i] - plain.FloatComp[0][i]))
		if d > 0.15 {
			t.Fatalf("sample %d: Y = %v, plain %v", i, out.FloatComp[0][i], plain.FloatComp[0][i])
		}
		changed = changed || d > 0
	}
	if !changed {
		t.Fatal("luma was not adjusted")
	}

	// Scratch frames are reused for later frames of the same size.
	first := ct.roundTripped
	ct.Process(out, in)
	if ct.roundTripped != first || ct.fixedSub.ChromaFormat != ChromaFormat420 || ct.fixedSub.BitDepth != 10 {
		t.Fatal("scratch frames reallocated")
	}
}

func TestLumaAdjustBypass(t *testing.T) {
	in := rgbTestFrame(4, 4)

	plain := plainYCbCr(t, in)

	// A 4:4:4 target has nothing to round trip.
	full, err := NewColorTransformYSumLin(rgb709ToYCbCr, LumaAdjustParams{ChromaFormat: ChromaFormat444, Down: discard{}, Up: chromaOverride{cb: 0.3}})
	if err != nil {
		t.Fatal(err)
	}
	out444 := floatFrame(4, 4, ChromaFormat444, ColorSpaceYCbCr, PrimariesBT709)
	full.Process(out444, in)
	for i := range out444.FloatComp[0] {
		if out444.FloatComp[0][i] != plain.FloatComp[0][i] {
			t.Fatalf("4:4:4 sample %d adjusted", i)
		}
	}

	// Fixed point output gets the plain transform.
	la := LumaAdjustParams{UseFloatPrecision: true, Down: discard{}, Up: chromaOverride{cb: 0.3}}
	ct, err := NewColorTransformYSumLin(rgb709ToYCbCr, la)
	if err != nil {
		t.Fatal(err)
	}
	fixedIn := NewFrame(FrameFormat{Width: 4, Height: 4, ChromaFormat: ChromaFormat444, Storage: StorageUint16, BitDepth: 10,
		ColorSpace: ColorSpaceRGB, SampleRange: SampleRangeFull})
	fixedIn.Fill(0, 800)
	fixedIn.Fill(1, 100)
	ff := fixedIn.Format()
	ff.ColorSpace = ColorSpaceYCbCr
	out, want := NewFrame(ff), NewFrame(ff)
	ct.Process(out, fixedIn)
	ct.ct.Process(want, fixedIn)
	for i := range out.Ui16Comp[0] {
		if out.Ui16Comp[0][i] != want.Ui16Comp[0][i] {
			t.Fatalf("fixed sample %d adjusted", i)
		}
	}
	if ct.roundTripped != nil {
		t.Fatal("bypassed transform allocated scratch frames")
	}

	// Inverse transforms are never adjusted.
	inverse := rgb709ToYCbCr
	inverse.IColorSpace, inverse.OColorSpace = ColorSpaceYCbCr, ColorSpaceRGB
	inv, err := NewColorTransformYAdjust2ndOrder(inverse, la)
	if err != nil {
		t.Fatal(err)
	}
	if !inv.bypass(floatFrame(4, 4, ChromaFormat444, ColorSpaceRGB, PrimariesBT709), in) {
		t.Fatal("inverse transform not bypassed")
	}
}

func TestYAdjust2ndOrder(t *testing.T) {
	// A single leaf mapping linear luminance and Cb to 10-bit code values.
	model := "1\n0 1\n1\n0 876 0 100 0 0 64\n"
	path := filepath.Join(t.TempDir(), "linear.txt")
	if err := os.WriteFile(path, []byte(model), 0o600); err != nil {
		t.Fatal(err)
	}

	p := rgb709ToYCbCr
	p.Transfer = Linear{}
	p.YAdjustModelFile = path
	override := chromaOverride{cb: 0.05, cr: -0.1}
	ct, err := NewColorTransformYAdjust2ndOrder(p, LumaAdjustParams{UseFloatPrecision: true, Down: discard{}, Up: override})
	if err != nil {
		t.Fatal(err)
	}
	if ct.Model().Buckets() != 1 {
		t.Fatalf("%d buckets", ct.Model().Buckets())
	}

	in := rgbTestFrame(4, 2)
	out := floatFrame(4, 2, ChromaFormat444, ColorSpaceYCbCr, PrimariesBT709)
	ct.Process(out, in)

	yRow, _ := SetYConversion(PrimariesBT709)
	for i := 0; i < in.CompSize[0]; i++ {
		yl := yRow[0]*float64(in.FloatComp[0][i]) + yRow[1]*float64(in.FloatComp[1][i]) + yRow[2]*float64(in.FloatComp[2][i])
		code := 876*yl + 100*float64(override.cb) + 64
		want := clamp01((math.Round(code) - 64) / 876)
		if got := float64(out.FloatComp[0][i]); !near(got, want, 1e-6) {
			t.Fatalf("sample %d: Y = %v, want %v", i, got, want)
		}
	}
}

func TestYAdjust2ndOrderDefaultModel(t *testing.T) {
	p := rgb709ToYCbCr
	p.YAdjustModelFile = filepath.Join(t.TempDir(), "missing.txt")
	var warned []string
	p.Warn = func(format string, args ...any) {
		warned = append(warned, format)
	}
	ct, err := NewColorTransformYAdjust2ndOrder(p, LumaAdjustParams{})
	if err != nil {
		t.Fatal(err)
	}
	if ct.Model().Buckets() != 10 {
		t.Fatalf("%d buckets", ct.Model().Buckets())
	}
	if len(warned) != 1 || !strings.Contains(warned[0], "default") {
		t.Fatalf("warnings: %v", warned)
	}
	if ct.la.ChromaFormat != ChromaFormat420 || ct.la.BitDepth != 10 {
		t.Fatalf("defaults: format %d bit depth %d", ct.la.ChromaFormat, ct.la.BitDepth)
	}
	if _, ok := ct.tf.(PQ); !ok {
		t.Fatalf("default transfer %T", ct.tf)
	}

	in := rgbTestFrame(4, 4)
	out := floatFrame(4, 4, ChromaFormat444, ColorSpaceYCbCr, PrimariesBT709)
	ct.Process(out, in)
	for i, v := range out.FloatComp[0] {
		if v < 0 || v > 1 {
			t.Fatalf("sample %d: Y = %v out of range", i, v)
		}
	}

	// Every default coefficient is one; full range codes map Y = code/1023.
	p.Transfer = Linear{}
	override := chromaOverride{cb: 0.25, cr: -0.25}
	ct, err = NewColorTransformYAdjust2ndOrder(p, LumaAdjustParams{UseFloatPrecision: true, SampleRange: SampleRangeFull,
		Down: discard{}, Up: override})
	if err != nil {
		t.Fatal(err)
	}
	ct.Process(out, in)
	yRow, _ := SetYConversion(PrimariesBT709)
	cb, cr := float64(override.cb), float64(override.cr)
	for i := 0; i < in.CompSize[0]; i++ {
		yl := yRow[0]*float64(in.FloatComp[0][i]) + yRow[1]*float64(in.FloatComp[1][i]) + yRow[2]*float64(in.FloatComp[2][i])
		code := yl*yl + yl + cb*cb + cb + cr*cr + cr + 1
		want := math.Round(code) / 1023
		if got := float64(out.FloatComp[0][i]); !near(got, want, 1e-6) {
			t.Fatalf("sample %d: Y = %v, want %v", i, got, want)
		}
	}
	// The first pixel is RGB (0.8, 0.2, 0.1): 0.4230 + 0.3125 - 0.1875 + 1 rounds to 2.
	if got := float64(out.FloatComp[0][0]); !near(got, 2.0/1023, 1e-6) {
		t.Fatalf("first pixel: Y = %v, want 2/1023", got)
	}
}
