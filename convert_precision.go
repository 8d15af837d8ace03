package hdrtools

import "math"

// RangeWeights maps normalized samples to code values: code = v*Weight + Offset.
type RangeWeights struct {
	LumaWeight   float64
	LumaOffset   float64
	ChromaWeight float64
	ChromaOffset float64
}

// SampleRangeWeights returns the code value mapping of r at bitDepth.
func SampleRangeWeights(r SampleRange, bitDepth int) RangeWeights {
	s := math.Ldexp(1, bitDepth-8)
	maxCode := math.Ldexp(1, bitDepth) - 1
	mid := math.Ldexp(1, bitDepth-1)

	switch r {
	case SampleRangeFull:
		return RangeWeights{LumaWeight: maxCode, ChromaWeight: maxCode, ChromaOffset: mid}
	case SampleRangeRestricted:
		return RangeWeights{LumaWeight: 247 * s, LumaOffset: 4 * s, ChromaWeight: 247 * s, ChromaOffset: mid}
	case SampleRangeSDI, SampleRangeSDIScaled:
		lo, hi := pelRange(bitDepth, r)
		w := float64(hi - lo)
		return RangeWeights{LumaWeight: w, LumaOffset: float64(lo), ChromaWeight: w, ChromaOffset: mid}
	default:
		return RangeWeights{LumaWeight: 219 * s, LumaOffset: 16 * s, ChromaWeight: 224 * s, ChromaOffset: 128 * s}
	}
}

func (w RangeWeights) component(c int, cs ColorSpace) (weight, offset float64) {
	if c == 1 || c == 2 {
		if chromaCentered(cs) {
			return w.ChromaWeight, w.ChromaOffset
		}
	}
	return w.LumaWeight, w.LumaOffset
}

// PrecisionConverter converts sample precision between float and fixed
// point frames, or between fixed point bit depths, honoring the sample range
// of the fixed point side. Chroma formats of in and out must match.
type PrecisionConverter struct{}

// Process converts in into out.
func (PrecisionConverter) Process(out, in *Frame) {
	if in.IsFloat() && out.IsFloat() {
		for c := 0; c < out.components(); c++ {
			out.CopyPlane(in, c)
		}
		out.FrameNo, out.IsAvailable = in.FrameNo, true
		return
	}

	var inW, outW RangeWeights
	if !in.IsFloat() {
		inW = SampleRangeWeights(in.SampleRange, in.BitDepth)
	}
	if !out.IsFloat() {
		outW = SampleRangeWeights(out.SampleRange, out.BitDepth)
	}

	for c := 0; c < out.components(); c++ {
		n := min(in.CompSize[c], out.CompSize[c])
		var iw, io, ow, oo float64 = 1, 0, 1, 0
		if !in.IsFloat() {
			iw, io = inW.component(c, in.ColorSpace)
		}
		if !out.IsFloat() {
			ow, oo = outW.component(c, out.ColorSpace)
		}
		for i := 0; i < n; i++ {
			v := (in.Value(c, i) - io) / iw
			out.SetFixed(c, i, v*ow+oo)
		}
	}
	out.FrameNo, out.IsAvailable = in.FrameNo, true
}
