package hdrtools

import (
	"errors"
	"fmt"
)

var (
	// ErrNotImplemented is returned for conversions that are recognized but
	// have no implementation, such as constant luminance Y'CbCr to RGB.
	ErrNotImplemented = errors.New("not implemented")
	// ErrUnsupportedConversion is returned in strict mode for color space and
	// primaries combinations without a transform.
	ErrUnsupportedConversion = errors.New("unsupported conversion")
)

// ColorTransformParams configures a ColorTransform.
type ColorTransformParams struct {
	IColorSpace     ColorSpace
	OColorSpace     ColorSpace
	IColorPrimaries ColorPrimaries
	OColorPrimaries ColorPrimaries

	// UseHighPrecision selects the BT.2020 Y'CbCr variant: 0 published
	// weights, 1 weights derived from primaries, 2 weights on a 14-bit grid.
	UseHighPrecision int
	// TransformPrecision derives Y'CbCr chroma by direct differences.
	TransformPrecision bool

	// Min and Max bound float output under ClipRange.
	Min float64
	Max float64

	YAdjustModelFile string

	// Transfer, when set, makes the constant luminance transform compute
	// luma in linear light.
	Transfer TransferFunction

	// Strict turns unmapped combinations into ErrUnsupportedConversion
	// instead of an identity transform.
	Strict bool
	// Warn receives a message when a combination resolves to identity
	// without being one.
	Warn func(format string, args ...any)
}

// ColorTransform applies one fixed 3x3 transform to every pixel of a frame.
type ColorTransform struct {
	params    ColorTransformParams
	mode      TransformMode
	isForward bool
	clip      ClipPolicy
	entry     transformEntry

	// transform0..2 hold the matrix rows selected for the direction.
	transform0 [3]float64
	transform1 [3]float64
	transform2 [3]float64
}

// NewColorTransform resolves the transform mode for p.
func NewColorTransform(p ColorTransformParams) (*ColorTransform, error) {
	if p.Max == 0 && p.Min == 0 {
		p.Max = 1
	}
	mode, forward, err := resolveTransformMode(p)
	if err != nil {
		return nil, err
	}

	ct := &ColorTransform{
		params:    p,
		mode:      mode,
		isForward: forward,
		entry:     transformFor(mode),
	}
	m := ct.entry.forward
	ct.clip = ct.entry.fwdClip
	if !forward {
		m = ct.entry.inverse
		ct.clip = ct.entry.invClip
	}
	ct.transform0, ct.transform1, ct.transform2 = m[0], m[1], m[2]
	return ct, nil
}

// Mode returns the resolved transform mode.
func (ct *ColorTransform) Mode() TransformMode { return ct.mode }

// IsForward reports whether the forward matrix of the mode is applied.
func (ct *ColorTransform) IsForward() bool { return ct.isForward }

// Clip returns the float clip policy of the resolved mode and direction.
func (ct *ColorTransform) Clip() ClipPolicy { return ct.clip }

func resolveTransformMode(p ColorTransformParams) (TransformMode, bool, error) {
	if p.IColorSpace == p.OColorSpace && p.IColorPrimaries == p.OColorPrimaries {
		return TransformIdentity, true, nil
	}
	if p.IColorSpace == ColorSpaceYCbCrCL && p.OColorSpace == ColorSpaceRGB {
		return TransformIdentity, false, fmt.Errorf("constant luminance Y'CbCr to RGB: %w", ErrNotImplemented)
	}

	mode, forward, ok := lookupTransformMode(p)
	if ok {
		return mode, forward, nil
	}
	if p.Strict {
		return TransformIdentity, true, fmt.Errorf("color space %d primaries %d to color space %d primaries %d: %w",
			p.IColorSpace, p.IColorPrimaries, p.OColorSpace, p.OColorPrimaries, ErrUnsupportedConversion)
	}
	if p.Warn != nil {
		p.Warn("no transform from color space %d primaries %d to color space %d primaries %d, using identity",
			p.IColorSpace, p.IColorPrimaries, p.OColorSpace, p.OColorPrimaries)
	}
	return TransformIdentity, true, nil
}

func lookupTransformMode(p ColorTransformParams) (TransformMode, bool, bool) {
	in, out := p.IColorSpace, p.OColorSpace
	switch {
	case in == ColorSpaceRGB && out == ColorSpaceYCbCr:
		if p.OColorPrimaries == PrimariesYCoCg {
			return TransformRGBToYCoCg, true, true
		}
		if p.IColorPrimaries != p.OColorPrimaries {
			return 0, false, false
		}
		m, ok := ycbcrMode(p.IColorPrimaries, p.UseHighPrecision)
		return m, true, ok
	case in == ColorSpaceYCbCr && out == ColorSpaceRGB:
		if p.IColorPrimaries == PrimariesYCoCg {
			return TransformRGBToYCoCg, false, true
		}
		if p.IColorPrimaries != p.OColorPrimaries {
			return 0, false, false
		}
		m, ok := ycbcrMode(p.OColorPrimaries, p.UseHighPrecision)
		return m, false, ok
	case in == ColorSpaceRGB && out == ColorSpaceYCbCrCL:
		if p.IColorPrimaries == PrimariesBT2020 {
			return TransformRGB2020ToYUV2020CL, true, true
		}
	case in == ColorSpaceRGB && out == ColorSpaceXYZ:
		m, ok := xyzMode(p.IColorPrimaries)
		return m, true, ok
	case in == ColorSpaceXYZ && out == ColorSpaceRGB:
		m, ok := xyzMode(p.OColorPrimaries)
		return m, false, ok
	case in == ColorSpaceRGB && out == ColorSpaceRGB:
		return gamutMode(p.IColorPrimaries, p.OColorPrimaries)
	case in == ColorSpaceRGB && out == ColorSpaceICtCp:
		if p.IColorPrimaries == PrimariesLMSD {
			return TransformLMSDToICtCp, true, true
		}
	case in == ColorSpaceICtCp && out == ColorSpaceRGB:
		if p.OColorPrimaries == PrimariesLMSD {
			return TransformLMSDToICtCp, false, true
		}
	}
	return 0, false, false
}

func ycbcrMode(p ColorPrimaries, highPrecision int) (TransformMode, bool) {
	switch p {
	case PrimariesBT709:
		return TransformRGB709ToYUV709, true
	case PrimariesBT601:
		return TransformRGB601ToYUV601, true
	case PrimariesBT2020:
		switch highPrecision {
		case 1:
			return TransformRGB2020ToYUV2020Derived, true
		case 2:
			return TransformRGB2020ToYUV2020Fixed, true
		default:
			return TransformRGB2020ToYUV2020, true
		}
	case PrimariesP3D65:
		return TransformRGBP3D65ToYUVP3D65, true
	case PrimariesP3D60:
		return TransformRGBP3D60ToYUVP3D60, true
	}
	return 0, false
}

func xyzMode(p ColorPrimaries) (TransformMode, bool) {
	switch p {
	case PrimariesBT709:
		return TransformRGB709ToXYZ, true
	case PrimariesBT601:
		return TransformRGB601ToXYZ, true
	case PrimariesBT2020:
		return TransformRGB2020ToXYZ, true
	case PrimariesP3D65:
		return TransformRGBP3D65ToXYZ, true
	case PrimariesP3D60:
		return TransformRGBP3D60ToXYZ, true
	}
	return 0, false
}

func gamutMode(from, to ColorPrimaries) (TransformMode, bool, bool) {
	pairs := []struct {
		mode     TransformMode
		from, to ColorPrimaries
	}{
		{TransformRGB709ToRGB2020, PrimariesBT709, PrimariesBT2020},
		{TransformRGBP3D65ToRGB2020, PrimariesP3D65, PrimariesBT2020},
		{TransformRGB709ToRGBP3D65, PrimariesBT709, PrimariesP3D65},
		{TransformRGB2020ToLMSD, PrimariesBT2020, PrimariesLMSD},
	}
	for _, pr := range pairs {
		if pr.from == from && pr.to == to {
			return pr.mode, true, true
		}
		if pr.from == to && pr.to == from {
			return pr.mode, false, true
		}
	}
	return 0, false, false
}

func is444(f *Frame) bool {
	return f.CompSize[0] == f.CompSize[1] && f.CompSize[0] == f.CompSize[2]
}

// chromaCentered reports whether components 1 and 2 of cs are signed
// around zero, so that integer storage carries the mid-level offset.
func chromaCentered(cs ColorSpace) bool {
	return cs == ColorSpaceYCbCr || cs == ColorSpaceYCbCrCL || cs == ColorSpaceICtCp
}

// Process converts in into out. Frames of different luma size or with
// subsampled chroma are left untouched.
func (ct *ColorTransform) Process(out, in *Frame) {
	if in.CompSize[0] != out.CompSize[0] || !is444(in) || !is444(out) {
		return
	}
	out.FrameNo = in.FrameNo
	out.IsAvailable = true

	switch {
	case ct.mode == TransformRGB2020ToYUV2020CL:
		ct.convertCL(out, in)
	case ct.mode == TransformIdentity && in.Storage == out.Storage && in.BitDepth == out.BitDepth:
		for c := 0; c < 3; c++ {
			out.CopyPlane(in, c)
		}
	default:
		ct.convert(out, in)
	}
}

func (ct *ColorTransform) convert(out, in *Frame) {
	var inOff, outOff [3]float64
	if !in.IsFloat() && chromaCentered(ct.params.IColorSpace) {
		inOff[1], inOff[2] = float64(in.MidPelValue[1]), float64(in.MidPelValue[2])
	}
	if !out.IsFloat() && chromaCentered(ct.params.OColorSpace) {
		outOff[1], outOff[2] = float64(out.MidPelValue[1]), float64(out.MidPelValue[2])
	}

	precise := ct.params.TransformPrecision && ct.entry.isYCbCr
	for i := 0; i < in.CompSize[0]; i++ {
		v := [3]float64{
			in.Value(0, i) - inOff[0],
			in.Value(1, i) - inOff[1],
			in.Value(2, i) - inOff[2],
		}
		var o [3]float64
		if precise {
			o = ct.convertPrecise(v)
		} else {
			o = [3]float64{dot3(ct.transform0, v), dot3(ct.transform1, v), dot3(ct.transform2, v)}
		}

		if out.IsFloat() {
			for c := 0; c < 3; c++ {
				out.FloatComp[c][i] = float32(ct.clipFloat(o[c]))
			}
			continue
		}
		for c := 0; c < 3; c++ {
			out.SetFixed(c, i, o[c]+outOff[c])
		}
	}
}

// convertPrecise computes luma with the matrix and derives the remaining
// components from differences, avoiding cancellation in B-Y and R-Y.
func (ct *ColorTransform) convertPrecise(v [3]float64) [3]float64 {
	e := ct.entry
	if ct.isForward {
		r, g, b := v[0], v[1], v[2]
		return [3]float64{
			dot3(ct.transform0, v),
			(e.kr*(b-r) + e.kg*(b-g)) / e.cbDivider,
			(e.kg*(r-g) + e.kb*(r-b)) / e.crDivider,
		}
	}
	y, cb, cr := v[0], v[1], v[2]
	r := y + e.crDivider*cr
	b := y + e.cbDivider*cb
	return [3]float64{r, (y - e.kr*r - e.kb*b) / e.kg, b}
}

func (ct *ColorTransform) clipFloat(v float64) float64 {
	switch ct.clip {
	case ClipRange:
		return clampf(v, ct.params.Min, ct.params.Max)
	case ClipNegative:
		if v < 0 {
			return 0
		}
	}
	return v
}

// convertCL applies the BT.2020 constant luminance forward transform.
func (ct *ColorTransform) convertCL(out, in *Frame) {
	var inScale, outScale, outOff float64 = 1, 1, 0
	if !in.IsFloat() {
		inScale = float64(in.MaxPelValue[0])
	}
	if !out.IsFloat() {
		outScale = float64(out.MaxPelValue[0])
		outOff = float64(out.MidPelValue[1])
	}
	tf := ct.params.Transfer
	for i := 0; i < in.CompSize[0]; i++ {
		r := in.Value(0, i) / inScale
		g := in.Value(1, i) / inScale
		b := in.Value(2, i) / inScale

		var y float64
		if tf != nil {
			y = tf.Inverse(clKr*tf.Forward(r) + clKg*tf.Forward(g) + clKb*tf.Forward(b))
		} else {
			y = clKr*r + clKg*g + clKb*b
		}

		db, dr := b-y, r-y
		var cb, cr float64
		if db > 0 {
			cb = db / (2 * clPB)
		} else {
			cb = db / (-2 * clNB)
		}
		if dr > 0 {
			cr = dr / (2 * clPR)
		} else {
			cr = dr / (-2 * clNR)
		}

		if out.IsFloat() {
			out.FloatComp[0][i] = float32(ct.clipFloat(y))
			out.FloatComp[1][i] = float32(cb)
			out.FloatComp[2][i] = float32(cr)
			continue
		}
		out.SetFixed(0, i, y*outScale)
		out.SetFixed(1, i, cb*outScale+outOff)
		out.SetFixed(2, i, cr*outScale+outOff)
	}
}

func dot3(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}
