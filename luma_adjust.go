package hdrtools

import "math"

// LumaAdjustParams configures the chroma round trip used to correct luma.
type LumaAdjustParams struct {
	// ChromaFormat is the subsampled target format; 4:0:0 selects 4:2:0.
	ChromaFormat ChromaFormat
	// BitDepth and SampleRange describe the fixed point intermediate and the
	// code values produced by the polynomial model. Zero BitDepth selects 10.
	BitDepth    int
	SampleRange SampleRange
	// UseFloatPrecision skips quantization around the chroma round trip.
	UseFloatPrecision bool

	// Down and Up change the chroma format. ToFixed and ToFloat change
	// precision. Nil stages get FormatConverter and PrecisionConverter
	// defaults.
	Down    FrameProcessor
	Up      FrameProcessor
	ToFixed FrameProcessor
	ToFloat FrameProcessor
}

// lumaAdjustBase holds what both luma correction strategies share.
//
// Scratch frames are allocated on the first call and sized to that frame.
// All later frames must have the same dimensions.
type lumaAdjustBase struct {
	ct         *ColorTransform
	tf         TransferFunction
	la         LumaAdjustParams
	weights    RangeWeights
	yRow       [3]float64
	inv        mat3
	adjustable bool

	fixed444, fixedSub, fixedUp *Frame
	floatSub, roundTripped      *Frame
}

func newLumaAdjustBase(p ColorTransformParams, la LumaAdjustParams) (lumaAdjustBase, error) {
	ct, err := NewColorTransform(p)
	if err != nil {
		return lumaAdjustBase{}, err
	}
	if la.ChromaFormat == ChromaFormat400 {
		la.ChromaFormat = ChromaFormat420
	}
	if la.BitDepth <= 0 {
		la.BitDepth = 10
	}
	if la.Down == nil || la.Up == nil {
		fc := NewFormatConverter(FormatOptions{ResamplerOptions: DefaultResamplerOptions()})
		if la.Down == nil {
			la.Down = fc
		}
		if la.Up == nil {
			la.Up = fc
		}
	}
	if la.ToFixed == nil {
		la.ToFixed = PrecisionConverter{}
	}
	if la.ToFloat == nil {
		la.ToFloat = PrecisionConverter{}
	}

	b := lumaAdjustBase{
		ct:         ct,
		tf:         p.Transfer,
		la:         la,
		weights:    SampleRangeWeights(la.SampleRange, la.BitDepth),
		inv:        ct.entry.inverse,
		adjustable: ct.IsForward() && ct.entry.isYCbCr,
	}
	if b.tf == nil {
		b.tf = PQ{}
	}
	if row, ok := SetYConversion(p.IColorPrimaries); ok {
		b.yRow = row
	} else {
		b.yRow = ct.entry.forward[0]
	}
	return b, nil
}

// bypass reports whether the plain matrix transform applies.
func (b *lumaAdjustBase) bypass(out, in *Frame) bool {
	return !b.adjustable || !in.IsFloat() || !out.IsFloat() || b.la.ChromaFormat == ChromaFormat444 ||
		in.CompSize[0] != out.CompSize[0] || !is444(in) || !is444(out)
}

func (b *lumaAdjustBase) allocate(yuv *Frame) {
	if b.roundTripped != nil {
		return
	}
	ff := yuv.Format()
	ff.Alpha = false
	ff.ColorSpace = ColorSpaceYCbCr
	b.roundTripped = NewFrame(ff)

	sub := ff
	sub.ChromaFormat = b.la.ChromaFormat
	if b.la.UseFloatPrecision {
		b.floatSub = NewFrame(sub)
		return
	}

	fixed := ff
	fixed.Storage = StorageUint16
	if b.la.BitDepth <= 8 {
		fixed.Storage = StorageUint8
	}
	fixed.BitDepth = b.la.BitDepth
	fixed.SampleRange = b.la.SampleRange
	b.fixed444 = NewFrame(fixed)
	b.fixedUp = NewFrame(fixed)
	fixed.ChromaFormat = b.la.ChromaFormat
	b.fixedSub = NewFrame(fixed)
}

// roundTrip returns yuv after chroma subsampling and upsampling through the
// configured stages.
func (b *lumaAdjustBase) roundTrip(yuv *Frame) *Frame {
	b.allocate(yuv)
	if b.la.UseFloatPrecision {
		b.la.Down.Process(b.floatSub, yuv)
		b.la.Up.Process(b.roundTripped, b.floatSub)
		return b.roundTripped
	}
	b.la.ToFixed.Process(b.fixed444, yuv)
	b.la.Down.Process(b.fixedSub, b.fixed444)
	b.la.Up.Process(b.fixedUp, b.fixedSub)
	b.la.ToFloat.Process(b.roundTripped, b.fixedUp)
	return b.roundTripped
}

func (b *lumaAdjustBase) linearLuma(in *Frame, i int) float64 {
	return b.yRow[0]*b.tf.Forward(in.Value(0, i)) +
		b.yRow[1]*b.tf.Forward(in.Value(1, i)) +
		b.yRow[2]*b.tf.Forward(in.Value(2, i))
}

// ColorTransformYAdjust2ndOrder converts RGB to Y'CbCr and replaces luma
// with the output of a second order polynomial chosen by a search tree over
// linear luminance and the subsampled chroma.
type ColorTransformYAdjust2ndOrder struct {
	lumaAdjustBase
	model *YAdjustModel
}

// NewColorTransformYAdjust2ndOrder loads the model from p.YAdjustModelFile.
// A missing or malformed model is replaced by DefaultYAdjustModel and
// reported through p.Warn.
func NewColorTransformYAdjust2ndOrder(p ColorTransformParams, la LumaAdjustParams) (*ColorTransformYAdjust2ndOrder, error) {
	base, err := newLumaAdjustBase(p, la)
	if err != nil {
		return nil, err
	}
	model, err := LoadYAdjustModel(p.YAdjustModelFile)
	if err != nil {
		if p.Warn != nil {
			p.Warn("using default luma adjustment model: %v", err)
		}
		model = DefaultYAdjustModel()
	}
	return &ColorTransformYAdjust2ndOrder{lumaAdjustBase: base, model: model}, nil
}

// Model returns the model in use.
func (t *ColorTransformYAdjust2ndOrder) Model() *YAdjustModel { return t.model }

// Process converts in into out.
func (t *ColorTransformYAdjust2ndOrder) Process(out, in *Frame) {
	t.ct.Process(out, in)
	if t.bypass(out, in) {
		return
	}
	rt := t.roundTrip(out)

	maxIdx := float64(int(1)<<yAdjustIndexBits - 1)
	for i := 0; i < in.CompSize[0]; i++ {
		yl := t.linearLuma(in, i)
		cb, cr := float64(rt.FloatComp[1][i]), float64(rt.FloatComp[2][i])
		bucket := t.model.tableSearch(
			int(clamp01(yl)*maxIdx+0.5),
			int(clamp01(cb+0.5)*maxIdx+0.5),
			int(clamp01(cr+0.5)*maxIdx+0.5),
		)
		out.FloatComp[0][i] = float32(t.lumaFromCode(t.model.evaluate(bucket, yl, cb, cr)))
	}
}

func (t *ColorTransformYAdjust2ndOrder) lumaFromCode(code float64) float64 {
	return clamp01((math.Round(code) - t.weights.LumaOffset) / t.weights.LumaWeight)
}

// ColorTransformYSumLin converts RGB to Y'CbCr and corrects luma with a
// first order expansion of linear luminance around the input RGB.
type ColorTransformYSumLin struct {
	lumaAdjustBase
}

// NewColorTransformYSumLin builds the closed form luma corrector.
func NewColorTransformYSumLin(p ColorTransformParams, la LumaAdjustParams) (*ColorTransformYSumLin, error) {
	base, err := newLumaAdjustBase(p, la)
	if err != nil {
		return nil, err
	}
	return &ColorTransformYSumLin{lumaAdjustBase: base}, nil
}

// Process converts in into out.
func (t *ColorTransformYSumLin) Process(out, in *Frame) {
	t.ct.Process(out, in)
	if t.bypass(out, in) {
		return
	}
	rt := t.roundTrip(out)

	for i := 0; i < in.CompSize[0]; i++ {
		dCb := float64(rt.FloatComp[1][i]) - float64(out.FloatComp[1][i])
		dCr := float64(rt.FloatComp[2][i]) - float64(out.FloatComp[2][i])

		var num, den float64
		for c := 0; c < 3; c++ {
			d := t.tf.ForwardDerivative(in.Value(c, i)) * t.yRow[c]
			e := t.inv[c][1]*dCb + t.inv[c][2]*dCr
			num += d * e
			den += d
		}
		if den == 0 {
			continue
		}
		y := float64(out.FloatComp[0][i])
		out.FloatComp[0][i] = float32(clamp01(y - num/den))
	}
}
