package hdrtools

// DownsampleMethod selects the resampler used for chroma decimation.
type DownsampleMethod int

const (
	DownsampleGeneric DownsampleMethod = iota
	DownsampleCrBounds
	DownsampleAdaptive
)

// UpsampleMethod selects the resampler used for chroma interpolation.
type UpsampleMethod int

const (
	UpsampleGeneric UpsampleMethod = iota
	UpsampleCrBounds
)

// FormatOptions configures a FormatConverter.
type FormatOptions struct {
	ResamplerOptions
	Down DownsampleMethod
	Up   UpsampleMethod
}

// FormatConverter changes the chroma format of a frame. Conversions between
// 4:2:0 and 4:2:2 go through an intermediate 4:4:4 frame.
type FormatConverter struct {
	opts FormatOptions

	to420, to422, from420, from422 ChromaResampler

	full *Frame
}

// NewFormatConverter builds the resamplers selected by o.
func NewFormatConverter(o FormatOptions) *FormatConverter {
	fc := &FormatConverter{opts: o}
	switch o.Down {
	case DownsampleCrBounds:
		fc.to420 = NewConv444to420CrBounds(o.Location)
	case DownsampleAdaptive:
		fc.to420 = NewConv444to420Adaptive(o.Location, o.Filter)
	default:
		fc.to420 = NewConv444to420Generic(o.ResamplerOptions)
	}
	switch o.Up {
	case UpsampleCrBounds:
		fc.from420 = NewConv420to444CrBounds(o.Location)
	default:
		fc.from420 = NewConv420to444Generic(o.ResamplerOptions)
	}
	fc.to422 = NewConv444to422Generic(o.ResamplerOptions)
	fc.from422 = NewConv422to444Generic(o.ResamplerOptions)
	return fc
}

// Process converts in into out according to their chroma formats.
func (fc *FormatConverter) Process(out, in *Frame) {
	from, to := in.ChromaFormat, out.ChromaFormat
	switch {
	case from == to:
		for c := 0; c < 4; c++ {
			if in.CompSize[c] > 0 && in.CompSize[c] == out.CompSize[c] {
				out.CopyPlane(in, c)
			}
		}
		out.FrameNo, out.IsAvailable = in.FrameNo, true
	case to == ChromaFormat400:
		out.CopyPlane(in, 0)
		out.FrameNo, out.IsAvailable = in.FrameNo, true
	case from == ChromaFormat444 && to == ChromaFormat420:
		fc.to420.Process(out, in)
	case from == ChromaFormat444 && to == ChromaFormat422:
		fc.to422.Process(out, in)
	case from == ChromaFormat420 && to == ChromaFormat444:
		fc.from420.Process(out, in)
	case from == ChromaFormat422 && to == ChromaFormat444:
		fc.from422.Process(out, in)
	case from != ChromaFormat400 && from != ChromaFormat444 && to != ChromaFormat444:
		ff := in.Format()
		ff.ChromaFormat = ChromaFormat444
		if fc.full == nil || fc.full.Format() != ff {
			fc.full = NewFrame(ff)
		}
		fc.Process(fc.full, in)
		fc.Process(out, fc.full)
	default:
		fatalf("FormatConverter: unsupported chroma format conversion %d to %d", from, to)
	}
}
