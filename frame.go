package hdrtools

// FrameFormat describes the layout of a frame to allocate.
type FrameFormat struct {
	Width          int
	Height         int
	ChromaFormat   ChromaFormat
	Storage        SampleStorage
	BitDepth       int
	ColorSpace     ColorSpace
	ColorPrimaries ColorPrimaries
	SampleRange    SampleRange
	// Alpha adds a fourth full resolution plane.
	Alpha bool
}

// Frame is a planar buffer of up to four components.
// Only the storage slices matching Storage are allocated.
type Frame struct {
	Width    [4]int
	Height   [4]int
	CompSize [4]int

	Storage        SampleStorage
	BitDepth       int
	ColorSpace     ColorSpace
	ColorPrimaries ColorPrimaries
	ChromaFormat   ChromaFormat
	SampleRange    SampleRange

	MinPelValue [4]int
	MidPelValue [4]int
	MaxPelValue [4]int

	FrameNo     int
	IsAvailable bool

	FloatComp [4][]float32
	Ui16Comp  [4][]uint16
	ImgComp   [4][]uint8
}

// NewFrame allocates a frame for the given format.
func NewFrame(ff FrameFormat) *Frame {
	f := &Frame{
		Storage:        ff.Storage,
		BitDepth:       ff.BitDepth,
		ColorSpace:     ff.ColorSpace,
		ColorPrimaries: ff.ColorPrimaries,
		ChromaFormat:   ff.ChromaFormat,
		SampleRange:    ff.SampleRange,
	}
	if f.Storage == StorageUint8 && (f.BitDepth <= 0 || f.BitDepth > 8) {
		f.BitDepth = 8
	}
	if f.Storage == StorageUint16 && f.BitDepth <= 8 {
		f.BitDepth = 16
	}
	if f.Storage == StorageFloat && f.BitDepth == 0 {
		f.BitDepth = 32
	}

	cw, ch := chromaSize(ff.Width, ff.Height, ff.ChromaFormat)
	f.Width[0], f.Height[0] = ff.Width, ff.Height
	for c := 1; c < 3; c++ {
		f.Width[c], f.Height[c] = cw, ch
	}
	if ff.Alpha {
		f.Width[3], f.Height[3] = ff.Width, ff.Height
	}

	for c := 0; c < 4; c++ {
		f.CompSize[c] = f.Width[c] * f.Height[c]
		if f.CompSize[c] == 0 {
			continue
		}
		switch f.Storage {
		case StorageFloat:
			f.FloatComp[c] = make([]float32, f.CompSize[c])
		case StorageUint16:
			f.Ui16Comp[c] = make([]uint16, f.CompSize[c])
		case StorageUint8:
			f.ImgComp[c] = make([]uint8, f.CompSize[c])
		}
	}
	f.setPelBounds()
	return f
}

// Format returns the allocation format of the frame.
func (f *Frame) Format() FrameFormat {
	return FrameFormat{
		Width:          f.Width[0],
		Height:         f.Height[0],
		ChromaFormat:   f.ChromaFormat,
		Storage:        f.Storage,
		BitDepth:       f.BitDepth,
		ColorSpace:     f.ColorSpace,
		ColorPrimaries: f.ColorPrimaries,
		SampleRange:    f.SampleRange,
		Alpha:          f.CompSize[3] > 0,
	}
}

// IsFloat reports whether samples are stored as float32.
func (f *Frame) IsFloat() bool { return f.Storage == StorageFloat }

func (f *Frame) components() int {
	if f.ChromaFormat == ChromaFormat400 {
		return 1
	}
	return 3
}

func (f *Frame) setPelBounds() {
	for c := 0; c < 4; c++ {
		if f.IsFloat() {
			f.MinPelValue[c], f.MidPelValue[c], f.MaxPelValue[c] = 0, 0, 1
			continue
		}
		f.MinPelValue[c], f.MaxPelValue[c] = pelRange(f.BitDepth, f.SampleRange)
		f.MidPelValue[c] = 1 << (f.BitDepth - 1)
	}
}

func pelRange(bitDepth int, r SampleRange) (int, int) {
	maxCode := (1 << bitDepth) - 1
	switch r {
	case SampleRangeSDI, SampleRangeSDIScaled:
		if bitDepth < 8 {
			return 0, maxCode
		}
		step := 1 << (bitDepth - 8)
		return step, maxCode - step
	default:
		return 0, maxCode
	}
}

// Value returns sample i of component c as float64, regardless of storage.
func (f *Frame) Value(c, i int) float64 {
	switch f.Storage {
	case StorageFloat:
		return float64(f.FloatComp[c][i])
	case StorageUint16:
		return float64(f.Ui16Comp[c][i])
	default:
		return float64(f.ImgComp[c][i])
	}
}

// SetFixed stores v into an integer sample of component c, rounded and
// clamped to the component's pel bounds. Float frames keep v as is.
func (f *Frame) SetFixed(c, i int, v float64) {
	switch f.Storage {
	case StorageFloat:
		f.FloatComp[c][i] = float32(v)
	case StorageUint16:
		f.Ui16Comp[c][i] = uint16(clampPel(v, f.MinPelValue[c], f.MaxPelValue[c]))
	default:
		f.ImgComp[c][i] = uint8(clampPel(v, f.MinPelValue[c], f.MaxPelValue[c]))
	}
}

// CopyPlane copies component c from src, which must share storage and size.
func (f *Frame) CopyPlane(src *Frame, c int) {
	switch f.Storage {
	case StorageFloat:
		copy(f.FloatComp[c], src.FloatComp[c])
	case StorageUint16:
		copy(f.Ui16Comp[c], src.Ui16Comp[c])
	default:
		copy(f.ImgComp[c], src.ImgComp[c])
	}
}

// Fill sets every sample of component c to v.
func (f *Frame) Fill(c int, v float64) {
	for i := 0; i < f.CompSize[c]; i++ {
		f.SetFixed(c, i, v)
	}
}

func clampPel(v float64, lo, hi int) int {
	if v < float64(lo) {
		return lo
	}
	iv := int(v + 0.5)
	if iv < lo {
		return lo
	}
	if iv > hi {
		return hi
	}
	return iv
}

type fixedPel interface {
	~uint8 | ~uint16
}

func fixedPlane[T fixedPel](f *Frame, c int) []T {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return any(f.ImgComp[c]).([]T)
	default:
		return any(f.Ui16Comp[c]).([]T)
	}
}

func chromaSize(w, h int, format ChromaFormat) (cw, ch int) {
	switch format {
	case ChromaFormat444:
		return w, h
	case ChromaFormat422:
		return (w + 1) / 2, h
	case ChromaFormat420:
		return (w + 1) / 2, (h + 1) / 2
	default:
		return 0, 0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
