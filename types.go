package hdrtools

// ColorSpace identifies the component representation of a frame.
type ColorSpace int

const (
	ColorSpaceYCbCr ColorSpace = iota
	ColorSpaceRGB
	ColorSpaceXYZ
	ColorSpaceICtCp
	// ColorSpaceYCbCrCL is BT.2020 constant luminance Y'CbCr.
	ColorSpaceYCbCrCL
)

// ColorPrimaries identifies a set of RGB chromaticities (or, for LMSD and
// YCoCg, a derived component basis).
type ColorPrimaries int

const (
	PrimariesBT709 ColorPrimaries = iota
	PrimariesBT601
	PrimariesBT2020
	PrimariesP3D65
	PrimariesP3D60
	PrimariesEXT
	PrimariesLMSD
	PrimariesAMT
	PrimariesYCoCg
	PrimariesUnknown
)

// ChromaFormat describes chroma subsampling of a frame.
type ChromaFormat int

const (
	ChromaFormat400 ChromaFormat = iota
	ChromaFormat420
	ChromaFormat422
	ChromaFormat444
)

// SampleRange describes how normalized values map to code values.
type SampleRange int

const (
	SampleRangeStandard SampleRange = iota
	SampleRangeFull
	SampleRangeRestricted
	SampleRangeSDI
	SampleRangeSDIScaled
)

// SampleStorage is the container type of frame samples.
type SampleStorage int

const (
	StorageFloat SampleStorage = iota
	StorageUint16
	StorageUint8
)

// ChromaLocation is the position of a subsampled chroma sample relative to
// the luma grid, numbered as in H.264/HEVC VUI.
type ChromaLocation int

const (
	// ChromaLocLeft is co-sited horizontally, midway vertically.
	ChromaLocLeft ChromaLocation = iota
	// ChromaLocCenter is midway in both directions.
	ChromaLocCenter
	// ChromaLocTopLeft is co-sited with the top-left luma sample.
	ChromaLocTopLeft
	// ChromaLocTop is midway horizontally, co-sited with the top row.
	ChromaLocTop
	// ChromaLocBottomLeft is co-sited horizontally, on the bottom row.
	ChromaLocBottomLeft
	// ChromaLocBottom is midway horizontally, on the bottom row.
	ChromaLocBottom
)

// Transfer identifies a transfer function.
type Transfer int

const (
	TransferLinear Transfer = iota
	TransferPQ
	TransferHLG
	TransferSRGB
	TransferPower
)

// FrameProcessor converts one frame into another. Format, precision and
// color converters all satisfy it.
type FrameProcessor interface {
	Process(out, in *Frame)
}
