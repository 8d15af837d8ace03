package hdrtools

import (
	"math"
	"sync"
)

// TransformMode selects a forward/inverse matrix pair from the transform table.
type TransformMode int

const (
	TransformIdentity TransformMode = iota
	TransformRGB709ToYUV709
	TransformRGB601ToYUV601
	TransformRGB2020ToYUV2020
	// TransformRGB2020ToYUV2020Derived uses luma weights derived from the
	// BT.2020 primaries at full precision.
	TransformRGB2020ToYUV2020Derived
	// TransformRGB2020ToYUV2020Fixed uses the BT.2020 weights quantized to
	// 14 fractional bits.
	TransformRGB2020ToYUV2020Fixed
	TransformRGBP3D65ToYUVP3D65
	TransformRGBP3D60ToYUVP3D60
	TransformRGB2020ToYUV2020CL
	TransformRGB709ToXYZ
	TransformRGB601ToXYZ
	TransformRGB2020ToXYZ
	TransformRGBP3D65ToXYZ
	TransformRGBP3D60ToXYZ
	TransformRGB709ToRGB2020
	TransformRGBP3D65ToRGB2020
	TransformRGB709ToRGBP3D65
	TransformRGB2020ToLMSD
	TransformLMSDToICtCp
	TransformRGBToYCoCg

	transformModeCount
)

// ClipPolicy is the float output clipping rule of a transform.
type ClipPolicy int

const (
	// ClipNone leaves float output untouched.
	ClipNone ClipPolicy = iota
	// ClipRange clips float output to the configured [min, max].
	ClipRange
	// ClipNegative clamps negative float output to zero.
	ClipNegative
)

type transformEntry struct {
	forward mat3
	inverse mat3
	fwdClip ClipPolicy
	invClip ClipPolicy

	// Y'CbCr modes only.
	isYCbCr              bool
	kr, kg, kb           float64
	cbDivider, crDivider float64
}

var (
	transformTableOnce sync.Once
	transformTable     [transformModeCount]transformEntry
)

func transformFor(mode TransformMode) transformEntry {
	transformTableOnce.Do(buildTransformTable)
	if mode < 0 || mode >= transformModeCount {
		return transformTable[TransformIdentity]
	}
	return transformTable[mode]
}

// TransformMatrices returns the forward and inverse matrices of mode.
func TransformMatrices(mode TransformMode) (forward, inverse [3][3]float64) {
	e := transformFor(mode)
	return e.forward, e.inverse
}

func identityMat3() mat3 {
	return mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

func buildTransformTable() {
	transformTable[TransformIdentity] = transformEntry{forward: identityMat3(), inverse: identityMat3()}

	transformTable[TransformRGB709ToYUV709] = ycbcrEntry(0.2126, 0.0722)
	transformTable[TransformRGB601ToYUV601] = ycbcrEntry(0.299, 0.114)
	transformTable[TransformRGB2020ToYUV2020] = ycbcrEntry(0.2627, 0.0593)
	transformTable[TransformRGB2020ToYUV2020Derived] = derivedYCbCrEntry(PrimariesBT2020)
	transformTable[TransformRGB2020ToYUV2020Fixed] = ycbcrEntry(quantize14(0.2627), quantize14(0.0593))
	transformTable[TransformRGBP3D65ToYUVP3D65] = derivedYCbCrEntry(PrimariesP3D65)
	transformTable[TransformRGBP3D60ToYUVP3D60] = derivedYCbCrEntry(PrimariesP3D60)

	// Constant luminance is not a matrix transform; the entry only carries
	// the luma weights used by consumers that need them.
	cl := ycbcrEntry(clKr, clKb)
	cl.isYCbCr = false
	transformTable[TransformRGB2020ToYUV2020CL] = cl

	for mode, p := range map[TransformMode]ColorPrimaries{
		TransformRGB709ToXYZ:   PrimariesBT709,
		TransformRGB601ToXYZ:   PrimariesBT601,
		TransformRGB2020ToXYZ:  PrimariesBT2020,
		TransformRGBP3D65ToXYZ: PrimariesP3D65,
		TransformRGBP3D60ToXYZ: PrimariesP3D60,
	} {
		m := rgbToXYZ(primariesTable[p])
		transformTable[mode] = transformEntry{forward: m, inverse: m.inverse(), fwdClip: ClipNegative, invClip: ClipNegative}
	}

	for mode, pair := range map[TransformMode][2]ColorPrimaries{
		TransformRGB709ToRGB2020:   {PrimariesBT709, PrimariesBT2020},
		TransformRGBP3D65ToRGB2020: {PrimariesP3D65, PrimariesBT2020},
		TransformRGB709ToRGBP3D65:  {PrimariesBT709, PrimariesP3D65},
	} {
		m := convertLinearGamut(pair[0], pair[1])
		transformTable[mode] = transformEntry{forward: m, inverse: m.inverse(), fwdClip: ClipNegative, invClip: ClipNegative}
	}

	// BT.2100 ICtCp, integer coefficients over 4096.
	lms := mat3{
		{1688, 2146, 262},
		{683, 2951, 462},
		{99, 309, 3688},
	}.scale(1.0 / 4096)
	transformTable[TransformRGB2020ToLMSD] = transformEntry{forward: lms, inverse: lms.inverse(), fwdClip: ClipNegative, invClip: ClipNegative}

	ictcp := mat3{
		{2048, 2048, 0},
		{6610, -13613, 7003},
		{17933, -17390, -543},
	}.scale(1.0 / 4096)
	transformTable[TransformLMSDToICtCp] = transformEntry{forward: ictcp, inverse: ictcp.inverse(), invClip: ClipRange}

	transformTable[TransformRGBToYCoCg] = transformEntry{
		forward: mat3{
			{0.25, 0.5, 0.25},
			{0.5, 0, -0.5},
			{-0.25, 0.5, -0.25},
		},
		inverse: mat3{
			{1, 1, -1},
			{1, 0, 1},
			{1, -1, -1},
		},
		invClip: ClipRange,
	}
}

// ycbcrEntry builds a Y'CbCr matrix pair from the red and blue luma weights.
func ycbcrEntry(kr, kb float64) transformEntry {
	kg := 1 - kr - kb
	cbDiv := 2 * (1 - kb)
	crDiv := 2 * (1 - kr)
	fwd := mat3{
		{kr, kg, kb},
		{-kr / cbDiv, -kg / cbDiv, (1 - kb) / cbDiv},
		{(1 - kr) / crDiv, -kg / crDiv, -kb / crDiv},
	}
	inv := mat3{
		{1, 0, crDiv},
		{1, -kb * cbDiv / kg, -kr * crDiv / kg},
		{1, cbDiv, 0},
	}
	return transformEntry{
		forward:   fwd,
		inverse:   inv,
		invClip:   ClipRange,
		isYCbCr:   true,
		kr:        kr,
		kg:        kg,
		kb:        kb,
		cbDivider: cbDiv,
		crDivider: crDiv,
	}
}

func derivedYCbCrEntry(p ColorPrimaries) transformEntry {
	y := rgbToXYZ(primariesTable[p])[1]
	return ycbcrEntry(y[0], y[2])
}

func quantize14(v float64) float64 {
	return math.Round(v*(1<<14)) / (1 << 14)
}

func (m mat3) scale(s float64) mat3 {
	for i := range m {
		for j := range m[i] {
			m[i][j] *= s
		}
	}
	return m
}
