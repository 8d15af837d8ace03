package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/vearutop/hdrtools"
)

var (
	colorSpaces = map[string]hdrtools.ColorSpace{
		"ycbcr":   hdrtools.ColorSpaceYCbCr,
		"rgb":     hdrtools.ColorSpaceRGB,
		"xyz":     hdrtools.ColorSpaceXYZ,
		"ictcp":   hdrtools.ColorSpaceICtCp,
		"ycbcrcl": hdrtools.ColorSpaceYCbCrCL,
	}
	colorPrimaries = map[string]hdrtools.ColorPrimaries{
		"bt709":  hdrtools.PrimariesBT709,
		"bt601":  hdrtools.PrimariesBT601,
		"bt2020": hdrtools.PrimariesBT2020,
		"p3d65":  hdrtools.PrimariesP3D65,
		"p3d60":  hdrtools.PrimariesP3D60,
		"lmsd":   hdrtools.PrimariesLMSD,
		"ycocg":  hdrtools.PrimariesYCoCg,
	}
	chromaFormats = map[string]hdrtools.ChromaFormat{
		"400": hdrtools.ChromaFormat400,
		"420": hdrtools.ChromaFormat420,
		"422": hdrtools.ChromaFormat422,
		"444": hdrtools.ChromaFormat444,
	}
	sampleRanges = map[string]hdrtools.SampleRange{
		"standard":   hdrtools.SampleRangeStandard,
		"full":       hdrtools.SampleRangeFull,
		"restricted": hdrtools.SampleRangeRestricted,
		"sdi":        hdrtools.SampleRangeSDI,
		"sdiscaled":  hdrtools.SampleRangeSDIScaled,
	}
	storages = map[string]hdrtools.SampleStorage{
		"float":  hdrtools.StorageFloat,
		"uint16": hdrtools.StorageUint16,
		"uint8":  hdrtools.StorageUint8,
	}
	transfers = map[string]hdrtools.Transfer{
		"linear": hdrtools.TransferLinear,
		"pq":     hdrtools.TransferPQ,
		"hlg":    hdrtools.TransferHLG,
		"srgb":   hdrtools.TransferSRGB,
		"power":  hdrtools.TransferPower,
	}
	chromaLocations = map[string]hdrtools.ChromaLocation{
		"left":       hdrtools.ChromaLocLeft,
		"center":     hdrtools.ChromaLocCenter,
		"topleft":    hdrtools.ChromaLocTopLeft,
		"top":        hdrtools.ChromaLocTop,
		"bottomleft": hdrtools.ChromaLocBottomLeft,
		"bottom":     hdrtools.ChromaLocBottom,
	}
	downMethods = map[string]hdrtools.DownsampleMethod{
		"generic":  hdrtools.DownsampleGeneric,
		"crbounds": hdrtools.DownsampleCrBounds,
		"adaptive": hdrtools.DownsampleAdaptive,
	}
	upMethods = map[string]hdrtools.UpsampleMethod{
		"generic":  hdrtools.UpsampleGeneric,
		"crbounds": hdrtools.UpsampleCrBounds,
	}
	boundModes = map[string]hdrtools.BoundMode{
		"none":      hdrtools.BoundNone,
		"support":   hdrtools.BoundSupport,
		"neighbors": hdrtools.BoundNeighbors,
		"center":    hdrtools.BoundCenter,
	}
	interpolations = map[string]hdrtools.Interpolation{
		"nearest":  hdrtools.InterpolationNearest,
		"bilinear": hdrtools.InterpolationBilinear,
		"bicubic":  hdrtools.InterpolationBicubic,
		"mitchell": hdrtools.InterpolationMitchellNetravali,
		"lanczos2": hdrtools.InterpolationLanczos2,
		"lanczos3": hdrtools.InterpolationLanczos3,
	}
	lumaAdjustModes = []string{"none", "2ndorder", "sumlin"}
)

// filterPresets accepts lower case preset names.
var filterPresets = lo.MapKeys(hdrtools.FilterPresetNames(), func(_ hdrtools.FilterPreset, k string) string {
	return strings.ToLower(k)
})

func names[T any](m map[string]T) string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return strings.Join(keys, ", ")
}

func parseEnum[T any](kind, s string, m map[string]T) (T, error) {
	v, ok := m[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		var zero T
		return zero, fmt.Errorf("invalid %s %q, expected one of: %s", kind, s, names(m))
	}
	return v, nil
}

func nameOf[T comparable](m map[string]T, v T) string {
	if name, ok := lo.Invert(m)[v]; ok {
		return name
	}
	return fmt.Sprint(v)
}
