package hdrtools_test

import (
	"fmt"

	"github.com/vearutop/hdrtools"
)

func ExampleColorTransform() {
	ct, err := hdrtools.NewColorTransform(hdrtools.ColorTransformParams{
		IColorSpace:     hdrtools.ColorSpaceRGB,
		OColorSpace:     hdrtools.ColorSpaceYCbCr,
		IColorPrimaries: hdrtools.PrimariesBT709,
		OColorPrimaries: hdrtools.PrimariesBT709,
	})
	if err != nil {
		fmt.Println(err)
		return
	}

	ff := hdrtools.FrameFormat{Width: 1, Height: 1, ChromaFormat: hdrtools.ChromaFormat444, ColorSpace: hdrtools.ColorSpaceRGB}
	in := hdrtools.NewFrame(ff)
	in.FloatComp[0][0] = 1
	ff.ColorSpace = hdrtools.ColorSpaceYCbCr
	out := hdrtools.NewFrame(ff)
	ct.Process(out, in)

	fmt.Printf("%.4f %.4f %.4f\n", out.FloatComp[0][0], out.FloatComp[1][0], out.FloatComp[2][0])
	// Output:
	// 0.2126 -0.1146 0.5000
}

func ExampleNewConv444to420Generic() {
	in := hdrtools.NewFrame(hdrtools.FrameFormat{Width: 8, Height: 6, ChromaFormat: hdrtools.ChromaFormat444})
	in.Fill(1, 0.3)
	out := hdrtools.NewFrame(hdrtools.FrameFormat{Width: 8, Height: 6, ChromaFormat: hdrtools.ChromaFormat420})

	hdrtools.NewConv444to420Generic(hdrtools.DefaultResamplerOptions()).Process(out, in)

	fmt.Printf("%dx%d %.2f\n", out.Width[1], out.Height[1], out.FloatComp[1][0])
	// Output:
	// 4x3 0.30
}
