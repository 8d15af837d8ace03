package main

import (
	"fmt"

	"github.com/vearutop/hdrtools"
)

type stage struct {
	name string
	proc hdrtools.FrameProcessor
	out  *hdrtools.Frame
}

// pipeline holds the processing stages of a conversion with their output
// frames, allocated once for the first input frame.
type pipeline struct {
	stages []stage
}

func (p *pipeline) add(name string, proc hdrtools.FrameProcessor, ff hdrtools.FrameFormat) hdrtools.FrameFormat {
	p.stages = append(p.stages, stage{name: name, proc: proc, out: hdrtools.NewFrame(ff)})
	logf(logDebug, "stage %s", name)
	return ff
}

func (p *pipeline) run(in *hdrtools.Frame) *hdrtools.Frame {
	cur := in
	for _, s := range p.stages {
		s.proc.Process(s.out, cur)
		cur = s.out
	}
	return cur
}

func newPipeline(cfg convertConfig, in hdrtools.FrameFormat) (*pipeline, error) {
	out, err := cfg.Output.format(in.Width, in.Height)
	if err != nil {
		return nil, err
	}
	inTF, err := parseEnum("transfer", cfg.Input.Transfer, transfers)
	if err != nil {
		return nil, err
	}
	outTF, err := parseEnum("transfer", cfg.Output.Transfer, transfers)
	if err != nil {
		return nil, err
	}

	var fo hdrtools.FormatOptions
	if fo.Location, err = parseEnum("chroma location", cfg.Location, chromaLocations); err != nil {
		return nil, err
	}
	if fo.Filter, err = parseEnum("filter", cfg.Filter, filterPresets); err != nil {
		return nil, err
	}
	if fo.Bound, err = parseEnum("bound mode", cfg.Bound, boundModes); err != nil {
		return nil, err
	}
	if fo.Down, err = parseEnum("downsampler", cfg.Down, downMethods); err != nil {
		return nil, err
	}
	if fo.Up, err = parseEnum("upsampler", cfg.Up, upMethods); err != nil {
		return nil, err
	}
	format := hdrtools.NewFormatConverter(fo)

	p := &pipeline{}
	cur := in
	if cur.ChromaFormat != hdrtools.ChromaFormat444 {
		cur.ChromaFormat = hdrtools.ChromaFormat444
		cur = p.add("upsample", format, cur)
	}
	if cur.Storage != hdrtools.StorageFloat {
		cur.Storage, cur.BitDepth = hdrtools.StorageFloat, 0
		cur = p.add("to float", hdrtools.PrecisionConverter{}, cur)
	}

	encode := hdrtools.NewTransferFunction(outTF, cfg.Gamma)
	if (inTF != outTF || cfg.LinearScale != 0) && cur.ColorSpace == hdrtools.ColorSpaceRGB {
		tc := hdrtools.TransferConverter{
			From:  hdrtools.NewTransferFunction(inTF, cfg.Gamma),
			To:    encode,
			Scale: cfg.LinearScale,
		}
		cur = p.add("transfer", tc, cur)
	}

	params := hdrtools.ColorTransformParams{
		IColorSpace:        cur.ColorSpace,
		OColorSpace:        out.ColorSpace,
		IColorPrimaries:    cur.ColorPrimaries,
		OColorPrimaries:    out.ColorPrimaries,
		UseHighPrecision:   cfg.HighPrecision,
		TransformPrecision: cfg.TransformPrecision,
		YAdjustModelFile:   cfg.YAdjustModel,
		Transfer:           encode,
		Strict:             cfg.Strict,
		Warn: func(format string, args ...any) {
			logf(logInfo, format, args...)
		},
	}
	la := hdrtools.LumaAdjustParams{
		ChromaFormat:      out.ChromaFormat,
		BitDepth:          out.BitDepth,
		SampleRange:       out.SampleRange,
		UseFloatPrecision: cfg.UseFloatPrecision || out.Storage == hdrtools.StorageFloat,
		Down:              format,
		Up:                format,
	}

	var ct hdrtools.FrameProcessor
	switch cfg.LumaAdjust {
	case "", "none":
		ct, err = hdrtools.NewColorTransform(params)
	case "2ndorder":
		ct, err = hdrtools.NewColorTransformYAdjust2ndOrder(params, la)
	case "sumlin":
		ct, err = hdrtools.NewColorTransformYSumLin(params, la)
	default:
		return nil, fmt.Errorf("invalid luma adjustment %q", cfg.LumaAdjust)
	}
	if err != nil {
		return nil, err
	}
	cur.ColorSpace, cur.ColorPrimaries = out.ColorSpace, out.ColorPrimaries
	cur = p.add("color transform", ct, cur)

	if out.Storage != hdrtools.StorageFloat {
		cur.Storage, cur.BitDepth, cur.SampleRange = out.Storage, out.BitDepth, out.SampleRange
		cur = p.add("to fixed", hdrtools.PrecisionConverter{}, cur)
	}
	if out.ChromaFormat != hdrtools.ChromaFormat444 {
		cur.ChromaFormat = out.ChromaFormat
		p.add("downsample", format, cur)
	}
	return p, nil
}
