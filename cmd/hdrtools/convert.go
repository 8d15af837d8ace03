package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/vearutop/hdrtools"
	"github.com/vearutop/hdrtools/internal/frameio"
)

type frameConfig struct {
	ColorSpace   string `json:"colorSpace"`
	Primaries    string `json:"primaries"`
	ChromaFormat string `json:"chromaFormat"`
	SampleRange  string `json:"sampleRange"`
	Storage      string `json:"storage"`
	BitDepth     int    `json:"bitDepth"`
	Transfer     string `json:"transfer"`
}

type convertConfig struct {
	In     string `json:"in"`
	Out    string `json:"out"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Frames int    `json:"frames"`

	Input  frameConfig `json:"input"`
	Output frameConfig `json:"output"`

	Location string `json:"chromaLocation"`
	Filter   string `json:"filter"`
	Bound    string `json:"bound"`
	Down     string `json:"downsample"`
	Up       string `json:"upsample"`

	LumaAdjust         string  `json:"lumaAdjust"`
	YAdjustModel       string  `json:"yAdjustModel"`
	UseFloatPrecision  bool    `json:"useFloatPrecision"`
	HighPrecision      int     `json:"highPrecision"`
	TransformPrecision bool    `json:"transformPrecision"`
	Strict             bool    `json:"strict"`
	Gamma              float64 `json:"gamma"`
	LinearScale        float64 `json:"linearScale"`

	LogLevel string `json:"logLevel"`
}

func addFrameFlags(fs *pflag.FlagSet, prefix string, fc *frameConfig) {
	fs.StringVar(&fc.ColorSpace, prefix+"-space", fc.ColorSpace, "color space: "+names(colorSpaces))
	fs.StringVar(&fc.Primaries, prefix+"-primaries", fc.Primaries, "color primaries: "+names(colorPrimaries))
	fs.StringVar(&fc.ChromaFormat, prefix+"-chroma", fc.ChromaFormat, "chroma format: "+names(chromaFormats))
	fs.StringVar(&fc.SampleRange, prefix+"-range", fc.SampleRange, "sample range: "+names(sampleRanges))
	fs.StringVar(&fc.Storage, prefix+"-storage", fc.Storage, "sample storage: "+names(storages))
	fs.IntVar(&fc.BitDepth, prefix+"-bit-depth", fc.BitDepth, "bit depth of fixed point samples")
	fs.StringVar(&fc.Transfer, prefix+"-transfer", fc.Transfer, "transfer function: "+names(transfers))
}

// loadConfig applies a JSON config file under the flags that were set on
// the command line.
func loadConfig(fs *pflag.FlagSet, path string, cfg any) error {
	changed := map[string]string{}
	fs.Visit(func(f *pflag.Flag) {
		changed[f.Name] = f.Value.String()
	})

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	for name, val := range changed {
		if err := fs.Set(name, val); err != nil {
			return err
		}
	}
	return nil
}

func (fc frameConfig) format(w, h int) (hdrtools.FrameFormat, error) {
	var (
		ff  = hdrtools.FrameFormat{Width: w, Height: h, BitDepth: fc.BitDepth}
		err error
	)
	if ff.ColorSpace, err = parseEnum("color space", fc.ColorSpace, colorSpaces); err != nil {
		return ff, err
	}
	if ff.ColorPrimaries, err = parseEnum("primaries", fc.Primaries, colorPrimaries); err != nil {
		return ff, err
	}
	if ff.ChromaFormat, err = parseEnum("chroma format", fc.ChromaFormat, chromaFormats); err != nil {
		return ff, err
	}
	if ff.SampleRange, err = parseEnum("sample range", fc.SampleRange, sampleRanges); err != nil {
		return ff, err
	}
	if ff.Storage, err = parseEnum("storage", fc.Storage, storages); err != nil {
		return ff, err
	}
	return ff, nil
}

func defaultConvertConfig() convertConfig {
	return convertConfig{
		Input: frameConfig{
			ColorSpace: "rgb", Primaries: "bt709", ChromaFormat: "444", SampleRange: "full",
			Storage: "float", Transfer: "linear",
		},
		Output: frameConfig{
			ColorSpace: "ycbcr", Primaries: "bt709", ChromaFormat: "420", SampleRange: "standard",
			Storage: "uint16", BitDepth: 10, Transfer: "pq",
		},
		Location:   "left",
		Filter:     "l4",
		Bound:      "none",
		Down:       "generic",
		Up:         "generic",
		LumaAdjust: "none",
		LogLevel:   "info",
	}
}

// convertFlags binds the convert flags to cfg and returns them with the
// config file path flag.
func convertFlags(cfg *convertConfig) (*pflag.FlagSet, *string) {
	fs := pflag.NewFlagSet("convert", pflag.ContinueOnError)
	configPath := fs.String("config", "", "JSON config file, flags take precedence")
	fs.StringVar(&cfg.In, "in", cfg.In, "input file (.exr, .tif, or raw planar)")
	fs.StringVar(&cfg.Out, "out", cfg.Out, "output file (.exr, .tif, or raw planar)")
	fs.IntVar(&cfg.Width, "w", cfg.Width, "raw input width")
	fs.IntVar(&cfg.Height, "h", cfg.Height, "raw input height")
	fs.IntVar(&cfg.Frames, "frames", cfg.Frames, "number of frames to convert, 0 for all")
	addFrameFlags(fs, "in", &cfg.Input)
	addFrameFlags(fs, "out", &cfg.Output)
	fs.StringVar(&cfg.Location, "location", cfg.Location, "chroma location: "+names(chromaLocations))
	fs.StringVar(&cfg.Filter, "filter", cfg.Filter, "chroma filter: "+names(filterPresets))
	fs.StringVar(&cfg.Bound, "bound", cfg.Bound, "generic filter bounding: "+names(boundModes))
	fs.StringVar(&cfg.Down, "down", cfg.Down, "downsampler: "+names(downMethods))
	fs.StringVar(&cfg.Up, "up", cfg.Up, "upsampler: "+names(upMethods))
	fs.StringVar(&cfg.LumaAdjust, "luma-adjust", cfg.LumaAdjust, "luma adjustment: "+strings.Join(lumaAdjustModes, ", "))
	fs.StringVar(&cfg.YAdjustModel, "model", cfg.YAdjustModel, "luma adjustment model file")
	fs.BoolVar(&cfg.UseFloatPrecision, "float-precision", cfg.UseFloatPrecision, "luma adjustment round trip in float")
	fs.IntVar(&cfg.HighPrecision, "high-precision", cfg.HighPrecision, "BT.2020 Y'CbCr variant: 0 published, 1 derived, 2 14-bit")
	fs.BoolVar(&cfg.TransformPrecision, "transform-precision", cfg.TransformPrecision, "derive chroma by direct differences")
	fs.BoolVar(&cfg.Strict, "strict", cfg.Strict, "fail on unsupported color conversions")
	fs.Float64Var(&cfg.Gamma, "gamma", cfg.Gamma, "exponent of the power transfer function")
	fs.Float64Var(&cfg.LinearScale, "linear-scale", cfg.LinearScale, "linear light scale applied between transfer functions")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: error, info, debug")
	fs.SetOutput(os.Stderr)
	return fs, configPath
}

func runConvert(args []string) error {
	cfg := defaultConvertConfig()
	fs, configPath := convertFlags(&cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath != "" {
		if err := loadConfig(fs, *configPath, &cfg); err != nil {
			return err
		}
	}

	level, err := parseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	currentLogLevel = level

	if cfg.In == "" || cfg.Out == "" {
		return errors.New("missing required arguments")
	}
	return convertFile(cfg)
}

// source yields input frames until io.EOF.
type source func() (*hdrtools.Frame, error)

func openSource(cfg convertConfig) (source, func() error, error) {
	primaries, err := parseEnum("primaries", cfg.Input.Primaries, colorPrimaries)
	if err != nil {
		return nil, nil, err
	}

	var still func([]byte, hdrtools.ColorPrimaries) (*hdrtools.Frame, error)
	switch strings.ToLower(filepath.Ext(cfg.In)) {
	case ".exr":
		still = frameio.ReadEXR
	case ".tif", ".tiff":
		still = frameio.ReadTIFF
	}
	if still != nil {
		data, err := os.ReadFile(filepath.Clean(cfg.In))
		if err != nil {
			return nil, nil, err
		}
		f, err := still(data, primaries)
		if err != nil {
			return nil, nil, fmt.Errorf("decode %s: %w", cfg.In, err)
		}
		done := false
		return func() (*hdrtools.Frame, error) {
			if done {
				return nil, io.EOF
			}
			done = true
			return f, nil
		}, func() error { return nil }, nil
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, nil, errors.New("raw input needs --w and --h")
	}
	ff, err := cfg.Input.format(cfg.Width, cfg.Height)
	if err != nil {
		return nil, nil, err
	}
	file, err := os.Open(filepath.Clean(cfg.In))
	if err != nil {
		return nil, nil, err
	}
	rr := frameio.NewRawReader(file)
	f := hdrtools.NewFrame(ff)
	return func() (*hdrtools.Frame, error) {
		if err := rr.ReadFrame(f); err != nil {
			return nil, err
		}
		return f, nil
	}, file.Close, nil
}

func convertFile(cfg convertConfig) error {
	next, closeIn, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeIn() }()

	outFile, err := os.Create(filepath.Clean(cfg.Out))
	if err != nil {
		return err
	}
	defer outFile.Close()

	var write func(*hdrtools.Frame) error
	switch strings.ToLower(filepath.Ext(cfg.Out)) {
	case ".exr":
		write = func(f *hdrtools.Frame) error { return frameio.WriteEXR(outFile, f) }
	case ".tif", ".tiff":
		write = func(f *hdrtools.Frame) error { return frameio.WriteTIFF(outFile, f) }
	default:
		write = frameio.NewRawWriter(outFile).WriteFrame
	}

	var p *pipeline
	n := 0
	for cfg.Frames <= 0 || n < cfg.Frames {
		in, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if p == nil {
			if p, err = newPipeline(cfg, in.Format()); err != nil {
				return err
			}
			logf(logInfo, "converting %dx%d %s %s %s to %s %s %s", in.Width[0], in.Height[0],
				nameOf(colorSpaces, in.ColorSpace), nameOf(colorPrimaries, in.ColorPrimaries), nameOf(chromaFormats, in.ChromaFormat),
				cfg.Output.ColorSpace, cfg.Output.Primaries, cfg.Output.ChromaFormat)
		}
		out := p.run(in)
		if err := write(out); err != nil {
			return fmt.Errorf("write frame %d: %w", n, err)
		}
		logf(logDebug, "frame %d done", n)
		n++
	}
	logf(logInfo, "%d frames written to %s", n, cfg.Out)
	return outFile.Close()
}
