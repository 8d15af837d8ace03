package hdrtools

import (
	"errors"
	"fmt"
	"image"
	"math"
	"runtime"
	"sync"

	"github.com/nfnt/resize"
	"golang.org/x/sync/errgroup"
)

// Interpolation selects the kernel used by ScaleFrame.
type Interpolation int

const (
	InterpolationNearest Interpolation = iota
	InterpolationBilinear
	InterpolationBicubic
	InterpolationMitchellNetravali
	InterpolationLanczos2
	InterpolationLanczos3
)

// ScaleFrame resizes every plane of in to the plane sizes of out. Both
// frames must share storage and chroma format. Fixed point planes are
// resized with nfnt/resize, float planes with a separable kernel.
func ScaleFrame(out, in *Frame, interp Interpolation) error {
	if in.Storage != out.Storage {
		return errors.New("scale: input and output storage differ")
	}
	if in.ChromaFormat != out.ChromaFormat {
		return fmt.Errorf("scale: chroma format %d does not match %d", in.ChromaFormat, out.ChromaFormat)
	}
	if out.Width[0] <= 0 || out.Height[0] <= 0 {
		return errors.New("scale: invalid target dimensions")
	}

	for c := 0; c < 4; c++ {
		if in.CompSize[c] == 0 || out.CompSize[c] == 0 {
			continue
		}
		sw, sh, dw, dh := in.Width[c], in.Height[c], out.Width[c], out.Height[c]
		switch in.Storage {
		case StorageFloat:
			resamplePlaneFloat(out.FloatComp[c], in.FloatComp[c], sw, sh, dw, dh, interp)
		case StorageUint16:
			src := image.NewGray16(image.Rect(0, 0, sw, sh))
			for i, v := range in.Ui16Comp[c] {
				src.Pix[2*i], src.Pix[2*i+1] = uint8(v>>8), uint8(v)
			}
			dst := toGray16(resize.Resize(uint(dw), uint(dh), src, nfntInterpolation(interp)))
			for i := range out.Ui16Comp[c] {
				v := int(dst.Pix[2*i])<<8 | int(dst.Pix[2*i+1])
				out.Ui16Comp[c][i] = uint16(clampPel(float64(v), out.MinPelValue[c], out.MaxPelValue[c]))
			}
		case StorageUint8:
			src := &image.Gray{Pix: in.ImgComp[c], Stride: sw, Rect: image.Rect(0, 0, sw, sh)}
			dst := toGray(resize.Resize(uint(dw), uint(dh), src, nfntInterpolation(interp)))
			for y := 0; y < dh; y++ {
				copy(out.ImgComp[c][y*dw:(y+1)*dw], dst.Pix[y*dst.Stride:])
			}
		}
	}
	out.FrameNo, out.IsAvailable = in.FrameNo, true
	return nil
}

func nfntInterpolation(interp Interpolation) resize.InterpolationFunction {
	switch interp {
	case InterpolationBilinear:
		return resize.Bilinear
	case InterpolationBicubic:
		return resize.Bicubic
	case InterpolationMitchellNetravali:
		return resize.MitchellNetravali
	case InterpolationLanczos2:
		return resize.Lanczos2
	case InterpolationLanczos3:
		return resize.Lanczos3
	default:
		return resize.NearestNeighbor
	}
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) && g.Stride == g.Rect.Dx() {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			g.Pix[y*g.Stride+x] = uint8(r >> 8)
		}
	}
	return g
}

func toGray16(img image.Image) *image.Gray16 {
	if g, ok := img.(*image.Gray16); ok && g.Rect.Min == (image.Point{}) && g.Stride == 2*g.Rect.Dx() {
		return g
	}
	b := img.Bounds()
	g := image.NewGray16(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			off := y*g.Stride + 2*x
			g.Pix[off], g.Pix[off+1] = uint8(r>>8), uint8(r)
		}
	}
	return g
}

// scaleKernel is a symmetric kernel that vanishes outside [-radius, radius].
type scaleKernel struct {
	radius float64
	eval   func(float64) float64
}

var scaleKernels = [...]scaleKernel{
	InterpolationNearest:           {0.5, box},
	InterpolationBilinear:          {1, triangle},
	InterpolationBicubic:           {2, bcSpline(0, 0.5)},
	InterpolationMitchellNetravali: {2, bcSpline(1.0/3, 1.0/3)},
	InterpolationLanczos2:          {2, lanczos(2)},
	InterpolationLanczos3:          {3, lanczos(3)},
}

func kernelOf(interp Interpolation) scaleKernel {
	if interp < 0 || int(interp) >= len(scaleKernels) {
		return scaleKernels[InterpolationNearest]
	}
	return scaleKernels[interp]
}

type axisKey struct {
	interp   Interpolation
	from, to int
}

// axisCache holds the filters of every axis resized so far, keyed by axisKey.
var axisCache sync.Map

// maxParallelWorkers caps parallelFor; zero means GOMAXPROCS.
var maxParallelWorkers = 0

// axisFilters returns one filter per output sample of an axis resized from
// from to to samples. Offset is the first input sample read and the taps
// are normalized to unit gain. Shrinking widens the kernel by the ratio.
func axisFilters(interp Interpolation, from, to int) []ScaleFilter {
	key := axisKey{interp: interp, from: from, to: to}
	if cached, ok := axisCache.Load(key); ok {
		return cached.([]ScaleFilter)
	}

	k := kernelOf(interp)
	ratio := float64(from) / float64(to)
	stretch := math.Max(ratio, 1)
	radius := k.radius * stretch

	filters := make([]ScaleFilter, to)
	for o := range filters {
		center := ratio*(float64(o)+0.5) - 0.5
		first, last := int(math.Ceil(center-radius)), int(math.Floor(center+radius))
		coeffs := make([]float64, 0, last-first+1)
		var sum float64
		for i := first; i <= last; i++ {
			w := k.eval((float64(i) - center) / stretch)
			coeffs = append(coeffs, w)
			sum += w
		}
		if sum != 0 {
			for i := range coeffs {
				coeffs[i] /= sum
			}
		}
		filters[o] = ScaleFilter{Taps: len(coeffs), Offset: first, FloatCoeff: coeffs}
	}
	axisCache.Store(key, filters)
	return filters
}

// resamplePlaneFloat resizes a float plane horizontally then vertically.
// Float samples are not clamped.
func resamplePlaneFloat(dst, src []float32, srcW, srcH, dstW, dstH int, interp Interpolation) {
	hf, vf := axisFilters(interp, srcW, dstW), axisFilters(interp, srcH, dstH)

	temp := make([]float32, dstW*srcH)
	parallelFor(srcH, func(start, end int) {
		for y := start; y < end; y++ {
			row := src[y*srcW:]
			for x := range hf {
				temp[y*dstW+x] = float32(filterFloat(&hf[x], row, 0, 1, srcW))
			}
		}
	})

	parallelFor(dstH, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < dstW; x++ {
				dst[y*dstW+x] = float32(filterFloat(&vf[y], temp[x:], 0, dstW, srcH))
			}
		}
	})
}

// parallelFor splits [0, total) into contiguous chunks, one per worker.
func parallelFor(total int, fn func(start, end int)) {
	if total <= 0 {
		return
	}
	workers := min(runtime.GOMAXPROCS(0), total)
	if maxParallelWorkers > 0 {
		workers = min(workers, maxParallelWorkers)
	}
	if workers <= 1 {
		fn(0, total)
		return
	}
	step := (total + workers - 1) / workers
	var g errgroup.Group
	for start := 0; start < total; start += step {
		end := min(start+step, total)
		g.Go(func() error {
			fn(start, end)
			return nil
		})
	}
	_ = g.Wait()
}

func box(x float64) float64 {
	if x >= -0.5 && x < 0.5 {
		return 1
	}
	return 0
}

func triangle(x float64) float64 {
	return math.Max(0, 1-math.Abs(x))
}

// bcSpline returns the Mitchell-Netravali cubic with parameters b and c.
// (0, 0.5) is Catmull-Rom.
func bcSpline(b, c float64) func(float64) float64 {
	return func(x float64) float64 {
		x = math.Abs(x)
		switch {
		case x < 1:
			return ((12-9*b-6*c)*x*x*x + (-18+12*b+6*c)*x*x + 6 - 2*b) / 6
		case x < 2:
			return ((-b-6*c)*x*x*x + (6*b+30*c)*x*x - (12*b+48*c)*x + 8*b + 24*c) / 6
		default:
			return 0
		}
	}
}

func lanczos(a float64) func(float64) float64 {
	return func(x float64) float64 {
		if math.Abs(x) >= a {
			return 0
		}
		return sinc(x) * sinc(x/a)
	}
}
