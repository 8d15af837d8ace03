package hdrtools

import (
	"fmt"
	"math"
	"os"
)

// ChromaResampler converts the chroma planes of a frame between sampling
// grids. Luma is copied unchanged.
type ChromaResampler interface {
	Process(out, in *Frame)
}

// fatalf reports a broken frame precondition and terminates the process.
var fatalf = func(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func checkResampleFrames(name string, out, in *Frame) bool {
	if in.IsFloat() != out.IsFloat() {
		fatalf("%s: input and output must both be float or fixed point", name)
		return false
	}
	if !in.IsFloat() && (in.BitDepth != out.BitDepth || in.Storage != out.Storage) {
		fatalf("%s: bit depth mismatch (%d vs %d)", name, in.BitDepth, out.BitDepth)
		return false
	}
	if in.CompSize[0] != out.CompSize[0] {
		fatalf("%s: luma size mismatch (%d vs %d)", name, in.CompSize[0], out.CompSize[0])
		return false
	}
	return true
}

// filterBank holds, per output phase, the candidate filters in order of
// preference. A single candidate means no adaptation.
type filterBank struct {
	cands [2][]ScaleFilter
	// bound, when set per phase, limits output to the extrema of the
	// samples it covers.
	bound [2]*ScaleFilter
}

func (b *filterBank) candidates(phase int) []ScaleFilter {
	if len(b.cands[phase]) == 0 {
		return b.cands[0]
	}
	return b.cands[phase]
}

// selectFilter returns the first candidate whose support spread is within
// threshold. The last candidate is always accepted.
func selectFilter[B float64 | int32](b *filterBank, src []B, pos, stride, n, phase int, threshold float64) (*ScaleFilter, int) {
	cands := b.candidates(phase)
	last := len(cands) - 1
	for i := 0; i < last; i++ {
		lo, hi := supportRange(&cands[i], src, pos, stride, n)
		if hi-lo <= threshold {
			return &cands[i], i
		}
	}
	return &cands[last], last
}

// resampler is the two-pass separable engine shared by the generic and
// edge-bounded converters.
type resampler struct {
	name       string
	down       bool
	horizontal bool
	vertical   bool
	hBank      filterBank
	vBank      filterBank

	floatData     []float64
	floatDataTemp [2][]float64
	i32Data       []int32
	i32DataTemp   [2][]int32

	// onSelect, when set, observes the candidate index picked per sample.
	onSelect func(vertical bool, idx int)
}

// clips reports whether output is bounded to the pel range of the target
// rather than to the container range.
func (r *resampler) clips() bool {
	return anyClip(r.hBank.cands[0], r.hBank.cands[1], r.vBank.cands[0], r.vBank.cands[1])
}

func anyClip(banks ...[]ScaleFilter) bool {
	for _, cands := range banks {
		for i := range cands {
			if cands[i].Clip {
				return true
			}
		}
	}
	return false
}

// chromaBounds returns the float range of a clipped chroma plane of f.
// Without clipping the range is unbounded.
func chromaBounds(f *Frame, clip bool) (lo, hi float64) {
	switch {
	case !clip:
		return math.Inf(-1), math.Inf(1)
	case chromaCentered(f.ColorSpace):
		return -0.5, 0.5
	default:
		return 0, 1
	}
}

func (r *resampler) position(i int) (pos, phase int) {
	if r.down {
		return 2 * i, 0
	}
	return i >> 1, i & 1
}

func (r *resampler) scaled(n int, axis bool) int {
	if !axis {
		return n
	}
	if r.down {
		return (n + 1) / 2
	}
	return 2 * n
}

func (r *resampler) process(out, in *Frame) {
	if !checkResampleFrames(r.name, out, in) {
		return
	}
	out.CopyPlane(in, 0)
	if in.CompSize[3] > 0 && in.CompSize[3] == out.CompSize[3] {
		out.CopyPlane(in, 3)
	}

	for c := 1; c < 3; c++ {
		srcW, srcH := in.Width[c], in.Height[c]
		dstW, dstH := out.Width[c], out.Height[c]
		if wantW, wantH := r.scaled(srcW, r.horizontal), r.scaled(srcH, r.vertical); r.down && (dstW != wantW || dstH != wantH) ||
			!r.down && (dstW > wantW || dstH > wantH || dstW < wantW-1 || dstH < wantH-1) {
			fatalf("%s: chroma plane %d is %dx%d, expected %dx%d", r.name, c, dstW, dstH, wantW, wantH)
			return
		}
		clip := r.clips()
		minPel, maxPel := out.MinPelValue[c], out.MaxPelValue[c]
		if !clip {
			minPel, maxPel = 0, 1<<out.BitDepth-1
		}
		switch in.Storage {
		case StorageFloat:
			lo, hi := chromaBounds(out, clip)
			r.planeFloat(out.FloatComp[c], in.FloatComp[c], srcW, srcH, dstW, dstH, lo, hi)
		case StorageUint16:
			resamplePlaneFixed(r, fixedPlane[uint16](out, c), fixedPlane[uint16](in, c), srcW, srcH, dstW, dstH, minPel, maxPel)
		case StorageUint8:
			resamplePlaneFixed(r, fixedPlane[uint8](out, c), fixedPlane[uint8](in, c), srcW, srcH, dstW, dstH, minPel, maxPel)
		}
	}
	out.FrameNo = in.FrameNo
	out.IsAvailable = true
}

func (r *resampler) planeFloat(dst, src []float32, srcW, srcH, dstW, dstH int, lo, hi float64) {
	data := grow(&r.floatData, srcW*srcH)
	for i, v := range src[:srcW*srcH] {
		data[i] = float64(v)
	}
	res := passes(r, data, r.floatDataTemp[:], srcW, srcH, dstW, dstH, edgeClassifier, filterFloat[float64])
	for i := range dst[:dstW*dstH] {
		dst[i] = float32(clampf(res[i], lo, hi))
	}
}

func resamplePlaneFixed[T fixedPel](r *resampler, dst, src []T, srcW, srcH, dstW, dstH, minPel, maxPel int) {
	data := grow(&r.i32Data, srcW*srcH)
	for i, v := range src[:srcW*srcH] {
		data[i] = int32(v)
	}
	res := passes(r, data, r.i32DataTemp[:], srcW, srcH, dstW, dstH, edgeClassifier*float64(maxPel), filterFixed[int32])
	lo, hi := int32(minPel), int32(maxPel)
	for i := range dst[:dstW*dstH] {
		v := res[i]
		if v < lo {
			v = lo
		} else if v > hi {
			v = hi
		}
		dst[i] = T(v)
	}
}

// passes runs the vertical then horizontal pass when decimating and the
// horizontal then vertical pass when interpolating.
func passes[B float64 | int32](r *resampler, data []B, temp [][]B, srcW, srcH, dstW, dstH int, threshold float64,
	apply func(*ScaleFilter, []B, int, int, int) B,
) []B {
	cur, w, h := data, srcW, srcH
	order := []bool{true, false}
	if !r.down {
		order = []bool{false, true}
	}
	for i, vertical := range order {
		if vertical && r.vertical {
			next := grow(&temp[i], w*dstH)
			runPass(r, &r.vBank, true, next, cur, w, h, dstH, threshold, apply)
			cur, h = next, dstH
		}
		if !vertical && r.horizontal {
			next := grow(&temp[i], dstW*h)
			runPass(r, &r.hBank, false, next, cur, h, w, dstW, threshold, apply)
			cur, w = next, dstW
		}
	}
	return cur
}

// runPass filters along one axis. For a vertical pass lines is the plane
// width; for a horizontal pass it is the plane height.
func runPass[B float64 | int32](r *resampler, bank *filterBank, vertical bool, dst, src []B, lines, srcLen, dstLen int, threshold float64,
	apply func(*ScaleFilter, []B, int, int, int) B,
) {
	for o := 0; o < dstLen; o++ {
		pos, phase := r.position(o)
		for l := 0; l < lines; l++ {
			var line []B
			var stride, di int
			if vertical {
				line, stride, di = src[l:], lines, o*lines+l
			} else {
				line, stride, di = src[l*srcLen:], 1, l*dstLen+o
			}
			f, idx := selectFilter(bank, line, pos, stride, srcLen, phase, threshold)
			if r.onSelect != nil {
				r.onSelect(vertical, idx)
			}
			v := apply(f, line, pos, stride, srcLen)
			if b := bank.bound[phase]; b != nil {
				lo, hi := supportRange(b, line, pos, stride, srcLen)
				v = B(clampf(float64(v), lo, hi))
			}
			dst[di] = v
		}
	}
}

func grow[B any](buf *[]B, n int) []B {
	if cap(*buf) < n {
		*buf = make([]B, n)
	}
	*buf = (*buf)[:n]
	return *buf
}
