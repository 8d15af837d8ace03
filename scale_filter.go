package hdrtools

import "math"

// FilterPreset names a resampling kernel family and its tap count.
type FilterPreset int

const (
	// FilterF0 is nearest neighbor.
	FilterF0 FilterPreset = iota
	FilterL2
	FilterL3
	FilterL4
	FilterL5
	FilterL6
	FilterSNW2
	FilterSNW3
	FilterSNW4
	FilterSNW5
	FilterSNW6
)

var filterPresetNames = map[string]FilterPreset{
	"F0":   FilterF0,
	"L2":   FilterL2,
	"L3":   FilterL3,
	"L4":   FilterL4,
	"L5":   FilterL5,
	"L6":   FilterL6,
	"SNW2": FilterSNW2,
	"SNW3": FilterSNW3,
	"SNW4": FilterSNW4,
	"SNW5": FilterSNW5,
	"SNW6": FilterSNW6,
}

// FilterPresetNames maps preset names to presets.
func FilterPresetNames() map[string]FilterPreset {
	out := make(map[string]FilterPreset, len(filterPresetNames))
	for k, v := range filterPresetNames {
		out[k] = v
	}
	return out
}

func (p FilterPreset) String() string {
	for name, v := range filterPresetNames {
		if v == p {
			return name
		}
	}
	return "unknown"
}

func (p FilterPreset) taps() int {
	switch {
	case p >= FilterL2 && p <= FilterL6:
		return int(p-FilterL2) + 2
	case p >= FilterSNW2 && p <= FilterSNW6:
		return int(p-FilterSNW2) + 2
	default:
		return 1
	}
}

func (p FilterPreset) window(x float64) float64 {
	if p >= FilterSNW2 {
		return math.Cos(0.5 * math.Pi * x)
	}
	return sinc(x)
}

// ScaleFilter is one phase of a 1-D FIR resampling kernel.
//
// For an output sample with reference input position pos, the filter reads
// input samples pos+Offset ... pos+Offset+Taps-1, clamped to the plane.
type ScaleFilter struct {
	Preset FilterPreset
	Taps   int
	Offset int
	Phase  int

	FloatCoeff []float64
	I32Coeff   []int32
	I32Shift   int
	I32Offset  int32
	// Clip bounds fixed-point output to the target pel range.
	Clip bool
}

// NewDownFilter builds a 2:1 decimation filter whose output sample sits at
// input position pos+rel.
func NewDownFilter(p FilterPreset, rel float64, phase int) ScaleFilter {
	return newScaleFilter(p, rel, phase, func(x float64) float64 { return 0.5 * sinc(x*0.5) })
}

// NewUpFilter builds an interpolation filter whose output sample sits at
// input position pos+rel, in input sample units.
func NewUpFilter(p FilterPreset, rel float64, phase int) ScaleFilter {
	return newScaleFilter(p, rel, phase, sinc)
}

func newScaleFilter(p FilterPreset, rel float64, phase int, base func(float64) float64) ScaleFilter {
	ref := math.Floor(rel)
	frac := rel - ref

	f := ScaleFilter{Preset: p, Phase: phase, I32Shift: filterPrecision, I32Offset: 1 << (filterPrecision - 1), Clip: true}

	if p == FilterF0 {
		f.Taps = 1
		f.Offset = int(ref)
		if frac > 0.5 {
			f.Offset++
		}
		f.FloatCoeff = []float64{1}
		f.I32Coeff = []int32{1 << filterPrecision}
		return f
	}

	n := p.taps()
	switch frac {
	case 0:
		n |= 1
	case 0.5:
		if n%2 == 1 {
			n++
		}
	}
	start := int(math.Floor(frac - float64(n-1)/2 + 0.5))
	half := float64(n)/2 + 0.5

	f.Taps = n
	f.Offset = start + int(ref)
	f.FloatCoeff = make([]float64, n)
	var sum float64
	for k := 0; k < n; k++ {
		x := float64(start+k) - frac
		w := base(x) * p.window(x/half)
		f.FloatCoeff[k] = w
		sum += w
	}
	if sum != 0 {
		for k := range f.FloatCoeff {
			f.FloatCoeff[k] /= sum
		}
	}

	f.I32Coeff = make([]int32, n)
	var isum, peak int32
	peakIdx := 0
	for k, w := range f.FloatCoeff {
		c := int32(math.Round(w * (1 << filterPrecision)))
		f.I32Coeff[k] = c
		isum += c
		if c > peak {
			peak, peakIdx = c, k
		}
	}
	// Fixed-point taps must sum to unity so that flat input stays flat.
	f.I32Coeff[peakIdx] += (1 << filterPrecision) - isum
	return f
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

type filterSample interface {
	~float32 | ~float64 | ~uint8 | ~uint16 | ~int32
}

// filterFloat applies f around pos over a line of n samples spaced stride apart.
func filterFloat[T filterSample](f *ScaleFilter, src []T, pos, stride, n int) float64 {
	var sum float64
	first := pos + f.Offset
	for k, w := range f.FloatCoeff {
		sum += w * float64(src[clampIndex(first+k, n)*stride])
	}
	return sum
}

// filterFixed applies the integer taps with rounding and shift.
func filterFixed[T filterSample](f *ScaleFilter, src []T, pos, stride, n int) int32 {
	var sum int64
	first := pos + f.Offset
	for k, w := range f.I32Coeff {
		sum += int64(w) * int64(src[clampIndex(first+k, n)*stride])
	}
	return int32((sum + int64(f.I32Offset)) >> f.I32Shift)
}

// supportRange returns the extrema of the samples f would read.
func supportRange[T filterSample](f *ScaleFilter, src []T, pos, stride, n int) (lo, hi float64) {
	first := pos + f.Offset
	lo = math.Inf(1)
	hi = math.Inf(-1)
	for k := 0; k < f.Taps; k++ {
		v := float64(src[clampIndex(first+k, n)*stride])
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// chromaPhase returns the horizontal and vertical position of a chroma
// sample in luma units, relative to the even luma sample of its pair.
func chromaPhase(loc ChromaLocation) (h, v float64) {
	switch loc {
	case ChromaLocLeft:
		return 0, 0.5
	case ChromaLocCenter:
		return 0.5, 0.5
	case ChromaLocTopLeft:
		return 0, 0
	case ChromaLocTop:
		return 0.5, 0
	case ChromaLocBottomLeft:
		return 0, 1
	case ChromaLocBottom:
		return 0.5, 1
	default:
		return 0, 0.5
	}
}

// ProgressiveLocation checks that top and bottom field locations agree.
func ProgressiveLocation(top, bottom ChromaLocation) (ChromaLocation, bool) {
	return top, top == bottom
}

// downFilters returns the decimation filter at phase p.
func downFilters(presets []FilterPreset, p float64) []ScaleFilter {
	out := make([]ScaleFilter, len(presets))
	for i, pr := range presets {
		out[i] = NewDownFilter(pr, p, 0)
	}
	return out
}

// upFilters returns the even and odd output phase filters for each preset.
func upFilters(presets []FilterPreset, p float64) [][2]ScaleFilter {
	out := make([][2]ScaleFilter, len(presets))
	for i, pr := range presets {
		out[i] = [2]ScaleFilter{
			NewUpFilter(pr, -p/2, 0),
			NewUpFilter(pr, (1-p)/2, 1),
		}
	}
	return out
}

func sinc(x float64) float64 {
	x = math.Abs(x) * math.Pi
	if x >= 1.220703e-4 {
		return math.Sin(x) / x
	}
	return 1
}
