package hdrtools

import "math"

// adaptivePresets are the decimation candidates tried for every line.
var adaptivePresets = []FilterPreset{FilterL6, FilterL4, FilterL3, FilterL2, FilterF0}

type adaptiveScratch[B float64 | int32] struct {
	data  []B
	temp  []B
	res   []B
	cands [][]B
}

// Conv444to420Adaptive decimates chroma choosing, per output row and then
// per output column, the candidate filter whose down then up round trip
// reconstructs the input with the lowest squared error.
type Conv444to420Adaptive struct {
	name         string
	hDown, vDown []ScaleFilter
	hUp, vUp     [2]ScaleFilter

	fs adaptiveScratch[float64]
	is adaptiveScratch[int32]

	onSelect func(vertical bool, idx int)
}

// NewConv444to420Adaptive builds the RD adaptive resampler. up is the
// interpolation kernel assumed for reconstruction.
func NewConv444to420Adaptive(loc ChromaLocation, up FilterPreset) *Conv444to420Adaptive {
	hp, vp := chromaPhase(loc)
	hu, vu := upFilters([]FilterPreset{up}, hp), upFilters([]FilterPreset{up}, vp)
	return &Conv444to420Adaptive{
		name:  "Conv444to420Adaptive",
		hDown: downFilters(adaptivePresets, hp),
		vDown: downFilters(adaptivePresets, vp),
		hUp:   hu[0],
		vUp:   vu[0],
	}
}

// Process resamples the chroma planes of in into out.
func (a *Conv444to420Adaptive) Process(out, in *Frame) {
	if !checkResampleFrames(a.name, out, in) {
		return
	}
	out.CopyPlane(in, 0)
	if in.CompSize[3] > 0 && in.CompSize[3] == out.CompSize[3] {
		out.CopyPlane(in, 3)
	}

	for c := 1; c < 3; c++ {
		srcW, srcH := in.Width[c], in.Height[c]
		if out.Width[c] != (srcW+1)/2 || out.Height[c] != (srcH+1)/2 {
			fatalf("%s: chroma plane %d is %dx%d, expected %dx%d", a.name, c,
				out.Width[c], out.Height[c], (srcW+1)/2, (srcH+1)/2)
			return
		}
		clip := anyClip(a.hDown, a.vDown)
		minPel, maxPel := out.MinPelValue[c], out.MaxPelValue[c]
		if !clip {
			minPel, maxPel = 0, 1<<out.BitDepth-1
		}
		switch in.Storage {
		case StorageFloat:
			data := grow(&a.fs.data, srcW*srcH)
			for i, v := range in.FloatComp[c][:srcW*srcH] {
				data[i] = float64(v)
			}
			res := adaptivePlane(a, &a.fs, srcW, srcH, filterFloat[float64])
			lo, hi := chromaBounds(out, clip)
			for i := range out.FloatComp[c][:out.CompSize[c]] {
				out.FloatComp[c][i] = float32(clampf(res[i], lo, hi))
			}
		case StorageUint16:
			adaptivePlaneFixed(a, fixedPlane[uint16](out, c), fixedPlane[uint16](in, c), srcW, srcH, minPel, maxPel)
		case StorageUint8:
			adaptivePlaneFixed(a, fixedPlane[uint8](out, c), fixedPlane[uint8](in, c), srcW, srcH, minPel, maxPel)
		}
	}
	out.FrameNo = in.FrameNo
	out.IsAvailable = true
}

func adaptivePlaneFixed[T fixedPel](a *Conv444to420Adaptive, dst, src []T, srcW, srcH, minPel, maxPel int) {
	data := grow(&a.is.data, srcW*srcH)
	for i, v := range src[:srcW*srcH] {
		data[i] = int32(v)
	}
	res := adaptivePlane(a, &a.is, srcW, srcH, filterFixed[int32])
	for i := range dst {
		dst[i] = T(clampPel(float64(res[i]), minPel, maxPel))
	}
}

// adaptivePlane runs the vertical then the horizontal selection pass over
// s.data and returns the decimated plane.
func adaptivePlane[B float64 | int32](a *Conv444to420Adaptive, s *adaptiveScratch[B], w, h int,
	apply func(*ScaleFilter, []B, int, int, int) B,
) []B {
	h2, w2 := (h+1)/2, (w+1)/2
	tmp := grow(&s.temp, w*h2)
	adaptivePass(a, s, true, tmp, s.data, w, h, a.vDown, &a.vUp, apply)

	res := grow(&s.res, w2*h2)
	adaptivePass(a, s, false, res, tmp, h2, w, a.hDown, &a.hUp, apply)
	return res
}

// adaptivePass decimates src along one axis. lines is the plane width for
// the vertical pass and the plane height for the horizontal pass.
func adaptivePass[B float64 | int32](a *Conv444to420Adaptive, s *adaptiveScratch[B], vertical bool, dst, src []B,
	lines, n int, down []ScaleFilter, up *[2]ScaleFilter, apply func(*ScaleFilter, []B, int, int, int) B,
) {
	m := (n + 1) / 2
	// at returns the line start and stride of line l in a plane with axis
	// length size.
	at := func(l, size int) (start, stride int) {
		if vertical {
			return l, lines
		}
		return l * size, 1
	}

	for len(s.cands) < len(down) {
		s.cands = append(s.cands, nil)
	}
	for k := range down {
		cand := grow(&s.cands[k], m*lines)
		for l := 0; l < lines; l++ {
			ss, sStride := at(l, n)
			ds, dStride := at(l, m)
			for o := 0; o < m; o++ {
				cand[ds+o*dStride] = apply(&down[k], src[ss:], 2*o, sStride, n)
			}
		}
	}

	for o := 0; o < m; o++ {
		best := bestCandidate(len(down), func(k int, limit float64) float64 {
			var distortion float64
			for t := 2 * o; t < 2*o+2 && t < n; t++ {
				for l := 0; l < lines; l++ {
					ss, sStride := at(l, n)
					cs, cStride := at(l, m)
					rec := apply(&up[t&1], s.cands[k][cs:], t>>1, cStride, m)
					d := float64(rec) - float64(src[ss+t*sStride])
					distortion += d * d
				}
				if distortion >= limit {
					return distortion
				}
			}
			return distortion
		})
		if a.onSelect != nil {
			a.onSelect(vertical, best)
		}
		for l := 0; l < lines; l++ {
			ds, dStride := at(l, m)
			dst[ds+o*dStride] = s.cands[best][ds+o*dStride]
		}
	}
}

// bestCandidate returns the index of the lowest cost among n candidates,
// keeping the earliest on ties. cost may return as soon as its running
// total reaches limit.
func bestCandidate(n int, cost func(k int, limit float64) float64) int {
	best, minDistortion := 0, math.Inf(1)
	for k := 0; k < n; k++ {
		if d := cost(k, minDistortion); d < minDistortion {
			best, minDistortion = k, d
		}
	}
	return best
}
