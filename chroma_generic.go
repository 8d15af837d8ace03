package hdrtools

// BoundMode limits the output of a generic resampler to the extrema of
// nearby input samples, suppressing ringing at edges.
type BoundMode int

const (
	// BoundNone leaves filter output unbounded.
	BoundNone BoundMode = iota
	// BoundSupport bounds to the samples read by the filter itself.
	BoundSupport
	// BoundNeighbors bounds to a four sample neighborhood.
	BoundNeighbors
	// BoundCenter bounds to the samples closest to the output position.
	BoundCenter
)

// ResamplerOptions configures the fixed filter resamplers.
type ResamplerOptions struct {
	Location ChromaLocation
	Filter   FilterPreset
	Bound    BoundMode
}

// DefaultResamplerOptions returns left sited chroma with a 4-tap Lanczos
// kernel and no bounding.
func DefaultResamplerOptions() ResamplerOptions {
	return ResamplerOptions{Location: ChromaLocLeft, Filter: FilterL4}
}

func buildBank(down bool, presets []FilterPreset, p float64) filterBank {
	var b filterBank
	if down {
		b.cands[0] = downFilters(presets, p)
		return b
	}
	for _, pair := range upFilters(presets, p) {
		b.cands[0] = append(b.cands[0], pair[0])
		b.cands[1] = append(b.cands[1], pair[1])
	}
	return b
}

func (b *filterBank) setBound(mode BoundMode, down bool, p float64) {
	footprint := *b
	switch mode {
	case BoundSupport:
	case BoundNeighbors:
		footprint = buildBank(down, []FilterPreset{FilterL4}, p)
	case BoundCenter:
		footprint = buildBank(down, []FilterPreset{FilterL2}, p)
	default:
		return
	}
	for ph := 0; ph < 2; ph++ {
		if len(footprint.cands[ph]) > 0 {
			f := footprint.cands[ph][0]
			b.bound[ph] = &f
		}
	}
}

func newFixedResampler(name string, down, horizontal, vertical bool, o ResamplerOptions) resampler {
	hp, vp := chromaPhase(o.Location)
	r := resampler{
		name:       name,
		down:       down,
		horizontal: horizontal,
		vertical:   vertical,
		hBank:      buildBank(down, []FilterPreset{o.Filter}, hp),
		vBank:      buildBank(down, []FilterPreset{o.Filter}, vp),
	}
	r.hBank.setBound(o.Bound, down, hp)
	r.vBank.setBound(o.Bound, down, vp)
	return r
}

// Conv444to420Generic decimates chroma by two in both directions with a
// single filter.
type Conv444to420Generic struct{ resampler }

// NewConv444to420Generic builds a 4:4:4 to 4:2:0 resampler.
func NewConv444to420Generic(o ResamplerOptions) *Conv444to420Generic {
	return &Conv444to420Generic{newFixedResampler("Conv444to420Generic", true, true, true, o)}
}

// Process resamples the chroma planes of in into out.
func (c *Conv444to420Generic) Process(out, in *Frame) { c.process(out, in) }

// Conv444to422Generic decimates chroma horizontally.
type Conv444to422Generic struct{ resampler }

// NewConv444to422Generic builds a 4:4:4 to 4:2:2 resampler.
func NewConv444to422Generic(o ResamplerOptions) *Conv444to422Generic {
	return &Conv444to422Generic{newFixedResampler("Conv444to422Generic", true, true, false, o)}
}

// Process resamples the chroma planes of in into out.
func (c *Conv444to422Generic) Process(out, in *Frame) { c.process(out, in) }

// Conv420to444Generic interpolates chroma by two in both directions.
type Conv420to444Generic struct{ resampler }

// NewConv420to444Generic builds a 4:2:0 to 4:4:4 resampler.
func NewConv420to444Generic(o ResamplerOptions) *Conv420to444Generic {
	return &Conv420to444Generic{newFixedResampler("Conv420to444Generic", false, true, true, o)}
}

// Process resamples the chroma planes of in into out.
func (c *Conv420to444Generic) Process(out, in *Frame) { c.process(out, in) }

// Conv422to444Generic interpolates chroma horizontally.
type Conv422to444Generic struct{ resampler }

// NewConv422to444Generic builds a 4:2:2 to 4:4:4 resampler.
func NewConv422to444Generic(o ResamplerOptions) *Conv422to444Generic {
	return &Conv422to444Generic{newFixedResampler("Conv422to444Generic", false, true, false, o)}
}

// Process resamples the chroma planes of in into out.
func (c *Conv422to444Generic) Process(out, in *Frame) { c.process(out, in) }
