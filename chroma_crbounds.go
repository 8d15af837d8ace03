package hdrtools

// crBoundsPresets is ordered from the sharpest to the softest kernel.
var crBoundsPresets = []FilterPreset{FilterL6, FilterL5, FilterL4, FilterL3, FilterL2}

func newCrBoundsResampler(name string, down bool, loc ChromaLocation) resampler {
	hp, vp := chromaPhase(loc)
	return resampler{
		name:       name,
		down:       down,
		horizontal: true,
		vertical:   true,
		hBank:      buildBank(down, crBoundsPresets, hp),
		vBank:      buildBank(down, crBoundsPresets, vp),
	}
}

// Conv444to420CrBounds decimates chroma choosing, per output sample, the
// sharpest filter whose input support has a max-min spread within the edge
// threshold. The softest filter is used when none qualifies.
type Conv444to420CrBounds struct{ resampler }

// NewConv444to420CrBounds builds an edge adaptive 4:4:4 to 4:2:0 resampler.
func NewConv444to420CrBounds(loc ChromaLocation) *Conv444to420CrBounds {
	return &Conv444to420CrBounds{newCrBoundsResampler("Conv444to420CrBounds", true, loc)}
}

// Process resamples the chroma planes of in into out.
func (c *Conv444to420CrBounds) Process(out, in *Frame) { c.process(out, in) }

// Conv420to444CrBounds is the interpolating counterpart of
// Conv444to420CrBounds.
type Conv420to444CrBounds struct{ resampler }

// NewConv420to444CrBounds builds an edge adaptive 4:2:0 to 4:4:4 resampler.
func NewConv420to444CrBounds(loc ChromaLocation) *Conv420to444CrBounds {
	return &Conv420to444CrBounds{newCrBoundsResampler("Conv420to444CrBounds", false, loc)}
}

// Process resamples the chroma planes of in into out.
func (c *Conv420to444CrBounds) Process(out, in *Frame) { c.process(out, in) }
