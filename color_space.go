package hdrtools

type mat3 [3][3]float64

type chromaticity struct {
	x, y float64
}

type primariesDef struct {
	r, g, b, w chromaticity
}

var (
	whiteD65 = chromaticity{0.3127, 0.3290}
	whiteD60 = chromaticity{0.32168, 0.33767}
)

var primariesTable = map[ColorPrimaries]primariesDef{
	PrimariesBT709:  {r: chromaticity{0.640, 0.330}, g: chromaticity{0.300, 0.600}, b: chromaticity{0.150, 0.060}, w: whiteD65},
	PrimariesBT601:  {r: chromaticity{0.630, 0.340}, g: chromaticity{0.310, 0.595}, b: chromaticity{0.155, 0.070}, w: whiteD65},
	PrimariesBT2020: {r: chromaticity{0.708, 0.292}, g: chromaticity{0.170, 0.797}, b: chromaticity{0.131, 0.046}, w: whiteD65},
	PrimariesP3D65:  {r: chromaticity{0.680, 0.320}, g: chromaticity{0.265, 0.690}, b: chromaticity{0.150, 0.060}, w: whiteD65},
	PrimariesP3D60:  {r: chromaticity{0.680, 0.320}, g: chromaticity{0.265, 0.690}, b: chromaticity{0.150, 0.060}, w: whiteD60},
}

func (c chromaticity) xyz() [3]float64 {
	return [3]float64{c.x / c.y, 1, (1 - c.x - c.y) / c.y}
}

// rgbToXYZ derives the normalized primary matrix (SMPTE RP 177).
func rgbToXYZ(p primariesDef) mat3 {
	r, g, b := p.r.xyz(), p.g.xyz(), p.b.xyz()
	m := mat3{
		{r[0], g[0], b[0]},
		{r[1], g[1], b[1]},
		{r[2], g[2], b[2]},
	}
	s := m.inverse().apply(p.w.xyz())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] *= s[j]
		}
	}
	return m
}

func xyzToRGB(p primariesDef) mat3 {
	return rgbToXYZ(p).inverse()
}

// convertLinearGamut returns the linear RGB matrix from one gamut to another.
func convertLinearGamut(from, to ColorPrimaries) mat3 {
	return xyzToRGB(primariesTable[to]).mul(rgbToXYZ(primariesTable[from]))
}

// SetColorConversion returns the forward RGB to XYZ matrix for the given
// primaries. ok is false for primaries without chromaticities.
func SetColorConversion(p ColorPrimaries) (m [3][3]float64, ok bool) {
	def, ok := primariesTable[p]
	if !ok {
		return m, false
	}
	return rgbToXYZ(def), true
}

// SetYConversion returns the luminance row of the RGB to XYZ matrix.
func SetYConversion(p ColorPrimaries) (row [3]float64, ok bool) {
	m, ok := SetColorConversion(p)
	if !ok {
		return row, false
	}
	return m[1], true
}

func (m mat3) apply(v [3]float64) [3]float64 {
	return [3]float64{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

func (m mat3) mul(n mat3) mat3 {
	var out mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[i][0]*n[0][j] + m[i][1]*n[1][j] + m[i][2]*n[2][j]
		}
	}
	return out
}

func (m mat3) inverse() mat3 {
	a, b, c := m[0][0], m[0][1], m[0][2]
	d, e, f := m[1][0], m[1][1], m[1][2]
	g, h, i := m[2][0], m[2][1], m[2][2]
	co00 := e*i - f*h
	co01 := f*g - d*i
	co02 := d*h - e*g
	det := a*co00 + b*co01 + c*co02
	if det == 0 {
		return mat3{}
	}
	inv := 1 / det
	return mat3{
		{co00 * inv, (c*h - b*i) * inv, (b*f - c*e) * inv},
		{co01 * inv, (a*i - c*g) * inv, (c*d - a*f) * inv},
		{co02 * inv, (b*g - a*h) * inv, (a*e - b*d) * inv},
	}
}
