package hdrtools

import "math"

// TransferFunction maps between encoded and linear light values.
// Forward decodes (EOTF-like), Inverse encodes.
type TransferFunction interface {
	Forward(v float64) float64
	Inverse(v float64) float64
	ForwardDerivative(v float64) float64
}

// NewTransferFunction returns the transfer function for t. gamma is used by
// TransferPower only; zero selects 2.4.
func NewTransferFunction(t Transfer, gamma float64) TransferFunction {
	switch t {
	case TransferPQ:
		return PQ{}
	case TransferHLG:
		return HLG{}
	case TransferSRGB:
		return SRGB{}
	case TransferPower:
		if gamma <= 0 {
			gamma = defaultGamma
		}
		return Power{Gamma: gamma}
	default:
		return Linear{}
	}
}

// Linear is the identity transfer.
type Linear struct{}

func (Linear) Forward(v float64) float64 { return v }
func (Linear) Inverse(v float64) float64 { return v }
func (Linear) ForwardDerivative(float64) float64 { return 1 }

// Power is a pure power law, linear = encoded^Gamma.
type Power struct {
	Gamma float64
}

func (p Power) Forward(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Pow(v, p.Gamma)
}

func (p Power) Inverse(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Pow(v, 1/p.Gamma)
}

func (p Power) ForwardDerivative(v float64) float64 {
	if v <= 0 {
		if p.Gamma == 1 {
			return 1
		}
		return 0
	}
	return p.Gamma * math.Pow(v, p.Gamma-1)
}

// SRGB is the IEC 61966-2-1 curve.
type SRGB struct{}

func (SRGB) Forward(v float64) float64 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

func (SRGB) Inverse(v float64) float64 {
	if v <= 0.0031308 {
		return 12.92 * v
	}
	return 1.055*math.Pow(v, 1.0/2.4) - 0.055
}

func (SRGB) ForwardDerivative(v float64) float64 {
	if v <= 0.04045 {
		return 1 / 12.92
	}
	return 2.4 / 1.055 * math.Pow((v+0.055)/1.055, 1.4)
}

// SMPTE ST 2084 constants.
const (
	pqM1 = 2610.0 / 16384
	pqM2 = 2523.0 / 4096 * 128
	pqC1 = 3424.0 / 4096
	pqC2 = 2413.0 / 4096 * 32
	pqC3 = 2392.0 / 4096 * 32
)

// PQ is the SMPTE ST 2084 curve, linear 1.0 = 10000 nits.
type PQ struct{}

func (PQ) Forward(v float64) float64 {
	if v <= 0 {
		return 0
	}
	p := math.Pow(v, 1/pqM2)
	f := (p - pqC1) / (pqC2 - pqC3*p)
	if f <= 0 {
		return 0
	}
	return math.Pow(f, 1/pqM1)
}

func (PQ) Inverse(v float64) float64 {
	if v <= 0 {
		return math.Pow(pqC1, pqM2)
	}
	y := math.Pow(v, pqM1)
	return math.Pow((pqC1+pqC2*y)/(1+pqC3*y), pqM2)
}

func (PQ) ForwardDerivative(v float64) float64 {
	if v <= 0 {
		return 0
	}
	p := math.Pow(v, 1/pqM2)
	den := pqC2 - pqC3*p
	f := (p - pqC1) / den
	if f <= 0 {
		return 0
	}
	dp := math.Pow(v, 1/pqM2-1) / pqM2
	df := (pqC2 - pqC3*pqC1) / (den * den)
	return math.Pow(f, 1/pqM1-1) / pqM1 * df * dp
}

// BT.2100 HLG constants.
const (
	hlgA = 0.17883277
	hlgB = 0.28466892
	hlgC = 0.55991073
)

// HLG is the BT.2100 hybrid log-gamma curve, scene linear in [0, 1].
type HLG struct{}

func (HLG) Forward(v float64) float64 {
	if v <= 0 {
		return 0
	}
	if v <= 0.5 {
		return v * v / 3
	}
	return (math.Exp((v-hlgC)/hlgA) + hlgB) / 12
}

func (HLG) Inverse(v float64) float64 {
	if v <= 0 {
		return 0
	}
	if v <= 1.0/12 {
		return math.Sqrt(3 * v)
	}
	return hlgA*math.Log(12*v-hlgB) + hlgC
}

func (HLG) ForwardDerivative(v float64) float64 {
	if v <= 0 {
		return 0
	}
	if v <= 0.5 {
		return 2 * v / 3
	}
	return math.Exp((v-hlgC)/hlgA) / (12 * hlgA)
}

// TransferConverter re-encodes float samples from one transfer function to
// another. Scale multiplies linear light between the two; zero means 1.
type TransferConverter struct {
	From  TransferFunction
	To    TransferFunction
	Scale float64
}

// Process converts the color planes of in into out. Both must be float
// frames of the same size.
func (tc TransferConverter) Process(out, in *Frame) {
	if !in.IsFloat() || !out.IsFloat() || in.CompSize != out.CompSize {
		return
	}
	scale := tc.Scale
	if scale == 0 {
		scale = 1
	}
	for c := 0; c < in.components(); c++ {
		for i, v := range in.FloatComp[c] {
			out.FloatComp[c][i] = float32(tc.To.Inverse(tc.From.Forward(float64(v)) * scale))
		}
	}
	out.FrameNo, out.IsAvailable = in.FrameNo, true
}
