package hdrtools

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

// MaxPSNR is reported for identical planes.
const MaxPSNR = 100.0

// PSNR returns the peak signal to noise ratio of the first three planes of
// test against ref. peak is the maximum sample value; zero selects the
// maximum code value for fixed point frames and 1 for float frames.
func PSNR(ref, test *Frame, peak float64) ([3]float64, error) {
	var res [3]float64
	if ref.Storage != test.Storage {
		return res, errors.New("psnr: storage mismatch")
	}
	if peak <= 0 {
		peak = 1
		if !ref.IsFloat() {
			peak = math.Ldexp(1, ref.BitDepth) - 1
		}
	}

	for c := 0; c < ref.components(); c++ {
		if ref.CompSize[c] != test.CompSize[c] {
			return res, fmt.Errorf("psnr: plane %d size %d does not match %d", c, test.CompSize[c], ref.CompSize[c])
		}
	}

	var g errgroup.Group
	for c := 0; c < ref.components(); c++ {
		g.Go(func() error {
			res[c] = planePSNR(ref, test, c, peak)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}

func planePSNR(ref, test *Frame, c int, peak float64) float64 {
	n := ref.CompSize[c]
	if n == 0 {
		return 0
	}
	var sse float64
	for i := 0; i < n; i++ {
		d := ref.Value(c, i) - test.Value(c, i)
		sse += d * d
	}
	if sse == 0 {
		return MaxPSNR
	}
	return math.Min(MaxPSNR, 10*math.Log10(peak*peak*float64(n)/sse))
}
