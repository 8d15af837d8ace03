// Package hdrtools provides a pure-Go implementation of the HDR/SDR color
// processing core used by batch video conversion tools.
//
// It converts planar frames between color spaces (RGB, Y'CbCr, XYZ, ICtCp)
// with a fixed 3x3 matrix per transform mode, corrects luma for the linear
// light error introduced by chroma subsampling, and resamples chroma planes
// between 4:4:4, 4:2:2 and 4:2:0 with fixed, edge-bounded or RD-adaptive
// filter banks. Processing is synchronous and single-threaded per instance.
package hdrtools
