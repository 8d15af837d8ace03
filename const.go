package hdrtools

// BT.2020 constant luminance weights and chroma dividers (BT.2020-2, Table 4).
const (
	clKr = 0.2627
	clKg = 0.6780
	clKb = 0.0593

	clPB = 0.7910
	clNB = -0.9702
	clPR = 0.4969
	clNR = -0.8591
)

// edgeClassifier is the max-min spread on a [0,1] scale above which a
// candidate filter is rejected by the bounded resamplers.
const edgeClassifier = 0.15

const (
	filterPrecision = 12
	defaultGamma    = 2.4
)

// Luma adjustment search table index precision, in bits per component.
const yAdjustIndexBits = 8
