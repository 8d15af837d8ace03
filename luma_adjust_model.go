package hdrtools

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// ErrMalformedModel is returned when a luma adjustment model is not well formed.
var ErrMalformedModel = errors.New("malformed luma adjustment model")

const (
	yAdjustCoeffs       = 7
	defaultYAdjustNodes = 10
)

// searchNode is one record of the luma adjustment search tree. An inner
// node's eight children start at Child; a leaf's Child is a bucket index.
type searchNode struct {
	Child  int
	IsLeaf bool
}

// YAdjustModel is a search tree over quantized (Y, Cb, Cr) with a second
// order polynomial per leaf bucket.
type YAdjustModel struct {
	nodes  []searchNode
	coeffs [][yAdjustCoeffs]float64
}

// DefaultYAdjustModel returns the fallback model: ten leaf nodes with all
// polynomial coefficients set to one.
func DefaultYAdjustModel() *YAdjustModel {
	m := &YAdjustModel{
		nodes:  make([]searchNode, defaultYAdjustNodes),
		coeffs: make([][yAdjustCoeffs]float64, defaultYAdjustNodes),
	}
	for i := range m.nodes {
		m.nodes[i] = searchNode{Child: i, IsLeaf: true}
		for k := range m.coeffs[i] {
			m.coeffs[i][k] = 1
		}
	}
	return m
}

// LoadYAdjustModel reads a model file. The text format is a node count N,
// N pairs of (child, leaf flag), a bucket count M and M groups of seven
// coefficients, all whitespace separated.
func LoadYAdjustModel(path string) (*YAdjustModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open luma adjustment model: %w", err)
	}
	defer f.Close()

	m, err := ReadYAdjustModel(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ReadYAdjustModel parses a model from r.
func ReadYAdjustModel(r io.Reader) (*YAdjustModel, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	next := func(what string) (string, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", fmt.Errorf("%w: unexpected end of data reading %s", ErrMalformedModel, what)
		}
		return sc.Text(), nil
	}
	nextInt := func(what string) (int, error) {
		s, err := next(what)
		if err != nil {
			return 0, err
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrMalformedModel, what, err)
		}
		return v, nil
	}

	n, err := nextInt("node count")
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: node count %d", ErrMalformedModel, n)
	}
	m := &YAdjustModel{nodes: make([]searchNode, n)}
	for i := range m.nodes {
		child, err := nextInt("node child")
		if err != nil {
			return nil, err
		}
		leaf, err := nextInt("node leaf flag")
		if err != nil {
			return nil, err
		}
		m.nodes[i] = searchNode{Child: child, IsLeaf: leaf != 0}
	}

	buckets, err := nextInt("bucket count")
	if err != nil {
		return nil, err
	}
	if buckets <= 0 {
		return nil, fmt.Errorf("%w: bucket count %d", ErrMalformedModel, buckets)
	}
	m.coeffs = make([][yAdjustCoeffs]float64, buckets)
	for i := range m.coeffs {
		for k := range m.coeffs[i] {
			s, err := next("coefficient")
			if err != nil {
				return nil, err
			}
			if m.coeffs[i][k], err = strconv.ParseFloat(s, 64); err != nil {
				return nil, fmt.Errorf("%w: coefficient %d of bucket %d: %v", ErrMalformedModel, k, i, err)
			}
		}
	}

	for i, nd := range m.nodes {
		if nd.IsLeaf && (nd.Child < 0 || nd.Child >= buckets) {
			return nil, fmt.Errorf("%w: leaf %d points to bucket %d of %d", ErrMalformedModel, i, nd.Child, buckets)
		}
		if !nd.IsLeaf && (nd.Child <= i || nd.Child+8 > n) {
			return nil, fmt.Errorf("%w: node %d has children at %d of %d", ErrMalformedModel, i, nd.Child, n)
		}
	}
	return m, nil
}

// Buckets returns the number of coefficient buckets.
func (m *YAdjustModel) Buckets() int { return len(m.coeffs) }

// Coefficients returns the polynomial of bucket b.
func (m *YAdjustModel) Coefficients(b int) [7]float64 { return m.coeffs[b] }

// tableSearch descends the tree taking one bit of each index per level,
// most significant first, and returns the bucket of the leaf reached.
func (m *YAdjustModel) tableSearch(y, u, v int) int {
	idx := 0
	for bit := yAdjustIndexBits - 1; bit >= 0; bit-- {
		nd := m.nodes[idx]
		if nd.IsLeaf {
			return nd.Child
		}
		idx = nd.Child + (((y>>bit)&1)<<2 | ((u>>bit)&1)<<1 | (v>>bit)&1)
	}
	if nd := m.nodes[idx]; nd.IsLeaf {
		return nd.Child
	}
	return 0
}

// evaluate returns the corrected luma code value for linear luminance y
// and normalized chroma cb, cr.
func (m *YAdjustModel) evaluate(bucket int, y, cb, cr float64) float64 {
	c := &m.coeffs[bucket]
	return c[0]*y*y + c[1]*y + c[2]*cb*cb + c[3]*cb + c[4]*cr*cr + c[5]*cr + c[6]
}
