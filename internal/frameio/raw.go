// Package frameio reads and writes frames in raw planar, OpenEXR and TIFF files.
package frameio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/vearutop/hdrtools"
)

func bytesPerSample(f *hdrtools.Frame) int {
	switch f.Storage {
	case hdrtools.StorageFloat:
		return 4
	case hdrtools.StorageUint16:
		return 2
	default:
		return 1
	}
}

// RawFrameSize returns the size in bytes of one frame in a raw planar file.
func RawFrameSize(f *hdrtools.Frame) int {
	n := 0
	for c := 0; c < 4; c++ {
		n += f.CompSize[c]
	}
	return n * bytesPerSample(f)
}

// RawReader reads consecutive planar frames: 8-bit samples as bytes, wider
// samples as little endian uint16 and float samples as little endian float32.
type RawReader struct {
	r   io.Reader
	buf []byte
	n   int
}

// NewRawReader wraps r.
func NewRawReader(r io.Reader) *RawReader {
	return &RawReader{r: r}
}

// ReadFrame fills f with the next frame. It returns io.EOF when no data is left.
func (rr *RawReader) ReadFrame(f *hdrtools.Frame) error {
	size := RawFrameSize(f)
	if cap(rr.buf) < size {
		rr.buf = make([]byte, size)
	}
	buf := rr.buf[:size]
	if _, err := io.ReadFull(rr.r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("read frame %d: %w", rr.n, err)
	}

	off := 0
	for c := 0; c < 4; c++ {
		for i := 0; i < f.CompSize[c]; i++ {
			switch f.Storage {
			case hdrtools.StorageFloat:
				f.FloatComp[c][i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
				off += 4
			case hdrtools.StorageUint16:
				f.Ui16Comp[c][i] = binary.LittleEndian.Uint16(buf[off:])
				off += 2
			default:
				f.ImgComp[c][i] = buf[off]
				off++
			}
		}
	}
	f.FrameNo = rr.n
	f.IsAvailable = true
	rr.n++
	return nil
}

// RawWriter writes frames in the RawReader layout.
type RawWriter struct {
	w   io.Writer
	buf []byte
}

// NewRawWriter wraps w.
func NewRawWriter(w io.Writer) *RawWriter {
	return &RawWriter{w: w}
}

// WriteFrame appends f.
func (rw *RawWriter) WriteFrame(f *hdrtools.Frame) error {
	rw.buf = rw.buf[:0]
	le := binary.LittleEndian
	for c := 0; c < 4; c++ {
		for i := 0; i < f.CompSize[c]; i++ {
			switch f.Storage {
			case hdrtools.StorageFloat:
				rw.buf = le.AppendUint32(rw.buf, math.Float32bits(f.FloatComp[c][i]))
			case hdrtools.StorageUint16:
				rw.buf = le.AppendUint16(rw.buf, f.Ui16Comp[c][i])
			default:
				rw.buf = append(rw.buf, f.ImgComp[c][i])
			}
		}
	}
	_, err := rw.w.Write(rw.buf)
	return err
}
