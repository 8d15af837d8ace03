package frameio

import (
	"bytes"
	"errors"
	"image"
	"io"

	"github.com/vearutop/hdrtools"
	"golang.org/x/image/tiff"
)

// ReadTIFF decodes a TIFF image into a 16-bit full range RGB 4:4:4 frame.
func ReadTIFF(data []byte, primaries hdrtools.ColorPrimaries) (*hdrtools.Frame, error) {
	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, errors.New("tiff: invalid dimensions")
	}

	f := hdrtools.NewFrame(hdrtools.FrameFormat{
		Width:          w,
		Height:         h,
		ChromaFormat:   hdrtools.ChromaFormat444,
		Storage:        hdrtools.StorageUint16,
		BitDepth:       16,
		ColorSpace:     hdrtools.ColorSpaceRGB,
		ColorPrimaries: primaries,
		SampleRange:    hdrtools.SampleRangeFull,
	})
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := y*w + x
			f.Ui16Comp[0][i], f.Ui16Comp[1][i], f.Ui16Comp[2][i] = uint16(r), uint16(g), uint16(bl)
		}
	}
	return f, nil
}

// WriteTIFF encodes a fixed point RGB 4:4:4 frame as a 16-bit TIFF. Samples
// narrower than 16 bits are scaled up.
func WriteTIFF(w io.Writer, f *hdrtools.Frame) error {
	if f.IsFloat() || f.ColorSpace != hdrtools.ColorSpaceRGB || f.ChromaFormat != hdrtools.ChromaFormat444 {
		return errors.New("tiff: only fixed point RGB 4:4:4 frames can be written")
	}
	width, height := f.Width[0], f.Height[0]
	shift := 16 - f.BitDepth
	img := image.NewNRGBA64(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		off := 8 * i
		for c := 0; c < 3; c++ {
			v := uint16(int(f.Value(c, i)) << shift)
			img.Pix[off+2*c], img.Pix[off+2*c+1] = uint8(v>>8), uint8(v)
		}
		img.Pix[off+6], img.Pix[off+7] = 0xff, 0xff
	}
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
}
