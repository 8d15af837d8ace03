package frameio

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/vearutop/hdrtools"
)

const exrMagic = 20000630

const (
	exrFlagTiled     = 0x200
	exrFlagDeep      = 0x800
	exrFlagMultipart = 0x1000
)

const (
	exrCompressionNone = 0
	exrCompressionZips = 2
	exrCompressionZip  = 3
)

const (
	exrPixelUint  = 0
	exrPixelHalf  = 1
	exrPixelFloat = 2
)

// exrChannel maps a file channel onto a frame plane; plane -1 skips it and
// plane 3 fans a luminance channel out to R, G and B.
type exrChannel struct {
	name      string
	pixelType int32
	xSampling int32
	ySampling int32
	plane     int
}

func (ch exrChannel) bytesPerPixel() int {
	if ch.pixelType == exrPixelHalf {
		return 2
	}
	return 4
}

type exrHeader struct {
	channels    []exrChannel
	dataWindow  [4]int32
	compression byte
}

func (h *exrHeader) size() (int, int) {
	return int(h.dataWindow[2]-h.dataWindow[0]) + 1, int(h.dataWindow[3]-h.dataWindow[1]) + 1
}

func (h *exrHeader) linesPerBlock() int {
	if h.compression == exrCompressionZip {
		return 16
	}
	return 1
}

// ReadEXR decodes a single part scanline OpenEXR image into a float RGB
// 4:4:4 frame. Uncompressed, ZIPS and ZIP blocks are supported.
func ReadEXR(data []byte, primaries hdrtools.ColorPrimaries) (*hdrtools.Frame, error) {
	r := bytes.NewReader(data)
	h, err := readEXRHeader(r)
	if err != nil {
		return nil, err
	}
	width, height := h.size()

	blockLines := h.linesPerBlock()
	offsets := make([]uint64, (height+blockLines-1)/blockLines)
	for i := range offsets {
		if offsets[i], err = readU64(r); err != nil {
			return nil, fmt.Errorf("exr offsets: %w", err)
		}
	}

	f := hdrtools.NewFrame(hdrtools.FrameFormat{
		Width:          width,
		Height:         height,
		ChromaFormat:   hdrtools.ChromaFormat444,
		Storage:        hdrtools.StorageFloat,
		ColorSpace:     hdrtools.ColorSpaceRGB,
		ColorPrimaries: primaries,
		SampleRange:    hdrtools.SampleRangeFull,
	})

	baseY := int(h.dataWindow[1])
	for _, off := range offsets {
		if off == 0 {
			continue
		}
		if _, err := r.Seek(int64(off), io.SeekStart); err != nil {
			return nil, err
		}
		y, err := readI32(r)
		if err != nil {
			return nil, err
		}
		size, err := readI32(r)
		if err != nil {
			return nil, err
		}
		if size < 0 || int64(size) > int64(r.Len()) {
			return nil, errors.New("exr: invalid block size")
		}
		raw := make([]byte, size)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, err
		}

		startY := int(y) - baseY
		if startY < 0 || startY >= height {
			return nil, errors.New("exr: scanline out of bounds")
		}
		lines := min(blockLines, height-startY)

		expected := 0
		for _, ch := range h.channels {
			expected += width * lines * ch.bytesPerPixel()
		}
		block, err := exrDecompress(h.compression, raw, expected)
		if err != nil {
			return nil, err
		}
		if err := exrDecodeBlock(f, h.channels, startY, lines, block); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func readEXRHeader(r *bytes.Reader) (*exrHeader, error) {
	magic, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if magic != exrMagic {
		return nil, errors.New("exr: bad magic number")
	}
	version, err := readU32(r)
	if err != nil {
		return nil, err
	}
	switch {
	case version&exrFlagTiled != 0:
		return nil, errors.New("exr: tiled images are not supported")
	case version&exrFlagDeep != 0:
		return nil, errors.New("exr: deep images are not supported")
	case version&exrFlagMultipart != 0:
		return nil, errors.New("exr: multipart images are not supported")
	}

	h := &exrHeader{compression: exrCompressionNone}
	var hasWindow bool
	for {
		name, err := readCString(r)
		if err != nil {
			return nil, err
		}
		if name == "" {
			break
		}
		typ, err := readCString(r)
		if err != nil {
			return nil, err
		}
		size, err := readI32(r)
		if err != nil {
			return nil, err
		}
		if size < 0 || int64(size) > int64(r.Len()) {
			return nil, fmt.Errorf("exr: attribute %s has invalid size %d", name, size)
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}

		switch {
		case name == "channels" && typ == "chlist":
			if h.channels, err = parseEXRChannels(payload); err != nil {
				return nil, err
			}
		case name == "dataWindow" && typ == "box2i" && len(payload) == 16:
			for i := range h.dataWindow {
				h.dataWindow[i] = int32(binary.LittleEndian.Uint32(payload[4*i:]))
			}
			hasWindow = true
		case name == "compression" && len(payload) == 1:
			h.compression = payload[0]
		}
	}

	if len(h.channels) == 0 {
		return nil, errors.New("exr: no channels")
	}
	if !hasWindow {
		return nil, errors.New("exr: missing dataWindow")
	}
	if w, ht := h.size(); w <= 0 || ht <= 0 {
		return nil, fmt.Errorf("exr: invalid size %dx%d", w, ht)
	}
	switch h.compression {
	case exrCompressionNone, exrCompressionZips, exrCompressionZip:
	default:
		return nil, fmt.Errorf("exr: unsupported compression %d", h.compression)
	}
	mapped := false
	for _, ch := range h.channels {
		if ch.xSampling != 1 || ch.ySampling != 1 {
			return nil, fmt.Errorf("exr: channel %s is subsampled", ch.name)
		}
		mapped = mapped || ch.plane >= 0
	}
	if !mapped {
		return nil, errors.New("exr: no R, G, B or Y channel")
	}
	return h, nil
}

func parseEXRChannels(data []byte) ([]exrChannel, error) {
	r := bytes.NewReader(data)
	var channels []exrChannel
	for {
		name, err := readCString(r)
		if err != nil {
			return nil, err
		}
		if name == "" {
			return channels, nil
		}
		var rec struct {
			PixelType int32
			Linear    uint8
			Reserved  [3]uint8
			XSampling int32
			YSampling int32
		}
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("exr: channel %s: %w", name, err)
		}
		if rec.PixelType < exrPixelUint || rec.PixelType > exrPixelFloat {
			return nil, fmt.Errorf("exr: channel %s has pixel type %d", name, rec.PixelType)
		}
		plane := -1
		switch strings.ToUpper(name) {
		case "R":
			plane = 0
		case "G":
			plane = 1
		case "B":
			plane = 2
		case "Y":
			plane = 3
		}
		channels = append(channels, exrChannel{
			name:      name,
			pixelType: rec.PixelType,
			xSampling: rec.XSampling,
			ySampling: rec.YSampling,
			plane:     plane,
		})
	}
}

func exrDecompress(compression byte, data []byte, expected int) ([]byte, error) {
	if compression == exrCompressionNone || len(data) == expected {
		if len(data) != expected {
			return nil, errors.New("exr: unexpected block size")
		}
		return data, nil
	}
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	buf, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}
	if len(buf) != expected {
		return nil, errors.New("exr: unexpected decompressed size")
	}
	for i := 1; i < len(buf); i++ {
		buf[i] = byte(int(buf[i]) + int(buf[i-1]) - 128)
	}
	out := make([]byte, len(buf))
	half := (len(buf) + 1) / 2
	for i := range out {
		if i%2 == 0 {
			out[i] = buf[i/2]
		} else {
			out[i] = buf[half+i/2]
		}
	}
	return out, nil
}

func exrDecodeBlock(f *hdrtools.Frame, channels []exrChannel, startY, lines int, data []byte) error {
	width := f.Width[0]
	off := 0
	for row := 0; row < lines; row++ {
		base := (startY + row) * width
		for _, ch := range channels {
			n := width * ch.bytesPerPixel()
			if off+n > len(data) {
				return errors.New("exr: block truncated")
			}
			line := data[off : off+n]
			off += n
			if ch.plane < 0 {
				continue
			}
			for x := 0; x < width; x++ {
				var v float32
				switch ch.pixelType {
				case exrPixelHalf:
					v = halfToFloat32(binary.LittleEndian.Uint16(line[2*x:]))
				case exrPixelFloat:
					v = math.Float32frombits(binary.LittleEndian.Uint32(line[4*x:]))
				default:
					v = float32(binary.LittleEndian.Uint32(line[4*x:]))
				}
				if ch.plane == 3 {
					f.FloatComp[0][base+x], f.FloatComp[1][base+x], f.FloatComp[2][base+x] = v, v, v
					continue
				}
				f.FloatComp[ch.plane][base+x] = v
			}
		}
	}
	return nil
}

// WriteEXR encodes a float RGB 4:4:4 frame as an uncompressed scanline
// OpenEXR image with 32-bit float channels.
func WriteEXR(w io.Writer, f *hdrtools.Frame) error {
	if !f.IsFloat() || f.ColorSpace != hdrtools.ColorSpaceRGB || f.ChromaFormat != hdrtools.ChromaFormat444 {
		return errors.New("exr: only float RGB 4:4:4 frames can be written")
	}
	width, height := f.Width[0], f.Height[0]

	var hdr bytes.Buffer
	le := binary.LittleEndian
	_ = binary.Write(&hdr, le, [2]uint32{exrMagic, 2})

	var chlist bytes.Buffer
	for _, name := range []string{"B", "G", "R"} {
		chlist.WriteString(name)
		chlist.WriteByte(0)
		_ = binary.Write(&chlist, le, [4]int32{exrPixelFloat, 0, 1, 1})
	}
	chlist.WriteByte(0)

	box := func(x1, y1 int32) []byte {
		b := make([]byte, 16)
		le.PutUint32(b[8:], uint32(x1))
		le.PutUint32(b[12:], uint32(y1))
		return b
	}
	f32 := func(v float32) []byte { return le.AppendUint32(nil, math.Float32bits(v)) }
	attr := func(name, typ string, payload []byte) {
		hdr.WriteString(name)
		hdr.WriteByte(0)
		hdr.WriteString(typ)
		hdr.WriteByte(0)
		_ = binary.Write(&hdr, le, int32(len(payload)))
		hdr.Write(payload)
	}
	attr("channels", "chlist", chlist.Bytes())
	attr("compression", "compression", []byte{exrCompressionNone})
	attr("dataWindow", "box2i", box(int32(width-1), int32(height-1)))
	attr("displayWindow", "box2i", box(int32(width-1), int32(height-1)))
	attr("lineOrder", "lineOrder", []byte{0})
	attr("pixelAspectRatio", "float", f32(1))
	attr("screenWindowCenter", "v2f", append(f32(0), f32(0)...))
	attr("screenWindowWidth", "float", f32(1))
	hdr.WriteByte(0)

	lineSize := 8 + 3*4*width
	first := uint64(hdr.Len() + 8*height)
	for y := 0; y < height; y++ {
		_ = binary.Write(&hdr, le, first+uint64(y*lineSize))
	}
	if _, err := w.Write(hdr.Bytes()); err != nil {
		return err
	}

	line := make([]byte, lineSize)
	for y := 0; y < height; y++ {
		le.PutUint32(line[0:], uint32(y))
		le.PutUint32(line[4:], uint32(lineSize-8))
		off := 8
		for _, plane := range []int{2, 1, 0} {
			for _, v := range f.FloatComp[plane][y*width : (y+1)*width] {
				le.PutUint32(line[off:], math.Float32bits(v))
				off += 4
			}
		}
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	return nil
}

func readCString(r *bytes.Reader) (string, error) {
	var sb strings.Builder
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == 0 {
			return sb.String(), nil
		}
		sb.WriteByte(b)
	}
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func readI32(r io.Reader) (int32, error) {
	v, err := readU32(r)
	return int32(v), err
}

func halfToFloat32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := int32(h>>10) & 0x1f
	mant := uint32(h & 0x3ff)

	switch exp {
	case 0:
		if mant == 0 {
			return math.Float32frombits(sign)
		}
		for mant&0x400 == 0 {
			mant <<= 1
			exp--
		}
		exp++
		mant &= 0x3ff
	case 31:
		return math.Float32frombits(sign | 0x7f800000 | mant<<13)
	}
	return math.Float32frombits(sign | uint32(exp+127-15)<<23 | mant<<13)
}
