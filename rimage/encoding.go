package rimage

import (
	"math"

	"github.com/pkg/errors"
)

// Encoding names the pixel layout of a Raster using the sensor_msgs/Image spelling.
type Encoding string

// Known single and multi channel encodings.
const (
	Encoding8UC1   Encoding = "8UC1"
	Encoding8SC1   Encoding = "8SC1"
	Encoding16UC1  Encoding = "16UC1"
	Encoding16SC1  Encoding = "16SC1"
	Encoding32SC1  Encoding = "32SC1"
	Encoding32FC1  Encoding = "32FC1"
	Encoding64FC1  Encoding = "64FC1"
	EncodingMono8  Encoding = "mono8"
	EncodingMono16 Encoding = "mono16"
	EncodingRGB8   Encoding = "rgb8"
	EncodingBGR8   Encoding = "bgr8"
	EncodingRGBA8  Encoding = "rgba8"
	EncodingBGRA8  Encoding = "bgra8"
)

// SampleKind is the numeric type of one channel of a sample.
type SampleKind int

// The sample kinds a Raster may carry.
const (
	KindUint8 SampleKind = iota
	KindInt8
	KindUint16
	KindInt16
	KindInt32
	KindFloat32
	KindFloat64
)

// EncodingInfo describes the memory layout of an encoding.
type EncodingInfo struct {
	Kind           SampleKind
	Channels       int
	BytesPerSample int
}

var encodingInfos = map[Encoding]EncodingInfo{
	Encoding8UC1:   {KindUint8, 1, 1},
	EncodingMono8:  {KindUint8, 1, 1},
	Encoding8SC1:   {KindInt8, 1, 1},
	Encoding16UC1:  {KindUint16, 1, 2},
	EncodingMono16: {KindUint16, 1, 2},
	Encoding16SC1:  {KindInt16, 1, 2},
	Encoding32SC1:  {KindInt32, 1, 4},
	Encoding32FC1:  {KindFloat32, 1, 4},
	Encoding64FC1:  {KindFloat64, 1, 8},
	EncodingRGB8:   {KindUint8, 3, 3},
	EncodingBGR8:   {KindUint8, 3, 3},
	EncodingRGBA8:  {KindUint8, 4, 4},
	EncodingBGRA8:  {KindUint8, 4, 4},
}

// Info returns the layout of the encoding and whether it is known at all.
func (e Encoding) Info() (EncodingInfo, bool) {
	info, ok := encodingInfos[e]
	return info, ok
}

// IsInteger reports whether the encoding is a single channel integer layout.
func (e Encoding) IsInteger() bool {
	info, ok := e.Info()
	if !ok || info.Channels != 1 {
		return false
	}
	switch info.Kind {
	case KindUint8, KindInt8, KindUint16, KindInt16, KindInt32:
		return true
	case KindFloat32, KindFloat64:
		return false
	default:
		return false
	}
}

// ErrUnsupportedEncoding is returned when a raster cannot be decoded into the requested form.
var ErrUnsupportedEncoding = errors.New("unsupported encoding")

// LabelGrid is a decoded, tightly packed grid of integer labels.
type LabelGrid struct {
	Width  int
	Height int
	Data   []int32
}

// At returns the label at column u, row v.
func (g *LabelGrid) At(u, v int) int32 {
	return g.Data[v*g.Width+u]
}

// DecodeLabels decodes a single channel integer raster into an int32 grid. Every
// integer encoding up to 32 bits converts without loss; float and color encodings
// are refused.
func DecodeLabels(r *Raster) (*LabelGrid, error) {
	if !r.Encoding.IsInteger() {
		return nil, errors.Wrapf(ErrUnsupportedEncoding, "cannot decode %q as integer labels", r.Encoding)
	}
	if err := r.CheckLayout(); err != nil {
		return nil, err
	}
	info, _ := r.Encoding.Info()
	order := r.ByteOrder()
	grid := &LabelGrid{Width: r.Width, Height: r.Height, Data: make([]int32, r.Width*r.Height)}
	for v := 0; v < r.Height; v++ {
		row := r.Row(v)
		out := grid.Data[v*r.Width : (v+1)*r.Width]
		for u := range out {
			switch info.Kind {
			case KindUint8:
				out[u] = int32(row[u])
			case KindInt8:
				out[u] = int32(int8(row[u]))
			case KindUint16:
				out[u] = int32(order.Uint16(row[2*u:]))
			case KindInt16:
				out[u] = int32(int16(order.Uint16(row[2*u:])))
			case KindInt32:
				out[u] = int32(order.Uint32(row[4*u:]))
			case KindFloat32, KindFloat64:
			}
		}
	}
	return grid, nil
}

// EncodeLabels packs a grid into a little-endian raster of the given integer encoding.
// Values that do not fit the target encoding are an error rather than being truncated.
func EncodeLabels(grid *LabelGrid, enc Encoding) (*Raster, error) {
	if !enc.IsInteger() {
		return nil, errors.Wrapf(ErrUnsupportedEncoding, "cannot encode labels as %q", enc)
	}
	info, _ := enc.Info()
	step := grid.Width * info.BytesPerSample
	out := &Raster{
		Width:    grid.Width,
		Height:   grid.Height,
		Step:     step,
		Encoding: enc,
		Data:     make([]byte, step*grid.Height),
	}
	order := out.ByteOrder()
	for i, label := range grid.Data {
		dst := out.Data[i*info.BytesPerSample:]
		switch info.Kind {
		case KindUint8:
			if label < 0 || label > math.MaxUint8 {
				return nil, errors.Errorf("label %d does not fit %q", label, enc)
			}
			dst[0] = uint8(label)
		case KindInt8:
			if label < math.MinInt8 || label > math.MaxInt8 {
				return nil, errors.Errorf("label %d does not fit %q", label, enc)
			}
			dst[0] = uint8(int8(label))
		case KindUint16:
			if label < 0 || label > math.MaxUint16 {
				return nil, errors.Errorf("label %d does not fit %q", label, enc)
			}
			order.PutUint16(dst, uint16(label))
		case KindInt16:
			if label < math.MinInt16 || label > math.MaxInt16 {
				return nil, errors.Errorf("label %d does not fit %q", label, enc)
			}
			order.PutUint16(dst, uint16(int16(label)))
		case KindInt32:
			order.PutUint32(dst, uint32(label))
		case KindFloat32, KindFloat64:
		}
	}
	return out, nil
}
