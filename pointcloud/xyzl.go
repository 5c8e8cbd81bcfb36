package pointcloud

import (
	"encoding/binary"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/xyzl/rimage"
)

// FieldType is the numeric type of a point field, numbered like sensor_msgs/PointField.
type FieldType uint8

// Field types used by labeled clouds.
const (
	FieldFloat32 FieldType = 7
	FieldUint32  FieldType = 6
)

// PointField describes one named channel of a packed point.
type PointField struct {
	Name     string
	Offset   uint32
	Datatype FieldType
	Count    uint32
}

// PointStep is the size in bytes of one packed PointXYZL.
const PointStep = 16

var xyzlFields = []PointField{
	{Name: "x", Offset: 0, Datatype: FieldFloat32, Count: 1},
	{Name: "y", Offset: 4, Datatype: FieldFloat32, Count: 1},
	{Name: "z", Offset: 8, Datatype: FieldFloat32, Count: 1},
	{Name: "label", Offset: 12, Datatype: FieldUint32, Count: 1},
}

// PointXYZL is a position in meters with the label of the pixel it came from.
type PointXYZL struct {
	X, Y, Z float32
	Label   uint32
}

// IsValid reports whether the point has a position.
func (p PointXYZL) IsValid() bool {
	return !math.IsNaN(float64(p.X)) && !math.IsNaN(float64(p.Y)) && !math.IsNaN(float64(p.Z))
}

// Vector returns the position of the point.
func (p PointXYZL) Vector() r3.Vector {
	return r3.Vector{X: float64(p.X), Y: float64(p.Y), Z: float64(p.Z)}
}

// PointCloudXYZL is an organized cloud of Width x Height labeled points stored row-major.
// IsDense is always false because invalid points are kept as NaN.
type PointCloudXYZL struct {
	rimage.Header
	Width   int
	Height  int
	IsDense bool
	Points  []PointXYZL
}

// NewPointCloudXYZL allocates an organized cloud of the given size.
func NewPointCloudXYZL(header rimage.Header, width, height int) *PointCloudXYZL {
	return &PointCloudXYZL{
		Header: header,
		Width:  width,
		Height: height,
		Points: make([]PointXYZL, width*height),
	}
}

// Fields returns the channel layout of the packed representation.
func (pc *PointCloudXYZL) Fields() []PointField {
	return append([]PointField(nil), xyzlFields...)
}

// Size returns the number of points, valid or not.
func (pc *PointCloudXYZL) Size() int {
	return len(pc.Points)
}

// At returns the point that came from pixel (u, v).
func (pc *PointCloudXYZL) At(u, v int) PointXYZL {
	return pc.Points[v*pc.Width+u]
}

// Row returns the points of row v.
func (pc *PointCloudXYZL) Row(v int) []PointXYZL {
	return pc.Points[v*pc.Width : (v+1)*pc.Width]
}

// MetaData computes the bounds of the valid points.
func (pc *PointCloudXYZL) MetaData() MetaData {
	meta := NewMetaData()
	for _, p := range pc.Points {
		meta.Merge(p.Vector())
	}
	return meta
}

// Iterate calls fn for every point in row-major order until fn returns false.
func (pc *PointCloudXYZL) Iterate(fn func(u, v int, p PointXYZL) bool) {
	for i, p := range pc.Points {
		if !fn(i%pc.Width, i/pc.Width, p) {
			return
		}
	}
}

// MarshalBinary packs the points little-endian, PointStep bytes each, in the layout
// described by Fields.
func (pc *PointCloudXYZL) MarshalBinary() ([]byte, error) {
	if len(pc.Points) != pc.Width*pc.Height {
		return nil, errors.Errorf("cloud holds %d points, expected %dx%d", len(pc.Points), pc.Width, pc.Height)
	}
	out := make([]byte, len(pc.Points)*PointStep)
	for i, p := range pc.Points {
		putPoint(out[i*PointStep:], p)
	}
	return out, nil
}

// UnmarshalBinary is the inverse of MarshalBinary; Width and Height must already be set.
func (pc *PointCloudXYZL) UnmarshalBinary(data []byte) error {
	if len(data) != pc.Width*pc.Height*PointStep {
		return errors.Errorf("got %d bytes for a %dx%d cloud", len(data), pc.Width, pc.Height)
	}
	pc.Points = make([]PointXYZL, pc.Width*pc.Height)
	for i := range pc.Points {
		pc.Points[i] = getPoint(data[i*PointStep:])
	}
	return nil
}

func putPoint(buf []byte, p PointXYZL) {
	binary.LittleEndian.PutUint32(buf, math.Float32bits(p.X))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(p.Y))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(p.Z))
	binary.LittleEndian.PutUint32(buf[12:], p.Label)
}

func getPoint(buf []byte) PointXYZL {
	return PointXYZL{
		X:     math.Float32frombits(binary.LittleEndian.Uint32(buf)),
		Y:     math.Float32frombits(binary.LittleEndian.Uint32(buf[4:])),
		Z:     math.Float32frombits(binary.LittleEndian.Uint32(buf[8:])),
		Label: binary.LittleEndian.Uint32(buf[12:]),
	}
}
