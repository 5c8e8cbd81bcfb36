package xyzl

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/xyzl/pointcloud"
	"go.viam.com/xyzl/rimage"
	"go.viam.com/xyzl/rimage/transform"
	"go.viam.com/xyzl/utils"
)

// depthTraits describes how to read one supported depth encoding.
type depthTraits struct {
	// unitScaling converts a raw sample to meters.
	unitScaling float32
	// sample returns the raw value at column u and whether it holds a measurement.
	sample func(row []byte, u int, order binary.ByteOrder) (float32, bool)
}

var (
	uint16DepthTraits = depthTraits{
		unitScaling: 0.001,
		sample: func(row []byte, u int, order binary.ByteOrder) (float32, bool) {
			raw := order.Uint16(row[2*u:])
			return float32(raw), raw != 0
		},
	}
	float32DepthTraits = depthTraits{
		unitScaling: 1,
		sample: func(row []byte, u int, order binary.ByteOrder) (float32, bool) {
			d := math.Float32frombits(order.Uint32(row[4*u:]))
			f := float64(d)
			return d, !math.IsNaN(f) && !math.IsInf(f, 0)
		},
	}
)

func depthTraitsFor(enc rimage.Encoding) (depthTraits, error) {
	switch enc {
	case rimage.Encoding16UC1, rimage.EncodingMono16:
		return uint16DepthTraits, nil
	case rimage.Encoding32FC1:
		return float32DepthTraits, nil
	default:
		return depthTraits{}, errors.Wrapf(ErrUnsupportedDepthEncoding, "%q", enc)
	}
}

// labelReader returns the label at column u of a row.
type labelReader func(row []byte, u int, order binary.ByteOrder) int32

func labelReaderFor(enc rimage.Encoding) (labelReader, error) {
	switch enc {
	case rimage.Encoding32SC1:
		return func(row []byte, u int, order binary.ByteOrder) int32 {
			return int32(order.Uint32(row[4*u:]))
		}, nil
	case rimage.Encoding8UC1, rimage.EncodingMono8:
		return func(row []byte, u int, _ binary.ByteOrder) int32 {
			return int32(row[u])
		}, nil
	default:
		return nil, errors.Wrapf(ErrDecodeFailure, "label encoding %q cannot be projected, normalize it first", enc)
	}
}

// Project back-projects every depth pixel through the pinhole model and attaches the
// label at the same pixel. The cloud is organized like the depth frame and carries its
// header. Pixels without a depth measurement or with a negative label become NaN points;
// the label is written either way, negative labels wrapping around as uint32.
//
// Depth and label must have the same size and the label must be 32SC1, 8UC1 or mono8.
// Rows are split across workers goroutines (a default when workers <= 0); the result is
// the same for any number of workers.
func Project(
	depth *rimage.DepthFrame,
	label *rimage.LabelFrame,
	intrinsics *transform.PinholeCameraIntrinsics,
	workers int,
) (*pointcloud.PointCloudXYZL, error) {
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	traits, err := depthTraitsFor(depth.Encoding)
	if err != nil {
		return nil, err
	}
	readLabel, err := labelReaderFor(label.Encoding)
	if err != nil {
		return nil, err
	}
	if !label.SameSize(&depth.Raster) {
		return nil, errors.Wrapf(ErrDecodeFailure, "label frame %s does not match depth frame %s",
			&label.Raster, &depth.Raster)
	}
	if err := depth.CheckLayout(); err != nil {
		return nil, newDecodeFailure(err, "depth frame %s", &depth.Raster)
	}
	if err := label.CheckLayout(); err != nil {
		return nil, newDecodeFailure(err, "label frame %s", &label.Raster)
	}

	centerX := float32(intrinsics.Ppx)
	centerY := float32(intrinsics.Ppy)
	constantX := float32(float64(traits.unitScaling) / intrinsics.Fx)
	constantY := float32(float64(traits.unitScaling) / intrinsics.Fy)
	nan := float32(math.NaN())

	cloud := pointcloud.NewPointCloudXYZL(depth.Header, depth.Width, depth.Height)
	depthOrder := depth.ByteOrder()
	labelOrder := label.ByteOrder()

	err = utils.ParallelForEachRow(depth.Height, workers, func(from, to int) {
		for v := from; v < to; v++ {
			depthRow := depth.Row(v)
			labelRow := label.Row(v)
			out := cloud.Row(v)
			for u := range out {
				d, ok := traits.sample(depthRow, u, depthOrder)
				l := readLabel(labelRow, u, labelOrder)
				p := &out[u]
				p.Label = uint32(l)
				if !ok || l < 0 {
					p.X, p.Y, p.Z = nan, nan, nan
					continue
				}
				p.X = (float32(u) - centerX) * d * constantX
				p.Y = (float32(v) - centerY) * d * constantY
				p.Z = d * traits.unitScaling
			}
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "projection failed")
	}
	return cloud, nil
}
