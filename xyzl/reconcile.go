package xyzl

import (
	"github.com/pkg/errors"

	"go.viam.com/xyzl/rimage"
	"go.viam.com/xyzl/rimage/transform"
)

// ReconcileResolution brings the label frame and calibration to the resolution of the
// depth frame. When the sizes already agree the inputs are returned unchanged.
//
// Otherwise the scale is taken from the widths, ratio = depth width / label width. The
// calibration is scaled by ratio; the label is cropped to the rows that ratio maps onto
// the depth frame and resampled with nearest-neighbor lookup to exactly the depth size,
// keeping its encoding. A label that cannot be decoded or that is too short to cover the
// depth frame at that ratio is an ErrDecodeFailure. Neither input is modified.
func ReconcileResolution(
	depth *rimage.DepthFrame,
	label *rimage.LabelFrame,
	info *transform.CameraInfo,
) (*rimage.LabelFrame, *transform.CameraInfo, error) {
	if label.SameSize(&depth.Raster) {
		return label, info, nil
	}
	if label.Width <= 0 || label.Height <= 0 {
		return nil, nil, errors.Wrapf(ErrDecodeFailure, "cannot rescale an empty label frame (%d, %d)",
			label.Width, label.Height)
	}

	ratio := float64(depth.Width) / float64(label.Width)
	rows := int(float64(depth.Height) / ratio)
	if rows <= 0 || rows > label.Height {
		return nil, nil, errors.Wrapf(ErrDecodeFailure,
			"label frame %dx%d cannot cover depth frame %dx%d: scale %g needs %d label rows",
			label.Width, label.Height, depth.Width, depth.Height, ratio, rows)
	}

	grid, err := rimage.DecodeLabels(&label.Raster)
	if err != nil {
		return nil, nil, newDecodeFailure(err, "reading label frame %s", &label.Raster)
	}
	grid, err = grid.CropRows(rows)
	if err != nil {
		return nil, nil, newDecodeFailure(err, "cropping label frame")
	}
	grid, err = grid.ResizeNearest(depth.Width, depth.Height)
	if err != nil {
		return nil, nil, newDecodeFailure(err, "resizing label frame")
	}
	raster, err := rimage.EncodeLabels(grid, label.Encoding)
	if err != nil {
		return nil, nil, newDecodeFailure(err, "re-encoding label frame")
	}
	raster.Header = label.Header

	return &rimage.LabelFrame{Raster: *raster}, info.Scaled(depth.Width, depth.Height, ratio), nil
}
