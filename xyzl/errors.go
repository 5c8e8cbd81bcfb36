package xyzl

import (
	"fmt"

	"github.com/pkg/errors"

	"go.viam.com/xyzl/rimage/transform"
)

var (
	// ErrFrameMismatch is returned when the depth and label frames are not in the same
	// coordinate frame.
	ErrFrameMismatch = errors.New("depth and label frame ids differ")
	// ErrDecodeFailure is returned when a label or depth raster cannot be read or
	// converted.
	ErrDecodeFailure = errors.New("failed to decode frame")
	// ErrUnsupportedDepthEncoding is returned for depth encodings other than 16UC1 and 32FC1.
	ErrUnsupportedDepthEncoding = errors.New("unsupported depth encoding")
	// ErrInvalidCalibration is returned when the camera info cannot describe a pinhole camera.
	ErrInvalidCalibration = transform.ErrInvalidCalibration
)

func newDecodeFailure(err error, format string, args ...interface{}) error {
	return errors.Wrapf(ErrDecodeFailure, "%s: %v", fmt.Sprintf(format, args...), err)
}
