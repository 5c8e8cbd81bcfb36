// Package transform holds the camera models used to move between pixels and 3D points.
package transform

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/xyzl/rimage"
)

// CameraInfo is the calibration metadata published alongside a camera stream, laid out
// like sensor_msgs/CameraInfo. K is the 3x3 intrinsic matrix, R the rectification
// rotation and P the 3x4 projection matrix, all row-major.
type CameraInfo struct {
	rimage.Header
	Width           int
	Height          int
	DistortionModel string
	D               []float64
	K               [9]float64
	R               [9]float64
	P               [12]float64
}

// Stamp returns the time the calibration was published for.
func (info *CameraInfo) Stamp() time.Time {
	return info.Header.Stamp
}

// ErrInvalidCalibration is returned for calibration data that cannot describe a pinhole camera.
var ErrInvalidCalibration = errors.New("invalid camera calibration")

// CheckValid reports whether the calibration can be used for back-projection. Only the
// entries of K that back-projection reads are checked, so a zero image size or K[8] is accepted.
func (info *CameraInfo) CheckValid() error {
	if info == nil {
		return errors.Wrap(ErrInvalidCalibration, "no camera info")
	}
	return NewPinholeCameraIntrinsicsFromCameraInfo(info).CheckValid()
}

// Scaled returns a copy of the calibration for an image rescaled by ratio to
// width x height. The focal lengths and principal point in both K and P are scaled;
// the original is left untouched.
func (info *CameraInfo) Scaled(width, height int, ratio float64) *CameraInfo {
	out := *info
	out.D = append([]float64(nil), info.D...)
	out.Width = width
	out.Height = height
	for _, i := range []int{0, 2, 4, 5} {
		out.K[i] *= ratio
	}
	for _, i := range []int{0, 2, 5, 6} {
		out.P[i] *= ratio
	}
	return &out
}

func (info *CameraInfo) String() string {
	return fmt.Sprintf("%dx%d fx=%g fy=%g cx=%g cy=%g (frame %q)",
		info.Width, info.Height, info.K[0], info.K[4], info.K[2], info.K[5], info.FrameID)
}
