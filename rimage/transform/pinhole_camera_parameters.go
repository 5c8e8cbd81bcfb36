package transform

import (
	"math"

	"github.com/pkg/errors"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intriniscs are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// PinholeCameraIntrinsics holds the parameters back-projection reads: focal lengths and
// principal point in pixels, plus the image size they belong to.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// NewPinholeCameraIntrinsicsFromCameraInfo reads the focal lengths and principal point out of K.
func NewPinholeCameraIntrinsicsFromCameraInfo(info *CameraInfo) *PinholeCameraIntrinsics {
	return &PinholeCameraIntrinsics{
		Width:  info.Width,
		Height: info.Height,
		Fx:     info.K[0],
		Fy:     info.K[4],
		Ppx:    info.K[2],
		Ppy:    info.K[5],
	}
}

// CheckValid reports whether every pixel can be back-projected with these parameters.
// The focal lengths are divided by, so they must be non-zero; all four must be finite.
// The image size is not checked.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("intrinsics do not exist")
	}
	for _, p := range []struct {
		name  string
		value float64
	}{
		{"fx", params.Fx},
		{"fy", params.Fy},
		{"ppx", params.Ppx},
		{"ppy", params.Ppy},
	} {
		if math.IsNaN(p.value) || math.IsInf(p.value, 0) {
			return errors.Wrapf(ErrInvalidCalibration, "%s is not finite (%v)", p.name, p.value)
		}
	}
	if params.Fx == 0 || params.Fy == 0 {
		return errors.Wrapf(ErrInvalidCalibration,
			"zero focal length (fx=%v, fy=%v), camera uncalibrated?", params.Fx, params.Fy)
	}
	return nil
}
