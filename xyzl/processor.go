// Package xyzl turns synchronized depth, label and calibration frames into organized
// point clouds whose points carry the label of the pixel they came from.
//
// ProcessFrame is the whole per-frame algorithm and holds no state. Node wraps it with
// approximate-time synchronization, on demand subscription and throttled error logging.
package xyzl

import (
	"github.com/pkg/errors"

	"go.viam.com/xyzl/pointcloud"
	"go.viam.com/xyzl/rimage"
	"go.viam.com/xyzl/rimage/transform"
)

// ProcessFrame converts one synchronized triple into a labeled cloud using the default
// number of workers. See Processor.ProcessFrame.
func ProcessFrame(
	depth *rimage.DepthFrame,
	label *rimage.LabelFrame,
	info *transform.CameraInfo,
) (*pointcloud.PointCloudXYZL, error) {
	cloud, _, err := Processor{}.process(depth, label, info)
	return cloud, err
}

// A Processor runs the per-frame pipeline.
type Processor struct {
	// Workers is the number of goroutines a projection is split over; <= 0 picks a default.
	Workers int
}

// ProcessFrame validates that depth and label share a frame id, brings label and
// calibration to the depth resolution, converts the label to an encoding the projector
// reads and back-projects. Errors match ErrFrameMismatch, ErrInvalidCalibration,
// ErrDecodeFailure or ErrUnsupportedDepthEncoding through errors.Is; no output is
// produced for a failed frame. Inputs are never modified.
func (p Processor) ProcessFrame(
	depth *rimage.DepthFrame,
	label *rimage.LabelFrame,
	info *transform.CameraInfo,
) (*pointcloud.PointCloudXYZL, error) {
	cloud, _, err := p.process(depth, label, info)
	return cloud, err
}

// process also returns the intrinsics the cloud was projected with.
func (p Processor) process(
	depth *rimage.DepthFrame,
	label *rimage.LabelFrame,
	info *transform.CameraInfo,
) (*pointcloud.PointCloudXYZL, *transform.PinholeCameraIntrinsics, error) {
	if depth == nil || label == nil {
		return nil, nil, errors.Wrap(ErrDecodeFailure, "missing depth or label frame")
	}
	if depth.FrameID != label.FrameID {
		return nil, nil, errors.Wrapf(ErrFrameMismatch, "depth frame %q, label frame %q", depth.FrameID, label.FrameID)
	}
	if err := info.CheckValid(); err != nil {
		return nil, nil, err
	}

	label, info, err := ReconcileResolution(depth, label, info)
	if err != nil {
		return nil, nil, err
	}
	label, err = NormalizeLabelEncoding(label)
	if err != nil {
		return nil, nil, err
	}

	intrinsics := transform.NewPinholeCameraIntrinsicsFromCameraInfo(info)
	cloud, err := Project(depth, label, intrinsics, p.Workers)
	if err != nil {
		return nil, nil, err
	}
	return cloud, intrinsics, nil
}
