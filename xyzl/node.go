package xyzl

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/xyzl/config"
	"go.viam.com/xyzl/logging"
	"go.viam.com/xyzl/pointcloud"
	"go.viam.com/xyzl/rimage"
	"go.viam.com/xyzl/rimage/transform"
	"go.viam.com/xyzl/xyzl/approxsync"
)

// A Publisher delivers finished clouds to the output.
type Publisher interface {
	Publish(ctx context.Context, cloud *pointcloud.PointCloudXYZL) error
}

// PublisherFunc adapts a function to a Publisher.
type PublisherFunc func(ctx context.Context, cloud *pointcloud.PointCloudXYZL) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, cloud *pointcloud.PointCloudXYZL) error {
	return f(ctx, cloud)
}

// NodeStats counts what happened to the frames given to a Node.
type NodeStats struct {
	// Dropped counts frames that arrived while the gate was closed.
	Dropped            uint64
	Matched            uint64
	Published          uint64
	FrameMismatches    uint64
	DecodeFailures     uint64
	UnsupportedDepth   uint64
	InvalidCalibration uint64
	PublishFailures    uint64
	Sync               approxsync.Stats
}

type frameSynchronizer = approxsync.Synchronizer[*rimage.DepthFrame, *rimage.LabelFrame, *transform.CameraInfo]

// A Node synchronizes depth, label and calibration streams and publishes one labeled
// cloud per matched triple. Frames are only processed while the gate is open, that is
// while the output has listeners. Per-frame errors are logged, throttled per kind, and
// the frame is skipped.
type Node struct {
	logger       logging.Logger
	publisher    Publisher
	processor    Processor
	throttle     *logging.Throttle
	gate         *Gate
	synchronizer *frameSynchronizer

	cancelCtx  context.Context
	cancelFunc func()
	closed     atomic.Bool

	intrinsicsMu sync.Mutex
	intrinsics   *transform.PinholeCameraIntrinsics

	dropped            atomic.Uint64
	matched            atomic.Uint64
	published          atomic.Uint64
	frameMismatches    atomic.Uint64
	decodeFailures     atomic.Uint64
	unsupportedDepth   atomic.Uint64
	invalidCalibration atomic.Uint64
	publishFailures    atomic.Uint64
}

// NewNode returns a node configured by conf (defaults when nil). inputs is subscribed
// and unsubscribed through the node's gate and may be nil when the caller feeds frames
// unconditionally after calling Gate().Connect(). A nil clock means wall time.
func NewNode(
	conf *config.Config,
	inputs Inputs,
	publisher Publisher,
	logger logging.Logger,
	clk clock.Clock,
) (*Node, error) {
	if conf == nil {
		conf = config.Defaults()
	}
	if err := conf.Validate(""); err != nil {
		return nil, err
	}
	if publisher == nil {
		return nil, errors.New("node needs a publisher")
	}
	if inputs == nil {
		inputs = noInputs{}
	}
	if logger == nil {
		logger = logging.NewBlankLogger("xyzl")
	}

	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	n := &Node{
		logger:     logger,
		publisher:  publisher,
		processor:  Processor{Workers: conf.Workers},
		throttle:   logging.NewThrottle(conf.LogThrottle, clk),
		cancelCtx:  cancelCtx,
		cancelFunc: cancelFunc,
	}
	synchronizer, err := approxsync.New(
		approxsync.Config{QueueSize: conf.QueueSize, MaxInterval: conf.MaxInterval},
		n.handleTriple,
	)
	if err != nil {
		cancelFunc()
		return nil, err
	}
	n.synchronizer = synchronizer
	n.gate = NewGate(resettingInputs{Inputs: inputs, reset: synchronizer.Reset})
	return n, nil
}

// Gate returns the gate controlling whether the node consumes its inputs.
func (n *Node) Gate() *Gate {
	return n.gate
}

// HandleDepth feeds a depth frame.
func (n *Node) HandleDepth(depth *rimage.DepthFrame) {
	if n.accept() {
		n.synchronizer.Add0(depth)
	}
}

// HandleLabel feeds a label frame.
func (n *Node) HandleLabel(label *rimage.LabelFrame) {
	if n.accept() {
		n.synchronizer.Add1(label)
	}
}

// HandleCameraInfo feeds a calibration message.
func (n *Node) HandleCameraInfo(info *transform.CameraInfo) {
	if n.accept() {
		n.synchronizer.Add2(info)
	}
}

func (n *Node) accept() bool {
	if n.closed.Load() || !n.gate.Allowed() {
		n.dropped.Inc()
		return false
	}
	return true
}

// LastIntrinsics returns the intrinsics of the most recently published cloud, nil before
// the first one.
func (n *Node) LastIntrinsics() *transform.PinholeCameraIntrinsics {
	n.intrinsicsMu.Lock()
	defer n.intrinsicsMu.Unlock()
	if n.intrinsics == nil {
		return nil
	}
	intrinsics := *n.intrinsics
	return &intrinsics
}

// Stats returns a snapshot of the node's counters.
func (n *Node) Stats() NodeStats {
	return NodeStats{
		Dropped:            n.dropped.Load(),
		Matched:            n.matched.Load(),
		Published:          n.published.Load(),
		FrameMismatches:    n.frameMismatches.Load(),
		DecodeFailures:     n.decodeFailures.Load(),
		UnsupportedDepth:   n.unsupportedDepth.Load(),
		InvalidCalibration: n.invalidCalibration.Load(),
		PublishFailures:    n.publishFailures.Load(),
		Sync:               n.synchronizer.Stats(),
	}
}

// Close stops the node. Frames handed to it afterwards are dropped and a publish in
// progress sees its context canceled.
func (n *Node) Close(ctx context.Context) error {
	n.closed.Store(true)
	n.cancelFunc()
	n.synchronizer.Reset()
	return nil
}

// handleTriple runs under the synchronizer's lock, one triple at a time.
func (n *Node) handleTriple(depth *rimage.DepthFrame, label *rimage.LabelFrame, info *transform.CameraInfo) {
	n.matched.Inc()
	cloud, intrinsics, err := n.processor.process(depth, label, info)
	if err != nil {
		n.reportFrameError(err)
		return
	}

	n.intrinsicsMu.Lock()
	n.intrinsics = intrinsics
	n.intrinsicsMu.Unlock()

	if err := n.publisher.Publish(n.cancelCtx, cloud); err != nil {
		n.publishFailures.Inc()
		n.throttle.Errorw(n.logger, "publish", "failed to publish point cloud", "error", err)
		return
	}
	n.published.Inc()
	n.logger.Debugw("published point cloud",
		"frame", cloud.FrameID, "stamp", cloud.Header.Stamp, "width", cloud.Width, "height", cloud.Height)
}

func (n *Node) reportFrameError(err error) {
	var key, msg string
	switch {
	case errors.Is(err, ErrFrameMismatch):
		n.frameMismatches.Inc()
		key, msg = "frame_mismatch", "depth and label frames are in different coordinate frames"
	case errors.Is(err, ErrInvalidCalibration):
		n.invalidCalibration.Inc()
		key, msg = "invalid_calibration", "camera info cannot be used for projection"
	case errors.Is(err, ErrUnsupportedDepthEncoding):
		n.unsupportedDepth.Inc()
		key, msg = "unsupported_depth", "depth image has unsupported encoding"
	default:
		n.decodeFailures.Inc()
		key, msg = "decode_failure", "failed to convert frames"
	}
	n.throttle.Errorw(n.logger, key, msg, "error", err)
}

// resettingInputs drops partially matched frames on unsubscribe.
type resettingInputs struct {
	Inputs
	reset func()
}

func (in resettingInputs) Unsubscribe() error {
	in.reset()
	return in.Inputs.Unsubscribe()
}

type noInputs struct{}

func (noInputs) Subscribe() error   { return nil }
func (noInputs) Unsubscribe() error { return nil }
