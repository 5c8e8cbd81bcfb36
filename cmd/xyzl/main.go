// Package main replays the depth, label and calibration streams of a recording through
// the labeled point cloud node and writes every published cloud to a PCD file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"go.viam.com/xyzl/config"
	"go.viam.com/xyzl/logging"
	"go.viam.com/xyzl/pointcloud"
	"go.viam.com/xyzl/ros"
	"go.viam.com/xyzl/xyzl"
)

const (
	flagConfig = "config"
	flagBag    = "bag"
	flagOutput = "output"
	flagFormat = "format"
	flagSpeed  = "speed"
	flagDebug  = "debug"
)

func main() {
	app := &cli.App{
		Name:  "xyzl",
		Usage: "convert recorded depth and label images into labeled point clouds",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:     flagBag,
				Aliases:  []string{"b"},
				Usage:    "read input streams from `FILE`, a rosbag or JSON lines",
				Required: true,
			},
			&cli.StringFlag{
				Name:    flagOutput,
				Aliases: []string{"o"},
				Usage:   "write PCD files to `DIR`",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:  flagFormat,
				Usage: "PCD data format: ascii, binary or binary_compressed",
				Value: pointcloud.PCDBinary.String(),
			},
			&cli.Float64Flag{
				Name:  flagSpeed,
				Usage: "replay speed relative to record time, 0 replays as fast as possible",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Action: convertAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func convertAction(c *cli.Context) error {
	logger := logging.NewLogger("xyzl")
	if c.Bool(flagDebug) {
		logger = logging.NewDebugLogger("xyzl")
	}
	defer func() {
		//nolint:errcheck
		logger.Sync()
	}()

	conf := config.Defaults()
	if path := c.String(flagConfig); path != "" {
		var err error
		if conf, err = config.Read(path); err != nil {
			return err
		}
	}
	format, err := pointcloud.ParsePCDType(c.String(flagFormat))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	written, err := convert(ctx, conversion{
		conf:      conf,
		bagPath:   c.String(flagBag),
		outputDir: c.String(flagOutput),
		format:    format,
		speed:     c.Float64(flagSpeed),
	}, logger)
	logger.Infow("done", "clouds_written", written)
	return err
}

type conversion struct {
	conf      *config.Config
	bagPath   string
	outputDir string
	format    pointcloud.PCDType
	speed     float64
}

// convert replays the recording through a node and writes each published cloud as it
// arrives. It returns the number of files written.
func convert(ctx context.Context, opts conversion, logger logging.Logger) (int, error) {
	rec, err := ros.LoadRecording(opts.bagPath, ros.Topics{
		Depth:      opts.conf.DepthTopic,
		Label:      opts.conf.LabelTopic,
		CameraInfo: opts.conf.CameraInfoTopic,
	})
	if err != nil {
		return 0, err
	}
	logger.Infow("loaded recording",
		"path", opts.bagPath,
		"depth", rec.Count(ros.StreamDepth),
		"label", rec.Count(ros.StreamLabel),
		"camera_info", rec.Count(ros.StreamCameraInfo))

	if err := os.MkdirAll(opts.outputDir, 0o750); err != nil {
		return 0, errors.Wrap(err, "failed to create output directory")
	}

	g, ctx := errgroup.WithContext(ctx)
	clouds := make(chan *pointcloud.PointCloudXYZL, opts.conf.QueueSize)
	publisher := xyzl.PublisherFunc(func(nodeCtx context.Context, cloud *pointcloud.PointCloudXYZL) error {
		select {
		case clouds <- cloud:
			return nil
		case <-nodeCtx.Done():
			return nodeCtx.Err()
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	node, err := xyzl.NewNode(opts.conf, rec, publisher, logger.Sublogger("node"), nil)
	if err != nil {
		return 0, err
	}
	// the PCD writer is the only listener of the output
	if err := node.Gate().Connect(); err != nil {
		return 0, err
	}

	prefix := strings.ReplaceAll(strings.Trim(opts.conf.OutputTopic, "/"), "/", "_")
	written := 0
	g.Go(func() error {
		defer close(clouds)
		return rec.Play(ctx, node, nil, opts.speed)
	})
	g.Go(func() error {
		for cloud := range clouds {
			fn := filepath.Join(opts.outputDir, fmt.Sprintf("%s_%06d.pcd", prefix, written))
			if err := pointcloud.WriteToPCDFile(cloud, fn, opts.format); err != nil {
				return err
			}
			logger.Debugw("wrote point cloud", "file", fn, "valid_points", cloud.MetaData().Valid)
			written++
		}
		return nil
	})
	err = g.Wait()

	stats := node.Stats()
	logger.Infow("replay finished",
		"matched", stats.Matched,
		"published", stats.Published,
		"frame_mismatches", stats.FrameMismatches,
		"decode_failures", stats.DecodeFailures,
		"unsupported_depth", stats.UnsupportedDepth,
		"invalid_calibration", stats.InvalidCalibration,
		"sync_overflowed", stats.Sync.Overflowed,
		"sync_pruned", stats.Sync.Pruned,
		"sync_forced", stats.Sync.Forced)

	return written, multierr.Combine(err, node.Gate().Disconnect(), node.Close(context.Background()))
}
