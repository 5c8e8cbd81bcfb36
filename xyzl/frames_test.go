package xyzl

import (
	"encoding/binary"
	"math"
	"time"

	"go.viam.com/xyzl/rimage"
	"go.viam.com/xyzl/rimage/transform"
)

var testStamp = time.Unix(1650000000, 500)

func header(frameID string, stamp time.Time) rimage.Header {
	return rimage.Header{Stamp: stamp, FrameID: frameID}
}

func depth16(frameID string, stamp time.Time, width, height int, mm []uint16) *rimage.DepthFrame {
	data := make([]byte, 2*len(mm))
	for i, d := range mm {
		binary.LittleEndian.PutUint16(data[2*i:], d)
	}
	return &rimage.DepthFrame{Raster: rimage.Raster{
		Header:   header(frameID, stamp),
		Width:    width,
		Height:   height,
		Step:     2 * width,
		Encoding: rimage.Encoding16UC1,
		Data:     data,
	}}
}

func depth32F(frameID string, stamp time.Time, width, height int, meters []float32) *rimage.DepthFrame {
	data := make([]byte, 4*len(meters))
	for i, d := range meters {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(d))
	}
	return &rimage.DepthFrame{Raster: rimage.Raster{
		Header:   header(frameID, stamp),
		Width:    width,
		Height:   height,
		Step:     4 * width,
		Encoding: rimage.Encoding32FC1,
		Data:     data,
	}}
}

func labels32(frameID string, stamp time.Time, width, height int, labels []int32) *rimage.LabelFrame {
	data := make([]byte, 4*len(labels))
	for i, l := range labels {
		binary.LittleEndian.PutUint32(data[4*i:], uint32(l))
	}
	return &rimage.LabelFrame{Raster: rimage.Raster{
		Header:   header(frameID, stamp),
		Width:    width,
		Height:   height,
		Step:     4 * width,
		Encoding: rimage.Encoding32SC1,
		Data:     data,
	}}
}

func labels8(frameID string, stamp time.Time, width, height int, enc rimage.Encoding, labels []uint8) *rimage.LabelFrame {
	return &rimage.LabelFrame{Raster: rimage.Raster{
		Header:   header(frameID, stamp),
		Width:    width,
		Height:   height,
		Step:     width,
		Encoding: enc,
		Data:     append([]byte(nil), labels...),
	}}
}

func labels16(frameID string, stamp time.Time, width, height int, enc rimage.Encoding, labels []uint16) *rimage.LabelFrame {
	data := make([]byte, 2*len(labels))
	for i, l := range labels {
		binary.LittleEndian.PutUint16(data[2*i:], l)
	}
	return &rimage.LabelFrame{Raster: rimage.Raster{
		Header:   header(frameID, stamp),
		Width:    width,
		Height:   height,
		Step:     2 * width,
		Encoding: enc,
		Data:     data,
	}}
}

func cameraInfo(frameID string, stamp time.Time, width, height int, fx, fy, cx, cy float64) *transform.CameraInfo {
	return &transform.CameraInfo{
		Header:          header(frameID, stamp),
		Width:           width,
		Height:          height,
		DistortionModel: "plumb_bob",
		D:               []float64{0, 0, 0, 0, 0},
		K:               [9]float64{fx, 0, cx, 0, fy, cy, 0, 0, 1},
		R:               [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		P:               [12]float64{fx, 0, cx, 0, 0, fy, cy, 0, 0, 0, 1, 0},
	}
}

func cloneDepth(d *rimage.DepthFrame) *rimage.DepthFrame {
	out := *d
	out.Data = append([]byte(nil), d.Data...)
	return &out
}

func cloneLabel(l *rimage.LabelFrame) *rimage.LabelFrame {
	out := *l
	out.Data = append([]byte(nil), l.Data...)
	return &out
}
