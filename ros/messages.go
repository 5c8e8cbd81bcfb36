package ros

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/xyzl/rimage"
	"go.viam.com/xyzl/rimage/transform"
)

// Time is a ROS time as split into seconds and nanoseconds on the wire.
type Time struct {
	Secs  int64
	Nsecs int64
}

// ToTime converts t to a time.Time.
func (t Time) ToTime() time.Time {
	return time.Unix(t.Secs, t.Nsecs)
}

// Meta is the record metadata a bag attaches to every message it replays.
type Meta struct {
	Secs  int64
	Nsecs int64
	Topic string
}

// RecordTime is when the message was written to the bag.
func (m Meta) RecordTime() time.Time {
	return time.Unix(m.Secs, m.Nsecs)
}

// Header is std_msgs/Header.
type Header struct {
	Seq     uint32
	Stamp   Time
	FrameID string `json:"frame_id"`
}

func (h Header) toHeader() rimage.Header {
	return rimage.Header{Seq: h.Seq, Stamp: h.Stamp.ToTime(), FrameID: h.FrameID}
}

// ByteArray is a uint8[] field. Bags render these either as a base64 string or as a
// list of numbers; both are accepted.
type ByteArray []byte

// UnmarshalJSON implements json.Unmarshaler.
func (b *ByteArray) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var encoded string
		if err := json.Unmarshal(data, &encoded); err != nil {
			return err
		}
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return errors.Wrap(err, "invalid base64 byte array")
		}
		*b = decoded
		return nil
	}
	var numbers []uint8
	if err := json.Unmarshal(data, &numbers); err != nil {
		return errors.Wrap(err, "byte array is neither a base64 string nor a list of bytes")
	}
	*b = numbers
	return nil
}

// Image is sensor_msgs/Image.
type Image struct {
	Header      Header
	Height      uint32
	Width       uint32
	Encoding    string
	IsBigEndian uint8 `json:"is_bigendian"`
	Step        uint32
	Data        ByteArray
}

// ImageMessage is one replayed sensor_msgs/Image record.
type ImageMessage struct {
	Meta Meta
	Data Image
}

func (img *Image) toRaster() rimage.Raster {
	return rimage.Raster{
		Header:    img.Header.toHeader(),
		Width:     int(img.Width),
		Height:    int(img.Height),
		Step:      int(img.Step),
		Encoding:  rimage.Encoding(img.Encoding),
		BigEndian: img.IsBigEndian != 0,
		Data:      img.Data,
	}
}

// ToDepthFrame views the image as a depth frame. The pixel data is shared, not copied.
func (img *Image) ToDepthFrame() *rimage.DepthFrame {
	return &rimage.DepthFrame{Raster: img.toRaster()}
}

// ToLabelFrame views the image as a label frame. The pixel data is shared, not copied.
func (img *Image) ToLabelFrame() *rimage.LabelFrame {
	return &rimage.LabelFrame{Raster: img.toRaster()}
}

// CameraInfo is sensor_msgs/CameraInfo.
type CameraInfo struct {
	Header          Header
	Height          uint32
	Width           uint32
	DistortionModel string `json:"distortion_model"`
	D               []float64
	K               []float64
	R               []float64
	P               []float64
	BinningX        uint32 `json:"binning_x"`
	BinningY        uint32 `json:"binning_y"`
}

// CameraInfoMessage is one replayed sensor_msgs/CameraInfo record.
type CameraInfoMessage struct {
	Meta Meta
	Data CameraInfo
}

// ToCameraInfo converts the message, checking that K, R and P have the sizes of 3x3,
// 3x3 and 3x4 matrices.
func (info *CameraInfo) ToCameraInfo() (*transform.CameraInfo, error) {
	out := &transform.CameraInfo{
		Header:          info.Header.toHeader(),
		Width:           int(info.Width),
		Height:          int(info.Height),
		DistortionModel: info.DistortionModel,
		D:               append([]float64(nil), info.D...),
	}
	for _, m := range []struct {
		name string
		src  []float64
		dst  []float64
	}{
		{"K", info.K, out.K[:]},
		{"R", info.R, out.R[:]},
		{"P", info.P, out.P[:]},
	} {
		if len(m.src) != len(m.dst) {
			return nil, errors.Errorf("camera info %s has %d entries, expected %d", m.name, len(m.src), len(m.dst))
		}
		copy(m.dst, m.src)
	}
	return out, nil
}
