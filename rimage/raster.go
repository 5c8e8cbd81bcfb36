package rimage

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Header carries the acquisition metadata shared by every message in the pipeline.
type Header struct {
	Seq     uint32
	Stamp   time.Time
	FrameID string
}

// Raster is a single channel, row-major image buffer as it arrives off the wire.
// Step is the number of bytes between the start of consecutive rows and may be
// larger than Width times the sample size when rows are padded.
type Raster struct {
	Header
	Width     int
	Height    int
	Step      int
	Encoding  Encoding
	BigEndian bool
	Data      []byte
}

// DepthFrame is a raster of depth samples.
type DepthFrame struct {
	Raster
}

// LabelFrame is a raster of per-pixel semantic or instance labels.
type LabelFrame struct {
	Raster
}

// Stamp returns the acquisition time of the frame.
func (r *Raster) Stamp() time.Time {
	return r.Header.Stamp
}

// Bounds returns width and height as a pair.
func (r *Raster) Bounds() (int, int) {
	return r.Width, r.Height
}

// SameSize reports whether both rasters share width and height.
func (r *Raster) SameSize(other *Raster) bool {
	return r.Width == other.Width && r.Height == other.Height
}

func (r *Raster) String() string {
	return fmt.Sprintf("%dx%d %s (frame %q)", r.Width, r.Height, r.Encoding, r.FrameID)
}

// ByteOrder returns the byte order of multi-byte samples in Data.
func (r *Raster) ByteOrder() binary.ByteOrder {
	if r.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// CheckLayout verifies that Data is large enough to hold Height rows of Width samples
// at the declared Step.
func (r *Raster) CheckLayout() error {
	info, ok := r.Encoding.Info()
	if !ok {
		return errors.Errorf("unknown encoding %q", r.Encoding)
	}
	if info.Channels != 1 {
		return errors.Errorf("encoding %q has %d channels, expected 1", r.Encoding, info.Channels)
	}
	if r.Width < 0 || r.Height < 0 {
		return errors.Errorf("invalid raster size (%d, %d)", r.Width, r.Height)
	}
	rowBytes := r.Width * info.BytesPerSample
	if r.Step < rowBytes {
		return errors.Errorf("row step %d is shorter than a row of %d bytes", r.Step, rowBytes)
	}
	if r.Height == 0 {
		return nil
	}
	if need := r.Step*(r.Height-1) + rowBytes; len(r.Data) < need {
		return errors.Errorf("raster data holds %d bytes, need %d", len(r.Data), need)
	}
	return nil
}

// Row returns the bytes of row v, excluding any padding.
func (r *Raster) Row(v int) []byte {
	info, _ := r.Encoding.Info()
	start := v * r.Step
	return r.Data[start : start+r.Width*info.BytesPerSample]
}
