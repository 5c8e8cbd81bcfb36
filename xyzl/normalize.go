package xyzl

import (
	"go.viam.com/xyzl/rimage"
)

// IsProjectableLabelEncoding reports whether the projector reads enc directly.
func IsProjectableLabelEncoding(enc rimage.Encoding) bool {
	switch enc {
	case rimage.Encoding32SC1, rimage.Encoding8UC1, rimage.EncodingMono8:
		return true
	default:
		return false
	}
}

// NormalizeLabelEncoding returns label unchanged when the projector can read its encoding
// and otherwise a copy converted without loss to 32SC1. Encodings that are not single
// channel integers are an ErrDecodeFailure.
func NormalizeLabelEncoding(label *rimage.LabelFrame) (*rimage.LabelFrame, error) {
	if IsProjectableLabelEncoding(label.Encoding) {
		return label, nil
	}
	grid, err := rimage.DecodeLabels(&label.Raster)
	if err != nil {
		return nil, newDecodeFailure(err, "converting label frame %s to %s", &label.Raster, rimage.Encoding32SC1)
	}
	raster, err := rimage.EncodeLabels(grid, rimage.Encoding32SC1)
	if err != nil {
		return nil, newDecodeFailure(err, "converting label frame %s to %s", &label.Raster, rimage.Encoding32SC1)
	}
	raster.Header = label.Header
	return &rimage.LabelFrame{Raster: *raster}, nil
}
