package rimage

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func int16Raster(width, height int, vals []int16) *Raster {
	r := &Raster{Width: width, Height: height, Step: width * 2, Encoding: Encoding16SC1, Data: make([]byte, width*height*2)}
	for i, v := range vals {
		binary.LittleEndian.PutUint16(r.Data[2*i:], uint16(v))
	}
	return r
}

func TestDecodeLabels(t *testing.T) {
	t.Run("mono8", func(t *testing.T) {
		r := &Raster{Width: 2, Height: 2, Step: 2, Encoding: EncodingMono8, Data: []byte{0, 1, 254, 255}}
		grid, err := DecodeLabels(r)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, grid.Data, test.ShouldResemble, []int32{0, 1, 254, 255})
	})

	t.Run("signed 16 bit keeps sign", func(t *testing.T) {
		grid, err := DecodeLabels(int16Raster(3, 1, []int16{-1, 7, -32768}))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, grid.Data, test.ShouldResemble, []int32{-1, 7, -32768})
	})

	t.Run("padded rows", func(t *testing.T) {
		// two samples per row, one byte of padding
		r := &Raster{Width: 2, Height: 2, Step: 3, Encoding: Encoding8SC1, Data: []byte{1, 0xff, 9, 3, 4, 9}}
		grid, err := DecodeLabels(r)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, grid.Data, test.ShouldResemble, []int32{1, -1, 3, 4})
		test.That(t, grid.At(1, 1), test.ShouldEqual, int32(4))
	})

	t.Run("big endian", func(t *testing.T) {
		r := &Raster{Width: 1, Height: 1, Step: 4, Encoding: Encoding32SC1, BigEndian: true, Data: []byte{0, 0, 1, 2}}
		grid, err := DecodeLabels(r)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, grid.Data, test.ShouldResemble, []int32{258})
	})

	t.Run("float refused", func(t *testing.T) {
		r := &Raster{Width: 1, Height: 1, Step: 4, Encoding: Encoding32FC1, Data: make([]byte, 4)}
		_, err := DecodeLabels(r)
		test.That(t, errors.Is(err, ErrUnsupportedEncoding), test.ShouldBeTrue)
	})

	t.Run("color refused", func(t *testing.T) {
		r := &Raster{Width: 1, Height: 1, Step: 3, Encoding: EncodingRGB8, Data: make([]byte, 3)}
		_, err := DecodeLabels(r)
		test.That(t, errors.Is(err, ErrUnsupportedEncoding), test.ShouldBeTrue)
	})

	t.Run("short buffer", func(t *testing.T) {
		r := &Raster{Width: 2, Height: 2, Step: 2, Encoding: Encoding8UC1, Data: []byte{1, 2, 3}}
		_, err := DecodeLabels(r)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "need 4")
	})
}

func TestEncodeLabels(t *testing.T) {
	grid := &LabelGrid{Width: 2, Height: 1, Data: []int32{-5, 70000}}

	r, err := EncodeLabels(grid, Encoding32SC1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.Step, test.ShouldEqual, 8)
	back, err := DecodeLabels(r)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back.Data, test.ShouldResemble, grid.Data)

	_, err = EncodeLabels(grid, Encoding16UC1)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "does not fit")

	_, err = EncodeLabels(grid, Encoding32FC1)
	test.That(t, errors.Is(err, ErrUnsupportedEncoding), test.ShouldBeTrue)
}

func TestCheckLayout(t *testing.T) {
	r := &Raster{Width: 4, Height: 1, Step: 6, Encoding: Encoding16UC1, Data: make([]byte, 8)}
	err := r.CheckLayout()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "row step")

	r.Step = 8
	test.That(t, r.CheckLayout(), test.ShouldBeNil)

	r.Encoding = "yuv422"
	test.That(t, r.CheckLayout(), test.ShouldNotBeNil)
}
