package pointcloud

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.viam.com/test"

	"go.viam.com/xyzl/rimage"
)

func testCloud() *PointCloudXYZL {
	nan := float32(math.NaN())
	pc := NewPointCloudXYZL(rimage.Header{FrameID: "camera", Stamp: time.Unix(10, 5)}, 2, 2)
	pc.Points[0] = PointXYZL{X: 0, Y: 0, Z: 1, Label: 1}
	pc.Points[1] = PointXYZL{X: 2, Y: 0, Z: 2, Label: 1}
	pc.Points[2] = PointXYZL{X: nan, Y: nan, Z: nan, Label: math.MaxUint32}
	pc.Points[3] = PointXYZL{X: 3, Y: 3, Z: 3, Label: 2}
	return pc
}

func TestPointCloudXYZL(t *testing.T) {
	pc := testCloud()
	test.That(t, pc.Size(), test.ShouldEqual, 4)
	test.That(t, pc.IsDense, test.ShouldBeFalse)
	test.That(t, pc.At(1, 1).Label, test.ShouldEqual, uint32(2))
	test.That(t, pc.At(0, 1).IsValid(), test.ShouldBeFalse)
	test.That(t, len(pc.Row(1)), test.ShouldEqual, 2)

	fields := pc.Fields()
	test.That(t, len(fields), test.ShouldEqual, 4)
	test.That(t, fields[3], test.ShouldResemble, PointField{Name: "label", Offset: 12, Datatype: FieldUint32, Count: 1})

	meta := pc.MetaData()
	test.That(t, meta.Valid, test.ShouldEqual, 3)
	test.That(t, meta.MinZ, test.ShouldEqual, 1.0)
	test.That(t, meta.MaxZ, test.ShouldEqual, 3.0)
	test.That(t, meta.MaxX, test.ShouldEqual, 3.0)

	var visited []int
	pc.Iterate(func(u, v int, p PointXYZL) bool {
		visited = append(visited, v*pc.Width+u)
		return len(visited) < 3
	})
	test.That(t, visited, test.ShouldResemble, []int{0, 1, 2})
}

func TestMarshalBinary(t *testing.T) {
	pc := testCloud()
	data, err := pc.MarshalBinary()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(data), test.ShouldEqual, 4*PointStep)

	other := &PointCloudXYZL{Width: 2, Height: 2}
	test.That(t, other.UnmarshalBinary(data), test.ShouldBeNil)
	test.That(t, cmp.Diff(pc.Points, other.Points, cmpopts.EquateNaNs()), test.ShouldBeEmpty)

	test.That(t, other.UnmarshalBinary(data[:10]), test.ShouldNotBeNil)

	pc.Points = pc.Points[:3]
	_, err = pc.MarshalBinary()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPCD(t *testing.T) {
	pc := testCloud()

	t.Run("ascii", func(t *testing.T) {
		var buf bytes.Buffer
		test.That(t, ToPCD(pc, &buf, PCDAscii), test.ShouldBeNil)
		out := buf.String()
		test.That(t, out, test.ShouldContainSubstring, "FIELDS x y z label\n")
		test.That(t, out, test.ShouldContainSubstring, "TYPE F F F U\n")
		test.That(t, out, test.ShouldContainSubstring, "WIDTH 2\nHEIGHT 2\n")
		test.That(t, out, test.ShouldContainSubstring, "DATA ascii\n")
		test.That(t, out, test.ShouldContainSubstring, "nan nan nan 4294967295\n")
		test.That(t, strings.HasSuffix(out, "3 3 3 2\n"), test.ShouldBeTrue)

		back, err := ReadPCD(strings.NewReader(out))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, back.Width, test.ShouldEqual, 2)
		test.That(t, back.Height, test.ShouldEqual, 2)
		test.That(t, cmp.Diff(pc.Points, back.Points, cmpopts.EquateNaNs()), test.ShouldBeEmpty)
	})

	t.Run("binary file", func(t *testing.T) {
		fn := filepath.Join(t.TempDir(), "cloud.pcd")
		test.That(t, WriteToPCDFile(pc, fn, PCDBinary), test.ShouldBeNil)

		back, err := NewFromFile(fn)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, cmp.Diff(pc.Points, back.Points, cmpopts.EquateNaNs()), test.ShouldBeEmpty)
	})

	t.Run("compressed", func(t *testing.T) {
		var buf bytes.Buffer
		test.That(t, ToPCD(pc, &buf, PCDCompressed), test.ShouldBeNil)
		out := buf.Bytes()
		test.That(t, string(out), test.ShouldContainSubstring, "DATA binary_compressed\n")

		back, err := ReadPCD(bytes.NewReader(out))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, back.Width, test.ShouldEqual, 2)
		test.That(t, back.Height, test.ShouldEqual, 2)
		test.That(t, cmp.Diff(pc.Points, back.Points, cmpopts.EquateNaNs()), test.ShouldBeEmpty)

		_, err = ReadPCD(bytes.NewReader(out[:len(out)-1]))
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("compressed large file", func(t *testing.T) {
		big := &PointCloudXYZL{Width: 64, Height: 48}
		for i := 0; i < big.Width*big.Height; i++ {
			p := PointXYZL{X: float32(i%64) * 0.01, Y: float32(i/64) * 0.01, Z: 1.5, Label: uint32(i % 7)}
			if i%5 == 0 {
				nan := float32(math.NaN())
				p.X, p.Y, p.Z = nan, nan, nan
			}
			big.Points = append(big.Points, p)
		}
		fn := filepath.Join(t.TempDir(), "big.pcd")
		test.That(t, WriteToPCDFile(big, fn, PCDCompressed), test.ShouldBeNil)

		info, err := os.Stat(fn)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, info.Size(), test.ShouldBeLessThan, int64(len(big.Points)*PointStep))

		back, err := NewFromFile(fn)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, cmp.Diff(big.Points, back.Points, cmpopts.EquateNaNs()), test.ShouldBeEmpty)
	})

	t.Run("compressed empty", func(t *testing.T) {
		var buf bytes.Buffer
		test.That(t, ToPCD(&PointCloudXYZL{}, &buf, PCDCompressed), test.ShouldBeNil)
		back, err := ReadPCD(&buf)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, back.Size(), test.ShouldEqual, 0)
	})

	t.Run("failed write leaves no file", func(t *testing.T) {
		fn := filepath.Join(t.TempDir(), "broken.pcd")
		broken := &PointCloudXYZL{Width: 2, Height: 2, Points: pc.Points[:3]}
		test.That(t, WriteToPCDFile(broken, fn, PCDCompressed), test.ShouldNotBeNil)
		_, err := os.Stat(fn)
		test.That(t, os.IsNotExist(err), test.ShouldBeTrue)

		test.That(t, WriteToPCDFile(pc, fn, PCDType(7)), test.ShouldNotBeNil)
		_, err = os.Stat(fn)
		test.That(t, os.IsNotExist(err), test.ShouldBeTrue)
	})

	t.Run("bad header", func(t *testing.T) {
		_, err := ReadPCD(strings.NewReader("VERSION .7\nFIELDS x y z rgb\nWIDTH 1\nHEIGHT 1\nPOINTS 1\nDATA ascii\n0 0 0 0\n"))
		test.That(t, err, test.ShouldNotBeNil)
		_, err = ReadPCD(strings.NewReader("VERSION .7\nFIELDS x y z label\nWIDTH 2\nHEIGHT 1\nPOINTS 1\nDATA ascii\n"))
		test.That(t, err, test.ShouldNotBeNil)
	})
}

func TestParsePCDType(t *testing.T) {
	for _, typ := range []PCDType{PCDAscii, PCDBinary, PCDCompressed} {
		parsed, err := ParsePCDType(typ.String())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, typ)
	}
	_, err := ParsePCDType("lzf")
	test.That(t, err, test.ShouldNotBeNil)
}
