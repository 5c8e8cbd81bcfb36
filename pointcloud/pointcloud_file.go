package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	lzf "github.com/zhuyie/golzf"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = 0
	// PCDBinary binary format for pcd.
	PCDBinary PCDType = 1
	// PCDCompressed lzf compressed binary format for pcd.
	PCDCompressed PCDType = 2
)

// pcdFieldSize is the byte size of each of the x y z label fields.
const pcdFieldSize = 4

// ParsePCDType maps the DATA keyword of a pcd header to a PCDType.
func ParsePCDType(s string) (PCDType, error) {
	switch s {
	case "ascii":
		return PCDAscii, nil
	case "binary":
		return PCDBinary, nil
	case "binary_compressed":
		return PCDCompressed, nil
	default:
		return 0, errors.Errorf("unknown pcd data type %q", s)
	}
}

func (t PCDType) String() string {
	switch t {
	case PCDAscii:
		return "ascii"
	case PCDBinary:
		return "binary"
	case PCDCompressed:
		return "binary_compressed"
	default:
		return fmt.Sprintf("PCDType(%d)", int(t))
	}
}

// WriteToPCDFile writes the cloud to fn. A file that could not be written completely is removed.
func WriteToPCDFile(cloud *PointCloudXYZL, fn string, outputType PCDType) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
		if err != nil {
			utils.UncheckedError(os.Remove(fn))
		}
	}()
	w := bufio.NewWriter(f)
	if err := ToPCD(cloud, w, outputType); err != nil {
		return err
	}
	return w.Flush()
}

// ToPCD writes the cloud as an organized pcd with fields x y z label. Invalid points are
// written as nan so that the grid survives the round trip.
func ToPCD(cloud *PointCloudXYZL, out io.Writer, outputType PCDType) error {
	if outputType != PCDAscii && outputType != PCDBinary && outputType != PCDCompressed {
		return errors.Errorf("unknown pcd type %v", outputType)
	}
	if len(cloud.Points) != cloud.Width*cloud.Height {
		return errors.Errorf("cloud holds %d points, expected %dx%d", len(cloud.Points), cloud.Width, cloud.Height)
	}
	_, err := fmt.Fprintf(out, "VERSION .7\n"+
		"FIELDS x y z label\n"+
		"SIZE 4 4 4 4\n"+
		"TYPE F F F U\n"+
		"COUNT 1 1 1 1\n"+
		"WIDTH %d\n"+
		"HEIGHT %d\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n"+
		"DATA %s\n",
		cloud.Width,
		cloud.Height,
		cloud.Size(),
		outputType)
	if err != nil {
		return err
	}

	switch outputType {
	case PCDBinary:
		data, err := cloud.MarshalBinary()
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	case PCDAscii:
		for _, p := range cloud.Points {
			if _, err := fmt.Fprintf(out, "%s %s %s %d\n",
				formatPCDFloat(p.X), formatPCDFloat(p.Y), formatPCDFloat(p.Z), p.Label); err != nil {
				return err
			}
		}
		return nil
	default:
		return writePCDCompressed(cloud, out)
	}
}

// writePCDCompressed writes the binary_compressed body: the compressed and uncompressed
// sizes as little-endian uint32s, then the points lzf compressed with all x values first,
// then all y, z and label values.
func writePCDCompressed(cloud *PointCloudXYZL, out io.Writer) error {
	packed, err := cloud.MarshalBinary()
	if err != nil {
		return err
	}
	byField := transposePoints(packed, len(cloud.Points), true)

	var compressed []byte
	if len(byField) > 0 {
		compressed = make([]byte, maxCompressedSize(len(byField)))
		n, err := lzf.Compress(byField, compressed)
		if err != nil {
			return errors.Wrap(err, "error compressing pcd data")
		}
		compressed = compressed[:n]
	}

	var sizes [8]byte
	binary.LittleEndian.PutUint32(sizes[:], uint32(len(compressed)))
	binary.LittleEndian.PutUint32(sizes[4:], uint32(len(byField)))
	if _, err := out.Write(sizes[:]); err != nil {
		return err
	}
	_, err = out.Write(compressed)
	return err
}

func readPCDCompressed(in io.Reader, cloud *PointCloudXYZL) error {
	var sizes [8]byte
	if _, err := io.ReadFull(in, sizes[:]); err != nil {
		return errors.Wrap(err, "error reading compressed pcd sizes")
	}
	compressedSize := int(binary.LittleEndian.Uint32(sizes[:]))
	size := int(binary.LittleEndian.Uint32(sizes[4:]))
	numPoints := cloud.Width * cloud.Height
	if size != numPoints*PointStep {
		return errors.Errorf("compressed pcd holds %d bytes, expected %d for a %dx%d cloud",
			size, numPoints*PointStep, cloud.Width, cloud.Height)
	}
	if compressedSize > maxCompressedSize(size) {
		return errors.Errorf("compressed pcd size %d is too large for %d bytes of points", compressedSize, size)
	}

	compressed := make([]byte, compressedSize)
	if _, err := io.ReadFull(in, compressed); err != nil {
		return errors.Wrap(err, "error reading compressed pcd data")
	}
	byField := make([]byte, size)
	if size > 0 {
		n, err := lzf.Decompress(compressed, byField)
		if err != nil {
			return errors.Wrap(err, "error decompressing pcd data")
		}
		if n != size {
			return errors.Errorf("decompressed %d bytes of pcd data, expected %d", n, size)
		}
	}
	return cloud.UnmarshalBinary(transposePoints(byField, numPoints, false))
}

// maxCompressedSize bounds the lzf output for size input bytes; incompressible input grows
// by one control byte per 32 literals.
func maxCompressedSize(size int) int {
	return size + size/16 + 16
}

// transposePoints converts packed points to one run per field when toFields is set, and back
// otherwise.
func transposePoints(data []byte, numPoints int, toFields bool) []byte {
	out := make([]byte, len(data))
	for i := 0; i < numPoints; i++ {
		for f := 0; f < PointStep/pcdFieldSize; f++ {
			packed := i*PointStep + f*pcdFieldSize
			field := (f*numPoints + i) * pcdFieldSize
			if toFields {
				copy(out[field:field+pcdFieldSize], data[packed:packed+pcdFieldSize])
			} else {
				copy(out[packed:packed+pcdFieldSize], data[field:field+pcdFieldSize])
			}
		}
	}
	return out
}

func formatPCDFloat(f float32) string {
	if math.IsNaN(float64(f)) {
		return "nan"
	}
	return strconv.FormatFloat(float64(f), 'f', -1, 32)
}

// NewFromFile reads a pcd file written by WriteToPCDFile.
func NewFromFile(fn string) (*PointCloudXYZL, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	return ReadPCD(f)
}

type pcdHeader struct {
	fields []string
	width  int
	height int
	points int
	data   PCDType
}

// ReadPCD reads an organized x y z label pcd as written by ToPCD.
func ReadPCD(inRaw io.Reader) (*PointCloudXYZL, error) {
	in := bufio.NewReader(inRaw)
	header, err := readPCDHeader(in)
	if err != nil {
		return nil, err
	}
	if strings.Join(header.fields, " ") != "x y z label" {
		return nil, errors.Errorf("unsupported pcd fields %v", header.fields)
	}
	if header.points != header.width*header.height {
		return nil, errors.Errorf("pcd declares %d points for a %dx%d grid", header.points, header.width, header.height)
	}
	cloud := &PointCloudXYZL{Width: header.width, Height: header.height}
	switch header.data {
	case PCDBinary:
		data := make([]byte, header.points*PointStep)
		if _, err := io.ReadFull(in, data); err != nil {
			return nil, errors.Wrap(err, "error reading binary pcd data")
		}
		if err := cloud.UnmarshalBinary(data); err != nil {
			return nil, err
		}
	case PCDAscii:
		cloud.Points = make([]PointXYZL, 0, header.points)
		for len(cloud.Points) < header.points {
			line, err := in.ReadString('\n')
			if err != nil && (!errors.Is(err, io.EOF) || line == "") {
				return nil, errors.Wrapf(err, "error reading point %d", len(cloud.Points))
			}
			p, err := parsePCDPoint(line)
			if err != nil {
				return nil, err
			}
			cloud.Points = append(cloud.Points, p)
		}
	case PCDCompressed:
		if err := readPCDCompressed(in, cloud); err != nil {
			return nil, err
		}
	}
	return cloud, nil
}

func readPCDHeader(in *bufio.Reader) (pcdHeader, error) {
	var header pcdHeader
	for {
		line, err := in.ReadString('\n')
		if err != nil {
			return header, errors.Wrap(err, "error reading pcd header")
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		switch parts[0] {
		case "FIELDS":
			header.fields = parts[1:]
		case "WIDTH", "HEIGHT", "POINTS":
			if len(parts) != 2 {
				return header, errors.Errorf("malformed pcd header line %q", line)
			}
			n, err := strconv.Atoi(parts[1])
			if err != nil {
				return header, errors.Wrapf(err, "malformed pcd header line %q", line)
			}
			switch parts[0] {
			case "WIDTH":
				header.width = n
			case "HEIGHT":
				header.height = n
			default:
				header.points = n
			}
		case "DATA":
			if len(parts) != 2 {
				return header, errors.Errorf("malformed pcd header line %q", line)
			}
			header.data, err = ParsePCDType(parts[1])
			return header, err
		}
	}
}

func parsePCDPoint(line string) (PointXYZL, error) {
	parts := strings.Fields(line)
	if len(parts) != 4 {
		return PointXYZL{}, errors.Errorf("expected 4 values in pcd line %q", line)
	}
	var coords [3]float32
	for i := range coords {
		f, err := strconv.ParseFloat(parts[i], 32)
		if err != nil {
			return PointXYZL{}, errors.Wrapf(err, "bad coordinate in pcd line %q", line)
		}
		coords[i] = float32(f)
	}
	label, err := strconv.ParseUint(parts[3], 10, 32)
	if err != nil {
		return PointXYZL{}, errors.Wrapf(err, "bad label in pcd line %q", line)
	}
	return PointXYZL{X: coords[0], Y: coords[1], Z: coords[2], Label: uint32(label)}, nil
}
