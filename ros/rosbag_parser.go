// Package ros reads depth, label and calibration streams recorded in ROS bags.
package ros

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ReadBag reads the contents of a rosbag into a gobag data structure.
func ReadBag(filename string) (*rosbag.RosBag, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open input file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	rb := rosbag.NewRosBag()

	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to create ros bag, error")
	}

	return rb, nil
}

// Topics names the three input streams. Names may be relative, in which case they match
// the same name under any namespace.
type Topics struct {
	Depth      string
	Label      string
	CameraInfo string
}

// StreamKind tells the three input streams apart.
type StreamKind int

// The input streams.
const (
	StreamDepth StreamKind = iota
	StreamLabel
	StreamCameraInfo
)

func (k StreamKind) String() string {
	switch k {
	case StreamDepth:
		return "depth"
	case StreamLabel:
		return "label"
	case StreamCameraInfo:
		return "camera_info"
	default:
		return "unknown"
	}
}

// match returns which stream a bag topic belongs to.
func (t Topics) match(bagTopic string) (StreamKind, bool) {
	for _, candidate := range []struct {
		kind  StreamKind
		topic string
	}{
		{StreamDepth, t.Depth},
		{StreamLabel, t.Label},
		{StreamCameraInfo, t.CameraInfo},
	} {
		if topicMatches(bagTopic, candidate.topic) {
			return candidate.kind, true
		}
	}
	return 0, false
}

func topicMatches(bagTopic, want string) bool {
	if want == "" {
		return false
	}
	if strings.HasPrefix(want, "/") {
		return bagTopic == want
	}
	return strings.TrimPrefix(bagTopic, "/") == want || strings.HasSuffix(bagTopic, "/"+want)
}

// TopicMessages returns the JSON lines of every message recorded on the matching topics,
// each line carrying its topic in the meta data.
func TopicMessages(rb *rosbag.RosBag, topics Topics) ([][]byte, error) {
	if err := rb.ParseTopicsToJSON(
		"",
		func(int64) bool { return true },
		func(topic string) bool {
			_, ok := topics.match(topic)
			return ok
		},
		true,
	); err != nil {
		return nil, errors.Wrapf(err, "error while parsing bag to JSON")
	}

	keys := make([]string, 0, len(rb.TopicsAsJSON))
	for key := range rb.TopicsAsJSON {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var lines [][]byte
	for _, key := range keys {
		msgs := rb.TopicsAsJSON[key]
		for {
			data, err := msgs.ReadBytes('\n')
			if len(bytes.TrimSpace(data)) > 0 {
				lines = append(lines, data)
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return nil, err
			}
		}
	}
	return lines, nil
}

// ReadJSONLines splits r into JSON lines in the format TopicMessages returns, for bags
// that were already exported to JSON.
func ReadJSONLines(r io.Reader) ([][]byte, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<30)
	var lines [][]byte
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		lines = append(lines, append([]byte(nil), line...))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read JSON lines")
	}
	return lines, nil
}

type metaOnly struct {
	Meta Meta
}

func decodeMeta(line []byte) (Meta, error) {
	var msg metaOnly
	if err := json.Unmarshal(line, &msg); err != nil {
		return Meta{}, errors.Wrap(err, "failed to decode message meta data")
	}
	return msg.Meta, nil
}
