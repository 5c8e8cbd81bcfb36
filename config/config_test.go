package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"
)

func TestDefaults(t *testing.T) {
	conf, err := FromAttributes(nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf, test.ShouldResemble, Defaults())
	test.That(t, conf.QueueSize, test.ShouldEqual, 5)
	test.That(t, conf.MaxInterval, test.ShouldEqual, 100*time.Millisecond)
	test.That(t, conf.DepthImageTransport, test.ShouldEqual, "raw")
	test.That(t, conf.ImageTransport, test.ShouldEqual, "raw")
	test.That(t, conf.LogThrottle, test.ShouldEqual, 5*time.Second)
	test.That(t, conf.Workers, test.ShouldEqual, 0)
	test.That(t, conf.Validate("xyzl"), test.ShouldBeNil)
}

func TestFromAttributes(t *testing.T) {
	conf, err := FromAttributes(map[string]interface{}{
		"queue_size":   10,
		"max_interval": "25ms",
		"label_topic":  "segmentation/labels",
		"log_throttle": "1s",
		"workers":      2,
	})
	test.That(t, err, test.ShouldBeNil)
	expected := Defaults()
	expected.QueueSize = 10
	expected.MaxInterval = 25 * time.Millisecond
	expected.LabelTopic = "segmentation/labels"
	expected.LogThrottle = time.Second
	expected.Workers = 2
	test.That(t, conf, test.ShouldResemble, expected)

	conf, err = FromAttributes(map[string]interface{}{"max_interval": "0"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.MaxInterval, test.ShouldEqual, time.Duration(0))

	conf, err = FromAttributes(map[string]interface{}{"max_interval": 0.25})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.MaxInterval, test.ShouldEqual, 250*time.Millisecond)
}

func TestFromAttributesInvalid(t *testing.T) {
	for _, tc := range []struct {
		name       string
		attributes map[string]interface{}
		errPart    string
	}{
		{"unknown key", map[string]interface{}{"queue_sise": 3}, "queue_sise"},
		{"bad duration", map[string]interface{}{"max_interval": "soon"}, "soon"},
		{"zero queue", map[string]interface{}{"queue_size": 0}, "queue_size must be at least 1"},
		{"negative interval", map[string]interface{}{"max_interval": "-1s"}, "max_interval cannot be negative"},
		{"negative throttle", map[string]interface{}{"log_throttle": "-1s"}, "log_throttle cannot be negative"},
		{"negative workers", map[string]interface{}{"workers": -1}, "workers cannot be negative"},
		{"compressed depth", map[string]interface{}{"depth_image_transport": "compressedDepth"}, "compressedDepth"},
		{"compressed labels", map[string]interface{}{"image_transport": "compressed"}, "image_transport"},
		{"empty topic", map[string]interface{}{"output_topic": ""}, "output_topic"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromAttributes(tc.attributes)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.errPart)
		})
	}
}

func TestFromReader(t *testing.T) {
	_, err := FromReader(strings.NewReader(""))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "EOF")

	conf, err := FromReader(strings.NewReader(`{}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf, test.ShouldResemble, Defaults())

	conf, err = FromReader(strings.NewReader(`{"queue_size": 3, "depth_topic": "camera/depth"}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.QueueSize, test.ShouldEqual, 3)
	test.That(t, conf.DepthTopic, test.ShouldEqual, "camera/depth")
}

func TestRead(t *testing.T) {
	t.Setenv("XYZL_TEST_LABEL_TOPIC", "seg/label")
	path := filepath.Join(t.TempDir(), "xyzl.json")
	err := os.WriteFile(path, []byte(`{"label_topic": "${XYZL_TEST_LABEL_TOPIC}", "max_interval": "50ms"}`), 0o600)
	test.That(t, err, test.ShouldBeNil)

	conf, err := Read(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.LabelTopic, test.ShouldEqual, "seg/label")
	test.That(t, conf.MaxInterval, test.ShouldEqual, 50*time.Millisecond)

	_, err = Read(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}
