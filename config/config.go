// Package config defines how the labeled point cloud node is configured.
package config

import (
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// TransportRaw is the only image transport implemented: frames are taken as published.
const TransportRaw = "raw"

// Defaults for every option.
const (
	DefaultQueueSize       = 5
	DefaultMaxInterval     = 100 * time.Millisecond
	DefaultLogThrottle     = 5 * time.Second
	DefaultDepthTopic      = "depth_registered/image_rect"
	DefaultLabelTopic      = "label/label"
	DefaultCameraInfoTopic = "label/camera_info"
	DefaultOutputTopic     = "depth_registered/points"
)

// A Config describes how frames are synchronized and where they come from and go to.
type Config struct {
	// QueueSize is the per stream synchronizer buffer depth.
	QueueSize int `json:"queue_size"`
	// MaxInterval bounds the stamp spread of a matched triple; 0 means unbounded.
	MaxInterval time.Duration `json:"max_interval"`

	DepthImageTransport string `json:"depth_image_transport"`
	ImageTransport      string `json:"image_transport"`

	DepthTopic      string `json:"depth_topic"`
	LabelTopic      string `json:"label_topic"`
	CameraInfoTopic string `json:"camera_info_topic"`
	OutputTopic     string `json:"output_topic"`

	// LogThrottle is the minimum time between two logs of the same kind of frame error.
	LogThrottle time.Duration `json:"log_throttle"`
	// Workers is the number of goroutines a projection is split over; 0 picks a default.
	Workers int `json:"workers"`
}

// Defaults returns a config with every option at its default.
func Defaults() *Config {
	return &Config{
		QueueSize:           DefaultQueueSize,
		MaxInterval:         DefaultMaxInterval,
		DepthImageTransport: TransportRaw,
		ImageTransport:      TransportRaw,
		DepthTopic:          DefaultDepthTopic,
		LabelTopic:          DefaultLabelTopic,
		CameraInfoTopic:     DefaultCameraInfoTopic,
		OutputTopic:         DefaultOutputTopic,
		LogThrottle:         DefaultLogThrottle,
	}
}

// FromAttributes decodes an attribute map on top of the defaults and validates the
// result. Durations may be given as strings such as "100ms". Unknown keys are an error.
func FromAttributes(attributes map[string]interface{}) (*Config, error) {
	conf := Defaults()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      conf,
		ErrorUnused: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			numberToDurationHookFunc(),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, errors.Wrap(err, "failed to decode config attributes")
	}
	if err := conf.Validate(""); err != nil {
		return nil, err
	}
	return conf, nil
}

// numberToDurationHookFunc reads bare numbers as seconds, so that "max_interval": 0.1
// and "max_interval": "100ms" mean the same thing.
func numberToDurationHookFunc() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		case int:
			return time.Duration(v) * time.Second, nil
		default:
			return data, nil
		}
	}
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if conf.QueueSize < 1 {
		return utils.NewConfigValidationError(path, errors.Errorf("queue_size must be at least 1, got %d", conf.QueueSize))
	}
	if conf.MaxInterval < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("max_interval cannot be negative, got %s", conf.MaxInterval))
	}
	if conf.LogThrottle < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("log_throttle cannot be negative, got %s", conf.LogThrottle))
	}
	if conf.Workers < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("workers cannot be negative, got %d", conf.Workers))
	}
	for field, transport := range map[string]string{
		"depth_image_transport": conf.DepthImageTransport,
		"image_transport":       conf.ImageTransport,
	} {
		if transport == "" {
			return utils.NewConfigValidationFieldRequiredError(path, field)
		}
		if transport != TransportRaw {
			return utils.NewConfigValidationError(path,
				errors.Errorf("%s %q is not supported, only %q", field, transport, TransportRaw))
		}
	}
	for field, topic := range map[string]string{
		"depth_topic":       conf.DepthTopic,
		"label_topic":       conf.LabelTopic,
		"camera_info_topic": conf.CameraInfoTopic,
		"output_topic":      conf.OutputTopic,
	} {
		if topic == "" {
			return utils.NewConfigValidationFieldRequiredError(path, field)
		}
	}
	return nil
}
