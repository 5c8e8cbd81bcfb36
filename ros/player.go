package ros

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.viam.com/utils"

	"go.viam.com/xyzl/rimage"
	"go.viam.com/xyzl/rimage/transform"
)

// Event is one recorded message of one of the input streams. Exactly one of Depth,
// Label and CameraInfo is set, according to Kind.
type Event struct {
	Kind       StreamKind
	RecordTime time.Time
	Depth      *rimage.DepthFrame
	Label      *rimage.LabelFrame
	CameraInfo *transform.CameraInfo
}

// A Sink consumes replayed frames.
type Sink interface {
	HandleDepth(depth *rimage.DepthFrame)
	HandleLabel(label *rimage.LabelFrame)
	HandleCameraInfo(info *transform.CameraInfo)
}

// A Recording holds the input streams of a bag in record order and replays them. It is
// also the set of inputs a node subscribes to: messages are only delivered while
// subscribed.
type Recording struct {
	events     []Event
	subscribed atomic.Bool
	skipped    atomic.Uint64
}

// NewRecording decodes JSON message lines, as returned by TopicMessages, keeping those
// on one of topics. Lines must carry their topic in the meta data.
func NewRecording(lines [][]byte, topics Topics) (*Recording, error) {
	rec := &Recording{}
	for i, line := range lines {
		meta, err := decodeMeta(line)
		if err != nil {
			return nil, errors.Wrapf(err, "message %d", i)
		}
		if meta.Topic == "" {
			return nil, errors.Errorf("message %d has no topic", i)
		}
		kind, ok := topics.match(meta.Topic)
		if !ok {
			continue
		}
		event, err := decodeEvent(kind, line)
		if err != nil {
			return nil, errors.Wrapf(err, "message %d on %s", i, meta.Topic)
		}
		event.RecordTime = meta.RecordTime()
		rec.events = append(rec.events, event)
	}
	sort.SliceStable(rec.events, func(i, j int) bool {
		return rec.events[i].RecordTime.Before(rec.events[j].RecordTime)
	})
	return rec, nil
}

func decodeEvent(kind StreamKind, line []byte) (Event, error) {
	event := Event{Kind: kind}
	switch kind {
	case StreamDepth, StreamLabel:
		var msg ImageMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			return Event{}, errors.Wrap(err, "failed to decode image")
		}
		if kind == StreamDepth {
			event.Depth = msg.Data.ToDepthFrame()
		} else {
			event.Label = msg.Data.ToLabelFrame()
		}
	case StreamCameraInfo:
		var msg CameraInfoMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			return Event{}, errors.Wrap(err, "failed to decode camera info")
		}
		info, err := msg.Data.ToCameraInfo()
		if err != nil {
			return Event{}, err
		}
		event.CameraInfo = info
	default:
		return Event{}, errors.Errorf("unknown stream %d", kind)
	}
	return event, nil
}

// LoadRecording reads the input streams from a bag file, or from a file of JSON lines
// when the name ends in .json or .jsonl.
func LoadRecording(filename string, topics Topics) (*Recording, error) {
	var lines [][]byte
	switch filepath.Ext(filename) {
	case ".json", ".jsonl":
		//nolint:gosec
		f, err := os.Open(filename)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to open input file")
		}
		defer utils.UncheckedErrorFunc(f.Close)
		if lines, err = ReadJSONLines(f); err != nil {
			return nil, err
		}
	default:
		rb, err := ReadBag(filename)
		if err != nil {
			return nil, err
		}
		if lines, err = TopicMessages(rb, topics); err != nil {
			return nil, err
		}
	}
	return NewRecording(lines, topics)
}

// Events returns the recorded messages in record order.
func (rec *Recording) Events() []Event {
	return rec.events
}

// Count returns how many messages of the given stream were recorded.
func (rec *Recording) Count(kind StreamKind) int {
	n := 0
	for _, event := range rec.events {
		if event.Kind == kind {
			n++
		}
	}
	return n
}

// Subscribe starts delivering messages to the sink of Play.
func (rec *Recording) Subscribe() error {
	rec.subscribed.Store(true)
	return nil
}

// Unsubscribe stops delivering messages; they are skipped until the next Subscribe.
func (rec *Recording) Unsubscribe() error {
	rec.subscribed.Store(false)
	return nil
}

// Skipped returns how many messages were not delivered because nobody was subscribed.
func (rec *Recording) Skipped() uint64 {
	return rec.skipped.Load()
}

// Play replays every message to sink in record order. With a positive speed the gaps
// between record times are reproduced, divided by speed, on clk (wall time when nil);
// otherwise messages are delivered back to back.
func (rec *Recording) Play(ctx context.Context, sink Sink, clk clock.Clock, speed float64) error {
	if clk == nil {
		clk = clock.New()
	}
	for i, event := range rec.events {
		if speed > 0 && i > 0 {
			gap := time.Duration(float64(event.RecordTime.Sub(rec.events[i-1].RecordTime)) / speed)
			if gap > 0 {
				timer := clk.Timer(gap)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !rec.subscribed.Load() {
			rec.skipped.Inc()
			continue
		}
		switch event.Kind {
		case StreamDepth:
			sink.HandleDepth(event.Depth)
		case StreamLabel:
			sink.HandleLabel(event.Label)
		case StreamCameraInfo:
			sink.HandleCameraInfo(event.CameraInfo)
		}
	}
	return nil
}
