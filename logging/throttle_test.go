package logging

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

func TestThrottle(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Unix(1000, 0))
	throttle := NewThrottle(5*time.Second, clk)

	var calls []int
	record := func(suppressed int) { calls = append(calls, suppressed) }

	throttle.Do("a", record)
	throttle.Do("a", record)
	throttle.Do("a", record)
	test.That(t, calls, test.ShouldResemble, []int{0})

	// keys are independent
	throttle.Do("b", record)
	test.That(t, calls, test.ShouldResemble, []int{0, 0})

	clk.Add(4 * time.Second)
	throttle.Do("a", record)
	test.That(t, len(calls), test.ShouldEqual, 2)

	clk.Add(time.Second)
	throttle.Do("a", record)
	test.That(t, calls, test.ShouldResemble, []int{0, 0, 3})
}

func TestThrottleZeroInterval(t *testing.T) {
	throttle := NewThrottle(0, clock.NewMock())
	count := 0
	for i := 0; i < 10; i++ {
		throttle.Do("a", func(int) { count++ })
	}
	test.That(t, count, test.ShouldEqual, 10)
}

func TestThrottleErrorw(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	clk := clock.NewMock()
	throttle := NewThrottle(5*time.Second, clk)

	throttle.Errorw(logger, "mismatch", "frame ids differ", "depth", "a", "label", "b")
	throttle.Errorw(logger, "mismatch", "frame ids differ", "depth", "a", "label", "b")
	clk.Add(6 * time.Second)
	throttle.Errorw(logger, "mismatch", "frame ids differ", "depth", "a", "label", "c")

	entries := logs.FilterMessage("frame ids differ").All()
	test.That(t, len(entries), test.ShouldEqual, 2)
	test.That(t, entries[0].Level, test.ShouldEqual, zapcore.ErrorLevel)
	test.That(t, entries[1].ContextMap()["label"], test.ShouldEqual, "c")
	test.That(t, entries[1].ContextMap()["suppressed"], test.ShouldEqual, int64(1))
}

func TestLevels(t *testing.T) {
	for _, level := range []Level{DEBUG, INFO, WARN, ERROR} {
		parsed, err := LevelFromString(level.String())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, level)
		test.That(t, LevelFromZap(level.AsZap()), test.ShouldEqual, level)
	}
	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)

	logger := NewBlankLogger("blank")
	logger.SetLevel(WARN)
	test.That(t, logger.GetLevel(), test.ShouldEqual, WARN)
	sub := logger.Sublogger("child")
	test.That(t, sub.GetLevel(), test.ShouldEqual, WARN)
}
