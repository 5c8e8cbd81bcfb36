// Package approxsync aligns three independently published, timestamped streams by
// approximate time.
//
// Each stream is buffered in a small queue. Whenever a message arrives the synchronizer
// looks for the set of one message per stream with the smallest spread of timestamps
// and, once no later arrival could change the choice, hands it to the callback. Sets are
// emitted oldest first. Emitted messages and everything older are discarded, so each
// message is delivered at most once.
//
// A set still waiting on a slow stream is emitted early when an overflow is about to drop
// one of its messages, so a stream publishing far less often than the others still gets
// matched.
package approxsync

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// DefaultQueueSize is the per stream buffer depth used when none is configured.
const DefaultQueueSize = 5

const numStreams = 3

// Stamped is anything carrying an acquisition time.
type Stamped interface {
	Stamp() time.Time
}

// Config controls the synchronizer.
type Config struct {
	// QueueSize bounds each stream's buffer; the oldest message is dropped on overflow.
	QueueSize int
	// MaxInterval is the largest allowed spread between the earliest and latest stamp of
	// an emitted set. Zero or negative means unbounded.
	MaxInterval time.Duration
}

// Stats counts what happened to the messages handed to a Synchronizer.
type Stats struct {
	Received uint64
	Emitted  uint64
	// Forced counts emitted sets that were still waiting when an overflow reached them.
	Forced     uint64
	Overflowed uint64
	Pruned     uint64
	Late       uint64
}

type entry struct {
	stamp time.Time
	seq   uint64
	msg   interface{}
}

// Synchronizer matches messages of types T0, T1 and T2. It has no goroutine of its own:
// matching runs inside Add0, Add1 and Add2 and the callback is invoked synchronously,
// under the synchronizer's lock, so sets are processed one at a time and the callback
// must not call back into the synchronizer.
type Synchronizer[T0, T1, T2 Stamped] struct {
	mu       sync.Mutex
	cfg      Config
	callback func(T0, T1, T2)

	queues      [numStreams][]entry
	lastEmitted [numStreams]time.Time
	hasEmitted  [numStreams]bool
	seq         uint64
	stats       Stats
}

// New returns a synchronizer calling callback for every matched set.
func New[T0, T1, T2 Stamped](cfg Config, callback func(T0, T1, T2)) (*Synchronizer[T0, T1, T2], error) {
	if callback == nil {
		return nil, errors.New("synchronizer needs a callback")
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.QueueSize < 1 {
		return nil, errors.Errorf("queue size must be at least 1, got %d", cfg.QueueSize)
	}
	return &Synchronizer[T0, T1, T2]{cfg: cfg, callback: callback}, nil
}

// Add0 delivers a message of the first stream.
func (s *Synchronizer[T0, T1, T2]) Add0(msg T0) {
	s.add(0, msg.Stamp(), msg)
}

// Add1 delivers a message of the second stream.
func (s *Synchronizer[T0, T1, T2]) Add1(msg T1) {
	s.add(1, msg.Stamp(), msg)
}

// Add2 delivers a message of the third stream.
func (s *Synchronizer[T0, T1, T2]) Add2(msg T2) {
	s.add(2, msg.Stamp(), msg)
}

// Stats returns a snapshot of the counters.
func (s *Synchronizer[T0, T1, T2]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Pending returns how many messages are buffered per stream.
func (s *Synchronizer[T0, T1, T2]) Pending() [numStreams]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out [numStreams]int
	for i, q := range s.queues {
		out[i] = len(q)
	}
	return out
}

// Reset drops everything buffered and forgets what was emitted. Counters are kept.
func (s *Synchronizer[T0, T1, T2]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.queues {
		s.queues[i] = nil
		s.hasEmitted[i] = false
		s.lastEmitted[i] = time.Time{}
	}
}

func (s *Synchronizer[T0, T1, T2]) add(stream int, stamp time.Time, msg interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Received++

	if s.hasEmitted[stream] && !stamp.After(s.lastEmitted[stream]) {
		s.stats.Late++
		return
	}

	q := s.queues[stream]
	// keep each queue sorted by stamp, equal stamps in arrival order
	idx := sort.Search(len(q), func(i int) bool { return q[i].stamp.After(stamp) })
	q = append(q, entry{})
	copy(q[idx+1:], q[idx:])
	q[idx] = entry{stamp: stamp, seq: s.seq, msg: msg}
	s.seq++
	s.queues[stream] = q

	s.process()
	if len(s.queues[stream]) > s.cfg.QueueSize {
		s.rescue(stream)
	}
	if q := s.queues[stream]; len(q) > s.cfg.QueueSize {
		s.queues[stream] = q[1:]
		s.stats.Overflowed++
	}
	s.process()
}

// candidate is one message index per stream. seq is the arrival number of the set's
// last arriving message.
type candidate struct {
	picks  [numStreams]int
	anchor time.Time
	span   time.Duration
	seq    uint64
}

func (s *Synchronizer[T0, T1, T2]) process() {
	for {
		s.prune()
		c, ok := s.oldest()
		if !ok || !s.settled(c) {
			return
		}
		s.emit(c)
	}
}

// rescue emits the oldest waiting set when its message on stream is the one an overflow
// is about to drop.
func (s *Synchronizer[T0, T1, T2]) rescue(stream int) {
	c, ok := s.oldest()
	if !ok || c.picks[stream] != 0 {
		return
	}
	s.stats.Forced++
	s.emit(c)
}

// oldest returns the oldest set worth emitting. Starting from the best set over all
// queued messages, it repeatedly looks for the best set made only of messages older than
// the current one's, and stops when there is none. A set found this way shares no message
// with the newer ones, and it is settled whenever any of them is.
func (s *Synchronizer[T0, T1, T2]) oldest() (candidate, bool) {
	var limits [numStreams]int
	for i, q := range s.queues {
		limits[i] = len(q)
	}
	var (
		c     candidate
		found bool
	)
	for {
		next, ok := s.best(limits)
		if !ok {
			return c, found
		}
		c, found = next, true
		limits = c.picks
	}
}

// best finds the valid set with the smallest spread using the first limits[i] messages
// of each queue; ties go to the set whose last message arrived first.
func (s *Synchronizer[T0, T1, T2]) best(limits [numStreams]int) (candidate, bool) {
	for _, limit := range limits {
		if limit == 0 {
			return candidate{}, false
		}
	}
	var (
		best  candidate
		found bool
	)
	for anchorStream, q := range s.queues {
		for anchorIdx, anchor := range q[:limits[anchorStream]] {
			c, ok := s.candidateFor(anchorStream, anchorIdx, anchor, limits)
			if !ok {
				continue
			}
			if !found || c.betterThan(best) {
				best = c
				found = true
			}
		}
	}
	return best, found
}

// candidateFor builds the set whose latest message is anchor: every other stream
// contributes its newest message not newer than the anchor.
func (s *Synchronizer[T0, T1, T2]) candidateFor(
	anchorStream, anchorIdx int,
	anchor entry,
	limits [numStreams]int,
) (candidate, bool) {
	c := candidate{anchor: anchor.stamp, seq: anchor.seq}
	earliest := anchor.stamp
	for stream, q := range s.queues {
		q = q[:limits[stream]]
		if stream == anchorStream {
			c.picks[stream] = anchorIdx
			continue
		}
		// first entry newer than the anchor; the pick is the group of equal stamps just before it
		idx := sort.Search(len(q), func(i int) bool { return q[i].stamp.After(anchor.stamp) }) - 1
		if idx < 0 {
			return candidate{}, false
		}
		for idx > 0 && q[idx-1].stamp.Equal(q[idx].stamp) {
			idx--
		}
		c.picks[stream] = idx
		if q[idx].stamp.Before(earliest) {
			earliest = q[idx].stamp
		}
		if q[idx].seq > c.seq {
			c.seq = q[idx].seq
		}
	}
	c.span = anchor.stamp.Sub(earliest)
	if s.cfg.MaxInterval > 0 && c.span > s.cfg.MaxInterval {
		return candidate{}, false
	}
	return c, true
}

func (c candidate) betterThan(other candidate) bool {
	if c.span != other.span {
		return c.span < other.span
	}
	return c.seq < other.seq
}

// settled reports whether every stream already holds a message at least as new as the
// set's anchor. Stamps within a stream only grow, so no later arrival can then produce a
// set that the candidate's members would belong to with a tighter spread.
func (s *Synchronizer[T0, T1, T2]) settled(c candidate) bool {
	for _, q := range s.queues {
		if q[len(q)-1].stamp.Before(c.anchor) {
			return false
		}
	}
	return true
}

func (s *Synchronizer[T0, T1, T2]) emit(c candidate) {
	var msgs [numStreams]interface{}
	for stream, pick := range c.picks {
		q := s.queues[stream]
		msgs[stream] = q[pick].msg
		s.lastEmitted[stream] = q[pick].stamp
		s.hasEmitted[stream] = true
		s.queues[stream] = q[pick+1:]
	}
	s.stats.Emitted++
	//nolint:forcetypeassert
	s.callback(msgs[0].(T0), msgs[1].(T1), msgs[2].(T2))
}

// prune drops messages at the front of a queue that can never be part of a set within
// MaxInterval: some other stream has nothing close to them buffered and everything it
// will still deliver is too new.
func (s *Synchronizer[T0, T1, T2]) prune() {
	if s.cfg.MaxInterval <= 0 {
		return
	}
	for stream := range s.queues {
		for len(s.queues[stream]) > 0 && s.unmatchable(stream, s.queues[stream][0].stamp) {
			s.queues[stream] = s.queues[stream][1:]
			s.stats.Pruned++
		}
	}
}

func (s *Synchronizer[T0, T1, T2]) unmatchable(stream int, stamp time.Time) bool {
	limit := stamp.Add(s.cfg.MaxInterval)
	for other, q := range s.queues {
		if other == stream || len(q) == 0 {
			continue
		}
		if !q[len(q)-1].stamp.After(limit) {
			continue
		}
		near := false
		for _, e := range q {
			if absDuration(e.stamp.Sub(stamp)) <= s.cfg.MaxInterval {
				near = true
				break
			}
		}
		if !near {
			return true
		}
	}
	return false
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
