package audio

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Sink accepts PCM for playback and returns how many samples it took
type Sink interface {
	Write(pcm []int16) int
}

const (
	chunkDuration = 20 * time.Millisecond

	// written up front when a cue starts so playback never waits on the first tick
	prefillChunks = 3
)

// Cues loops one tone pattern into a sink in real time. Play and Stop only hand the
// pattern to the loop goroutine and never block.
type Cues struct {
	sink Sink
	tick time.Duration

	next chan []int16
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewCues starts the playback loop. A nil sink gives silent cues.
func NewCues(sink Sink) *Cues {
	return newCues(sink, chunkDuration)
}

func newCues(sink Sink, tick time.Duration) *Cues {
	c := &Cues{
		sink: sink,
		tick: tick,
		next: make(chan []int16, 1),
		done: make(chan struct{}),
	}
	if sink != nil {
		c.wg.Go(c.loop)
	}
	return c
}

func (c *Cues) PlayRingback()     { c.play(Ringback()) }
func (c *Cues) PlayIncomingRing() { c.play(IncomingRing()) }
func (c *Cues) Stop()             { c.play(nil) }

// Close stops the loop and waits for it
func (c *Cues) Close() {
	c.once.Do(func() { close(c.done) })
	c.wg.Wait()
}

// play replaces whatever is pending with pattern
func (c *Cues) play(pattern []int16) {
	if c.sink == nil {
		return
	}
	for {
		select {
		case c.next <- pattern:
			return
		case <-c.done:
			return
		default:
		}
		select {
		case <-c.next:
		default:
		}
	}
}

func (c *Cues) loop() {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	chunk := int(c.tick.Milliseconds()) * samplesPerMs
	var (
		pattern []int16
		pos     int
	)
	// write feeds n samples of the looping pattern, stopping early if the sink is full
	write := func(n int) {
		for n > 0 && len(pattern) > 0 {
			want := min(n, len(pattern)-pos)
			written := c.sink.Write(pattern[pos : pos+want])
			pos = (pos + written) % len(pattern)
			n -= written
			if written < want {
				return // sink full
			}
		}
	}

	for {
		select {
		case <-c.done:
			return
		case p := <-c.next:
			pattern, pos = p, 0
			if pattern != nil {
				logrus.Tracef("cue started, %d samples per period", len(pattern))
				write(prefillChunks * chunk)
			}
		case <-ticker.C:
			write(chunk)
		}
	}
}
