package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// State represents capture state.
type State int

const (
	StateIdle State = iota
	StateRecording
	// StateDraining is entered when the aggregation loop hits the duration
	// cap on its own: recording has stopped but the accumulated audio has
	// not been materialized yet. Stop finalizes it.
	StateDraining
)

var (
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
)

// DeviceError reports a capture device failure during Start.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string { return fmt.Sprintf("capture device: %v", e.Err) }
func (e *DeviceError) Unwrap() error { return e.Err }

const (
	framesPerBuffer = 1024
	popInterval     = 100 * time.Millisecond
	joinTimeout     = 2 * time.Second
)

// CaptureConfig holds the capture format and duration limit.
type CaptureConfig struct {
	SampleRate  int
	Channels    int
	MaxDuration time.Duration
}

// Capture records microphone audio into an in-memory buffer without
// blocking the caller. The capture callback only copies samples into the
// queue; a dedicated aggregation goroutine drains the queue and polices
// the duration limit.
type Capture struct {
	cfg  CaptureConfig
	open OpenStreamFunc
	log  zerolog.Logger

	recOn    atomic.Bool  // consulted by the capture callback
	overruns atomic.Int64 // bumped by the capture callback, never under mu

	mu       sync.Mutex
	state    State
	gen      uint64 // session counter; binds each aggregation loop to its session
	stream   Stream
	queue    *FrameQueue
	frames   []Chunk
	started  time.Time
	loopDone chan struct{}
}

// NewCapture creates an idle capture. The opener is typically
// OpenDefaultStream; tests substitute their own.
func NewCapture(cfg CaptureConfig, open OpenStreamFunc, log zerolog.Logger) *Capture {
	return &Capture{
		cfg:  cfg,
		open: open,
		log:  log.With().Str("component", "capture").Logger(),
	}
}

// Start opens the device stream and launches the aggregation loop. It
// fails with ErrAlreadyRecording when a session is active and with a
// DeviceError when the device cannot be opened, in which case the capture
// stays idle.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return ErrAlreadyRecording
	}

	queue := NewFrameQueue()
	stream, err := c.open(c.cfg.Channels, c.cfg.SampleRate, framesPerBuffer, func(in []int16, overflow bool) {
		c.onFrames(queue, in, overflow)
	})
	if err != nil {
		return &DeviceError{Err: err}
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return &DeviceError{Err: err}
	}

	c.state = StateRecording
	c.gen++
	c.stream = stream
	c.queue = queue
	c.frames = nil
	c.overruns.Store(0)
	c.started = time.Now()
	c.loopDone = make(chan struct{})
	c.recOn.Store(true)

	go c.aggregate(queue, c.loopDone, c.gen)

	c.log.Debug().
		Int("sample_rate", c.cfg.SampleRate).
		Int("channels", c.cfg.Channels).
		Msg("recording started")
	return nil
}

// onFrames runs on the audio thread. It copies the delivered samples and
// hands them to the aggregation loop; nothing here may block.
func (c *Capture) onFrames(queue *FrameQueue, in []int16, overflow bool) {
	if !c.recOn.Load() {
		return
	}
	if overflow {
		c.overruns.Add(1)
	}
	samples := make([]int16, len(in))
	copy(samples, in)
	queue.Push(Chunk{Samples: samples, Frames: len(in) / c.cfg.Channels})
}

// aggregate drains the queue into the accumulator and self-terminates
// once the duration cap is reached. The loop is bound to its own session
// through gen: a worker abandoned after a join timeout exits on its next
// iteration instead of touching a later session's state.
func (c *Capture) aggregate(queue *FrameQueue, done chan struct{}, gen uint64) {
	defer close(done)
	for {
		c.mu.Lock()
		if c.gen != gen || c.state != StateRecording {
			c.mu.Unlock()
			return
		}
		elapsed := time.Since(c.started)
		c.mu.Unlock()

		if elapsed >= c.cfg.MaxDuration {
			c.mu.Lock()
			if c.gen == gen && c.state == StateRecording {
				c.state = StateDraining
				c.recOn.Store(false)
			}
			c.mu.Unlock()
			c.log.Info().
				Dur("max_duration", c.cfg.MaxDuration).
				Msg("max recording duration reached")
			return
		}

		if chunk, ok := queue.Pop(popInterval); ok {
			c.mu.Lock()
			if c.gen == gen {
				c.frames = append(c.frames, chunk)
			}
			c.mu.Unlock()
		}
	}
}

// Stop closes the stream, joins the aggregation loop and materializes the
// accumulated audio. It returns a nil buffer (and nil error) when no
// audio was captured, and ErrNotRecording when there is no session to
// stop. Stop remains valid after a duration-triggered auto-stop.
func (c *Capture) Stop() (*Buffer, error) {
	c.mu.Lock()
	if c.state != StateRecording && c.state != StateDraining {
		c.mu.Unlock()
		return nil, ErrNotRecording
	}
	c.state = StateDraining
	c.recOn.Store(false)
	stream := c.stream
	queue := c.queue
	done := c.loopDone
	c.mu.Unlock()

	if stream != nil {
		if err := stream.Stop(); err != nil {
			c.log.Warn().Err(err).Msg("stream stop failed")
		}
		if err := stream.Close(); err != nil {
			c.log.Warn().Err(err).Msg("stream close failed")
		}
	}

	// Bounded join. An overrunning worker is abandoned rather than
	// killed; everything it already drained is still in c.frames.
	select {
	case <-done:
	case <-time.After(joinTimeout):
		c.log.Warn().Dur("timeout", joinTimeout).Msg("aggregation loop join timed out, abandoning worker")
	}

	// Pick up chunks pushed before the stream stopped that the loop never
	// got to.
	for {
		chunk, ok := queue.Pop(0)
		if !ok {
			break
		}
		c.mu.Lock()
		c.frames = append(c.frames, chunk)
		c.mu.Unlock()
	}

	c.mu.Lock()
	frames := c.frames
	overruns := c.overruns.Load()
	c.state = StateIdle
	c.stream = nil
	c.queue = nil
	c.frames = nil
	c.started = time.Time{}
	c.mu.Unlock()

	if overruns > 0 {
		c.log.Warn().Int64("overruns", overruns).Msg("input overflow during recording")
	}
	if len(frames) == 0 {
		c.log.Debug().Msg("recording stopped with no audio")
		return nil, nil
	}

	total := 0
	for _, chunk := range frames {
		total += len(chunk.Samples)
	}
	buf := &Buffer{
		Samples:    make([]int16, 0, total),
		SampleRate: c.cfg.SampleRate,
		Channels:   c.cfg.Channels,
	}
	for _, chunk := range frames {
		buf.Samples = append(buf.Samples, chunk.Samples...)
	}

	c.log.Debug().
		Int("chunks", len(frames)).
		Dur("duration", buf.Duration()).
		Msg("recording stopped")
	return buf, nil
}

// State returns the current capture state. Anything other than StateIdle
// means a session exists and must be finalized with Stop.
func (c *Capture) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsRecording reports whether a session is actively recording. It turns
// false as soon as the duration cap auto-stops the session.
func (c *Capture) IsRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateRecording
}

// Elapsed returns the time since the session started, or 0 when not
// recording.
func (c *Capture) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRecording {
		return 0
	}
	return time.Since(c.started)
}
