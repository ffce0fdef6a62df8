package audio

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

// Feedback plays short sine cues marking recording start, stop and
// errors. Cues play on their own goroutine and never overlap: a cue
// requested while another is playing is dropped.
type Feedback struct {
	sampleRate int
	tone       func(sampleRate int, freq float64, d time.Duration) error
	playing    atomic.Bool
	log        zerolog.Logger
}

// NewFeedback creates a feedback player at the given output sample rate.
func NewFeedback(sampleRate int, log zerolog.Logger) *Feedback {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	return &Feedback{
		sampleRate: sampleRate,
		tone:       playTone,
		log:        log.With().Str("component", "feedback").Logger(),
	}
}

// StartCue marks recording start.
func (f *Feedback) StartCue() { f.play(800, 100*time.Millisecond) }

// StopCue marks recording stop.
func (f *Feedback) StopCue() { f.play(600, 150*time.Millisecond) }

// ErrorCue marks a failure.
func (f *Feedback) ErrorCue() { f.play(400, 200*time.Millisecond) }

func (f *Feedback) play(freq float64, d time.Duration) {
	if !f.playing.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer f.playing.Store(false)
		if err := f.tone(f.sampleRate, freq, d); err != nil {
			f.log.Debug().Err(err).Msg("cue playback failed")
		}
	}()
}

// playTone synthesizes a sine beep and plays it through the default
// output device in blocking write mode.
func playTone(sampleRate int, freq float64, d time.Duration) error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	defer portaudio.Terminate()

	n := int(float64(sampleRate) * d.Seconds())
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(0.3 * math.MaxInt16 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}

	out := make([]int16, 512)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), len(out), out)
	if err != nil {
		return err
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		return err
	}
	defer stream.Stop()

	for off := 0; off < n; off += len(out) {
		end := off + len(out)
		if end > n {
			end = n
		}
		copy(out, samples[off:end])
		for i := end - off; i < len(out); i++ {
			out[i] = 0
		}
		if err := stream.Write(); err != nil {
			return err
		}
	}
	return nil
}
