package audio

import "time"

// Chunk is one block of signed 16-bit PCM samples delivered by a single
// capture callback invocation. A chunk is never mutated after creation;
// ownership passes from the callback to the aggregation loop via the queue.
type Chunk struct {
	Samples []int16
	Frames  int
}

// Buffer is the concatenation of all chunks from one recording session.
type Buffer struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Duration returns the playing time of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 || b.Channels <= 0 {
		return 0
	}
	frames := len(b.Samples) / b.Channels
	return time.Duration(frames) * time.Second / time.Duration(b.SampleRate)
}
