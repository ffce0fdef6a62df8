package audio

import (
	"errors"
	"fmt"
	"io"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavBitDepth = 16

// EncodeWAV renders the buffer as a 16-bit PCM WAV payload in memory.
func EncodeWAV(b *Buffer) ([]byte, error) {
	if b == nil || len(b.Samples) == 0 {
		return nil, errors.New("empty audio buffer")
	}
	if b.SampleRate <= 0 || b.Channels <= 0 {
		return nil, fmt.Errorf("invalid format: rate=%d channels=%d", b.SampleRate, b.Channels)
	}

	out := &seekBuffer{}
	enc := wav.NewEncoder(out, b.SampleRate, wavBitDepth, b.Channels, 1)

	ib := &gaudio.IntBuffer{
		Format: &gaudio.Format{
			NumChannels: b.Channels,
			SampleRate:  b.SampleRate,
		},
		Data:           make([]int, len(b.Samples)),
		SourceBitDepth: wavBitDepth,
	}
	for i, s := range b.Samples {
		ib.Data[i] = int(s)
	}

	if err := enc.Write(ib); err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("wav write failed: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("wav close failed: %w", err)
	}
	return out.data, nil
}

// seekBuffer is an in-memory io.WriteSeeker; the WAV encoder seeks back
// to patch chunk sizes on Close.
type seekBuffer struct {
	data []byte
	pos  int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	if need := s.pos + len(p); need > len(s.data) {
		s.data = append(s.data, make([]byte, need-len(s.data))...)
	}
	copy(s.data[s.pos:], p)
	s.pos += len(p)
	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(s.pos) + offset
	case io.SeekEnd:
		pos = int64(len(s.data)) + offset
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}
	if pos < 0 {
		return 0, errors.New("negative seek position")
	}
	s.pos = int(pos)
	return pos, nil
}
