package audio

import (
	"github.com/gordonklaus/portaudio"
)

// Stream is the device stream owned by one capture session.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// OpenStreamFunc opens a capture stream at the given format. The callback
// receives each delivered block of interleaved int16 samples together
// with an input-overflow indicator; it runs on the audio subsystem's own
// thread and must return quickly.
type OpenStreamFunc func(channels, sampleRate, framesPerBuffer int, cb func(in []int16, overflow bool)) (Stream, error)

// OpenDefaultStream opens the default input device through PortAudio.
func OpenDefaultStream(channels, sampleRate, framesPerBuffer int, cb func(in []int16, overflow bool)) (Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	s, err := portaudio.OpenDefaultStream(channels, 0, float64(sampleRate), framesPerBuffer,
		func(in []int16, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
			cb(in, flags&portaudio.InputOverflow != 0)
		})
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}
	return &paStream{s: s}, nil
}

type paStream struct {
	s *portaudio.Stream
}

func (p *paStream) Start() error { return p.s.Start() }
func (p *paStream) Stop() error  { return p.s.Stop() }

func (p *paStream) Close() error {
	err := p.s.Close()
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}
