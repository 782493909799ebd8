package playback

import (
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// Output is where decoded audio goes.
type Output interface {
	SampleRate() beep.SampleRate
	// Open prepares the device. It is called before every playback and
	// must be cheap after the first success.
	Open() error
	Play(s beep.Streamer)
	Clear()
}

// Speaker is the system audio device. It is opened on first use.
type Speaker struct {
	rate beep.SampleRate
	once sync.Once
	err  error
}

func NewSpeaker(rate beep.SampleRate) *Speaker {
	return &Speaker{rate: rate}
}

func (s *Speaker) SampleRate() beep.SampleRate { return s.rate }

func (s *Speaker) Open() error {
	s.once.Do(func() {
		s.err = speaker.Init(s.rate, s.rate.N(100*time.Millisecond))
	})
	return s.err
}

func (s *Speaker) Play(st beep.Streamer) { speaker.Play(st) }

func (s *Speaker) Clear() { speaker.Clear() }
