// Package playback plays one clip at a time on an audio output.
package playback

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
	"go.uber.org/zap"
)

const resampleQuality = 4

type State struct {
	Playing bool
	ClipID  string
}

// Event reports the end of a playback. Err is set when the stream failed
// part way through. Stopped playbacks produce no event.
type Event struct {
	ClipID string
	Err    error
}

type decodeFunc func(data []byte) (beep.StreamSeekCloser, beep.Format, error)

var decoders = map[string]decodeFunc{
	".mp3": func(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
		return mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	},
	".wav": func(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
		return wav.Decode(bytes.NewReader(data))
	},
	".ogg": func(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
		return vorbis.Decode(io.NopCloser(bytes.NewReader(data)))
	},
}

type Controller struct {
	out    Output
	client *http.Client
	log    *zap.Logger
	events chan Event

	mu      sync.Mutex
	state   State
	gen     uint64
	current beep.StreamSeekCloser
}

func NewController(out Output, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		out:    out,
		client: http.DefaultClient,
		log:    log,
		events: make(chan Event, 8),
	}
}

// Events delivers natural ends of playbacks started by Play.
func (c *Controller) Events() <-chan Event { return c.events }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) IsPlaying() bool { return c.State().Playing }

// Play stops whatever is playing, loads src and starts it. A nil error
// means the clip has started.
func (c *Controller) Play(ctx context.Context, clipID, src string) error {
	c.mu.Lock()
	c.stopLocked()
	gen := c.gen
	c.mu.Unlock()

	if err := c.out.Open(); err != nil {
		return fmt.Errorf("%w: opening audio output: %v", ErrBlocked, err)
	}

	u, err := url.Parse(src)
	if err != nil {
		return fmt.Errorf("%w: bad source %q: %v", ErrUnknown, src, err)
	}
	ext := strings.ToLower(path.Ext(u.Path))
	decode, ok := decoders[ext]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}

	data, err := c.fetch(ctx, u)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrAborted, err)
	}

	stream, format, err := decode(data)
	if err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrUnsupported, ext, err)
	}

	var s beep.Streamer = stream
	if rate := c.out.SampleRate(); format.SampleRate != rate {
		s = beep.Resample(resampleQuality, format.SampleRate, rate, stream)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// A Stop or another Play while loading bumps gen.
	if c.gen != gen || ctx.Err() != nil {
		if err := stream.Close(); err != nil {
			c.log.Warn("closing stream", zap.Error(err))
		}
		return fmt.Errorf("%w: stopped while loading %s", ErrAborted, clipID)
	}
	c.current = stream
	c.state = State{Playing: true, ClipID: clipID}
	c.out.Play(beep.Seq(s, beep.Callback(func() {
		// Runs on the output goroutine, which may hold the output lock.
		go c.finished(gen, clipID, stream)
	})))
	c.log.Debug("playback started",
		zap.String("clip", clipID),
		zap.Int("sample_rate", int(format.SampleRate)))
	return nil
}

// Stop halts the current playback, if any.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	c.gen++
	if c.current == nil {
		return
	}
	c.out.Clear()
	if err := c.current.Close(); err != nil {
		c.log.Warn("closing stream", zap.Error(err))
	}
	c.log.Debug("playback stopped", zap.String("clip", c.state.ClipID))
	c.current = nil
	c.state = State{}
}

func (c *Controller) finished(gen uint64, clipID string, stream beep.StreamSeekCloser) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	streamErr := stream.Err()
	if err := stream.Close(); err != nil {
		c.log.Warn("closing stream", zap.Error(err))
	}
	c.current = nil
	c.state = State{}
	c.mu.Unlock()

	ev := Event{ClipID: clipID}
	if streamErr != nil {
		ev.Err = fmt.Errorf("%w: %v", ErrUnknown, streamErr)
	}
	select {
	case c.events <- ev:
	default:
		c.log.Warn("dropping playback event", zap.String("clip", clipID))
	}
}

func (c *Controller) fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	switch u.Scheme {
	case "http", "https":
		return c.fetchHTTP(ctx, u.String())
	case "file", "":
		data, err := os.ReadFile(u.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnknown, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupported, u.Scheme)
	}
}

func (c *Controller) fetchHTTP(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknown, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAborted, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: fetching clip: status %d", ErrUnknown, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading clip: %v", ErrAborted, err)
	}
	return data, nil
}
