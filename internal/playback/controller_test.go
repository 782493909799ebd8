package playback

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const testRate = beep.SampleRate(8000)

// fakeOutput drains streamers on a goroutine. With hold set, streaming
// waits until release is closed, so a playback stays in flight.
type fakeOutput struct {
	openErr error
	hold    bool
	release chan struct{}

	mu      sync.Mutex
	played  int
	cleared int
	frames  int
	stop    chan struct{}
	wg      sync.WaitGroup
}

func newFakeOutput() *fakeOutput {
	return &fakeOutput{release: make(chan struct{})}
}

func (f *fakeOutput) SampleRate() beep.SampleRate { return testRate }

func (f *fakeOutput) Open() error { return f.openErr }

func (f *fakeOutput) Play(s beep.Streamer) {
	f.mu.Lock()
	f.played++
	stop := make(chan struct{})
	f.stop = stop
	f.mu.Unlock()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		if f.hold {
			select {
			case <-stop:
				return
			case <-f.release:
			}
		}
		buf := make([][2]float64, 512)
		for {
			select {
			case <-stop:
				return
			default:
			}
			n, ok := s.Stream(buf)
			f.mu.Lock()
			f.frames += n
			f.mu.Unlock()
			if !ok {
				return
			}
		}
	}()
}

func (f *fakeOutput) Clear() {
	f.mu.Lock()
	f.cleared++
	if f.stop != nil {
		close(f.stop)
		f.stop = nil
	}
	f.mu.Unlock()
	f.wg.Wait()
}

func (f *fakeOutput) framesStreamed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

func (f *fakeOutput) counts() (played, cleared int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.played, f.cleared
}

func writeWAV(t *testing.T, dir, name string, samples int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	require.NoError(t, err)
	defer f.Close()
	format := beep.Format{SampleRate: testRate, NumChannels: 1, Precision: 2}
	require.NoError(t, wav.Encode(f, beep.Take(samples, beep.Silence(-1)), format))
	return p
}

func waitEvent(t *testing.T, c *Controller) Event {
	t.Helper()
	select {
	case ev := <-c.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no playback event")
		return Event{}
	}
}

func TestPlayFileToEnd(t *testing.T) {
	defer goleak.VerifyNone(t)

	out := newFakeOutput()
	c := NewController(out, nil)
	src := "file://" + filepath.ToSlash(writeWAV(t, t.TempDir(), "clip.wav", 4000))

	require.NoError(t, c.Play(context.Background(), "clip-1", src))

	ev := waitEvent(t, c)
	assert.Equal(t, "clip-1", ev.ClipID)
	assert.NoError(t, ev.Err)
	assert.Eventually(t, func() bool { return !c.IsPlaying() }, time.Second, 10*time.Millisecond)
	out.wg.Wait()
}

func TestPlayResamples(t *testing.T) {
	out := newFakeOutput()
	out.hold = true
	c := NewController(out, nil)

	p := filepath.Join(t.TempDir(), "hi.wav")
	f, err := os.Create(p)
	require.NoError(t, err)
	format := beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}
	require.NoError(t, wav.Encode(f, beep.Take(4410, beep.Silence(-1)), format))
	require.NoError(t, f.Close())

	require.NoError(t, c.Play(context.Background(), "hi", p))
	assert.Equal(t, State{Playing: true, ClipID: "hi"}, c.State())
	c.Stop()
	assert.False(t, c.IsPlaying())
	assert.Equal(t, 0, out.framesStreamed())
}

func TestPlayResamplesToOutputRate(t *testing.T) {
	out := newFakeOutput()
	c := NewController(out, nil)

	p := filepath.Join(t.TempDir(), "hi.wav")
	f, err := os.Create(p)
	require.NoError(t, err)
	format := beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}
	require.NoError(t, wav.Encode(f, beep.Take(4410, beep.Silence(-1)), format))
	require.NoError(t, f.Close())

	require.NoError(t, c.Play(context.Background(), "hi", p))
	assert.Equal(t, "hi", waitEvent(t, c).ClipID)
	out.wg.Wait()
	// 0.1s of audio at the 8kHz output rate.
	assert.InDelta(t, 800, out.framesStreamed(), 10)
}

func TestStopWhileLoadingAborts(t *testing.T) {
	out := newFakeOutput()
	c := NewController(out, nil)
	src := writeWAV(t, t.TempDir(), "clip.wav", 800)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	decodeWAV := decoders[".wav"]
	t.Cleanup(func() { decoders[".wav"] = decodeWAV })
	decoders[".wav"] = func(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
		cancel()
		c.Stop()
		return decodeWAV(data)
	}

	err := c.Play(ctx, "old-game-clip", src)
	assert.ErrorIs(t, err, ErrAborted)
	assert.False(t, c.IsPlaying())
	played, _ := out.counts()
	assert.Zero(t, played)
}

func TestStopWhileLoadingAbortsWithLiveContext(t *testing.T) {
	out := newFakeOutput()
	c := NewController(out, nil)
	src := writeWAV(t, t.TempDir(), "clip.wav", 800)

	decodeWAV := decoders[".wav"]
	t.Cleanup(func() { decoders[".wav"] = decodeWAV })
	decoders[".wav"] = func(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
		c.Stop()
		return decodeWAV(data)
	}

	err := c.Play(context.Background(), "clip", src)
	assert.Equal(t, ReasonAborted, ReasonOf(err))
	assert.False(t, c.IsPlaying())
}

func TestPlayOverHTTP(t *testing.T) {
	data, err := os.ReadFile(writeWAV(t, t.TempDir(), "clip.wav", 800))
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/AI/clip.wav" {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	defer srv.Close()

	c := NewController(newFakeOutput(), nil)
	require.NoError(t, c.Play(context.Background(), "remote", srv.URL+"/AI/clip.wav"))
	assert.Equal(t, "remote", waitEvent(t, c).ClipID)

	err = c.Play(context.Background(), "missing", srv.URL+"/AI/missing.wav")
	assert.ErrorIs(t, err, ErrUnknown)
	assert.Equal(t, ReasonUnknown, ReasonOf(err))
}

func TestStopSuppressesEndedEvent(t *testing.T) {
	defer goleak.VerifyNone(t)

	out := newFakeOutput()
	out.hold = true
	c := NewController(out, nil)
	src := writeWAV(t, t.TempDir(), "clip.wav", 800)

	require.NoError(t, c.Play(context.Background(), "a", src))
	require.True(t, c.IsPlaying())
	c.Stop()
	assert.False(t, c.IsPlaying())

	select {
	case ev := <-c.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPlayStopsPrevious(t *testing.T) {
	out := newFakeOutput()
	out.hold = true
	c := NewController(out, nil)
	dir := t.TempDir()
	first := writeWAV(t, dir, "one.wav", 800)
	second := writeWAV(t, dir, "two.wav", 800)

	require.NoError(t, c.Play(context.Background(), "one", first))
	require.NoError(t, c.Play(context.Background(), "two", second))

	played, cleared := out.counts()
	assert.Equal(t, 2, played)
	assert.GreaterOrEqual(t, cleared, 1)
	assert.Equal(t, State{Playing: true, ClipID: "two"}, c.State())

	close(out.release)
	assert.Equal(t, "two", waitEvent(t, c).ClipID)
}

func TestPlayFailures(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "bad.wav")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not RIFF"), 0o644))
	good := writeWAV(t, dir, "good.wav", 100)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	blocked := newFakeOutput()
	blocked.openErr = errors.New("no audio device")

	tests := []struct {
		name   string
		out    *fakeOutput
		ctx    context.Context
		src    string
		reason Reason
	}{
		{"blocked", blocked, context.Background(), good, ReasonBlocked},
		{"m4a", newFakeOutput(), context.Background(), "https://cdn.test/AI/clip.m4a", ReasonUnsupported},
		{"webm", newFakeOutput(), context.Background(), "https://cdn.test/AI/clip.webm", ReasonUnsupported},
		{"corrupt", newFakeOutput(), context.Background(), garbage, ReasonUnsupported},
		{"missing file", newFakeOutput(), context.Background(), filepath.Join(dir, "nope.wav"), ReasonUnknown},
		{"cancelled", newFakeOutput(), cancelled, good, ReasonAborted},
		{"cancelled http", newFakeOutput(), cancelled, "http://127.0.0.1:1/clip.mp3", ReasonAborted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(tt.out, nil)
			err := c.Play(tt.ctx, "x", tt.src)
			require.Error(t, err)
			assert.Equal(t, tt.reason, ReasonOf(err), "err: %v", err)
			assert.False(t, c.IsPlaying())
		})
	}
}

func TestReasonString(t *testing.T) {
	assert.Equal(t, "blocked", ReasonBlocked.String())
	assert.Equal(t, "aborted", ReasonOf(ErrAborted).String())
	assert.Equal(t, ReasonNone, ReasonOf(nil))
	assert.Equal(t, ReasonUnknown, ReasonOf(errors.New("x")))
}
