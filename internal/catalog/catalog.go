// Package catalog builds the clip selection for a game from the AI and
// human folders of clip storage.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"voiceguess/internal/game"
	"voiceguess/internal/storage"
)

var (
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrInsufficientClips  = errors.New("not enough clips")
)

// SupportedExtensions are the audio file extensions picked up from storage.
var SupportedExtensions = []string{".mp3", ".wav", ".m4a", ".ogg", ".webm", ".aac"}

var clipNamespace = uuid.MustParse("4f8c2a3e-7d7b-4c1e-9a57-2d6f0b1c9e11")

// InsufficientError reports how many usable clips were found.
type InsufficientError struct {
	Found, Wanted int
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("%v: found %d usable clips, need %d", ErrInsufficientClips, e.Found, e.Wanted)
}

func (e *InsufficientError) Unwrap() error { return ErrInsufficientClips }

type Loader struct {
	Bucket      storage.Bucket
	AIFolder    string
	HumanFolder string
	Size        int
	// Rand drives the shuffle. Nil means a randomly seeded source.
	Rand   *rand.Rand
	Logger *zap.Logger
}

// Pool lists both folders and returns every usable clip, AI clips first,
// in listing order.
func (l *Loader) Pool(ctx context.Context) ([]game.Clip, error) {
	var ai, human []storage.Object
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ai, err = l.Bucket.List(gctx, l.AIFolder)
		return err
	})
	g.Go(func() (err error) {
		human, err = l.Bucket.List(gctx, l.HumanFolder)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}

	clips := l.clips(l.AIFolder, ai, true)
	clips = append(clips, l.clips(l.HumanFolder, human, false)...)
	l.logger().Debug("catalog listed",
		zap.Int("ai_files", len(ai)),
		zap.Int("human_files", len(human)),
		zap.Int("usable", len(clips)))
	return clips, nil
}

// Load returns Size clips drawn uniformly from the pool.
func (l *Loader) Load(ctx context.Context) ([]game.Clip, error) {
	pool, err := l.Pool(ctx)
	if err != nil {
		return nil, err
	}
	if len(pool) < l.Size {
		return nil, &InsufficientError{Found: len(pool), Wanted: l.Size}
	}
	Shuffle(l.rng(), pool)
	return pool[:l.Size], nil
}

func (l *Loader) clips(folder string, objects []storage.Object, isAI bool) []game.Clip {
	var out []game.Clip
	for _, obj := range objects {
		title, ok := audioTitle(obj.Name)
		if !ok {
			continue
		}
		objectPath := storage.Join(folder, obj.Name)
		out = append(out, game.Clip{
			ID:       uuid.NewSHA1(clipNamespace, []byte(objectPath)).String(),
			Title:    title,
			IsAI:     isAI,
			AudioURL: l.Bucket.PublicURL(objectPath),
		})
	}
	return out
}

// audioTitle strips a supported audio extension from name.
func audioTitle(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, ext := range SupportedExtensions {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)], true
		}
	}
	return "", false
}

// Shuffle is a Fisher-Yates shuffle of clips in place.
func Shuffle(rng *rand.Rand, clips []game.Clip) {
	for i := len(clips) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		clips[i], clips[j] = clips[j], clips[i]
	}
}

func (l *Loader) rng() *rand.Rand {
	if l.Rand != nil {
		return l.Rand
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func (l *Loader) logger() *zap.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return zap.NewNop()
}
