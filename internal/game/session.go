// Package game holds the session state machine for one playthrough.
//
// A Session is a value. Reduce never mutates the session it is given; it
// returns the next session plus the commands the host should execute
// (play a clip, schedule the advance to the next clip, show results).
package game

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

const (
	DefaultSize         = 10
	DefaultMaxReplays   = 3
	DefaultAdvanceDelay = 1500 * time.Millisecond
)

var (
	ErrInvalidSessionSize = errors.New("invalid session size")
	ErrSessionComplete    = errors.New("session is complete")
	ErrAdvancePending     = errors.New("advance to next clip is pending")
	ErrPlaybackActive     = errors.New("playback in progress")
	ErrReplayLimitReached = errors.New("replay limit reached")
)

// Clip is one labelled audio sample.
type Clip struct {
	ID       string
	Title    string
	IsAI     bool
	AudioURL string
}

// Origin is "AI" or "Human".
func (c Clip) Origin() string {
	if c.IsAI {
		return "AI"
	}
	return "Human"
}

type Rules struct {
	Size         int
	MaxReplays   int
	AdvanceDelay time.Duration
}

func DefaultRules() Rules {
	return Rules{
		Size:         DefaultSize,
		MaxReplays:   DefaultMaxReplays,
		AdvanceDelay: DefaultAdvanceDelay,
	}
}

type Session struct {
	Clips         []Clip
	Rules         Rules
	CurrentIndex  int
	Score         int
	CurrentStreak int
	LongestStreak int
	History       []bool
	ReplaysUsed   int

	// Played is true once the current clip has started at least once.
	Played bool
	// Playing is true while a playback requested by Replay is in flight.
	Playing bool
	// Pending is true between an accepted guess and the host's Advance.
	Pending bool
}

// Summary is what the results screen and the scorecard are built from.
type Summary struct {
	Score         int
	TotalClips    int
	LongestStreak int
	History       []bool
}

// Start begins a session over exactly rules.Size clips.
func Start(clips []Clip, rules Rules) (Session, error) {
	if rules.Size < 1 || len(clips) != rules.Size {
		return Session{}, fmt.Errorf("%w: got %d clips, want %d", ErrInvalidSessionSize, len(clips), rules.Size)
	}
	if rules.MaxReplays < 0 {
		return Session{}, fmt.Errorf("negative replay budget %d", rules.MaxReplays)
	}
	return Session{
		Clips:   slices.Clone(clips),
		Rules:   rules,
		History: []bool{},
	}, nil
}

func (s Session) Complete() bool {
	return s.CurrentIndex == len(s.Clips)
}

// Current returns the clip awaiting a guess.
func (s Session) Current() (Clip, bool) {
	if s.Complete() {
		return Clip{}, false
	}
	return s.Clips[s.CurrentIndex], true
}

func (s Session) ReplaysLeft() int {
	return s.Rules.MaxReplays - s.ReplaysUsed
}

// CanReplay reports whether a Replay event would be accepted right now.
func (s Session) CanReplay() bool {
	if s.Complete() || s.Pending || s.Playing {
		return false
	}
	return !s.Played || s.ReplaysUsed < s.Rules.MaxReplays
}

// CanGuess reports whether a Guess event would be accepted right now.
func (s Session) CanGuess() bool {
	return !s.Complete() && !s.Pending && !s.Playing
}

func (s Session) Summary() Summary {
	return Summary{
		Score:         s.Score,
		TotalClips:    len(s.Clips),
		LongestStreak: s.LongestStreak,
		History:       slices.Clone(s.History),
	}
}

// Guess applies a guess and reports whether it was correct.
func (s Session) Guess(ai bool) (Session, bool, error) {
	next, cmds, err := Reduce(s, Guess{AI: ai})
	if err != nil {
		return s, false, err
	}
	for _, c := range cmds {
		if fb, ok := c.(Feedback); ok {
			return next, fb.Correct, nil
		}
	}
	return next, false, nil
}

// Replay requests a playback of the current clip.
func (s Session) Replay() (Session, error) {
	next, _, err := Reduce(s, Replay{})
	return next, err
}
