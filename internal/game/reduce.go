package game

import (
	"fmt"
	"slices"
	"time"
)

type Event interface{ event() }

type (
	Guess           struct{ AI bool }
	Replay          struct{}
	Advance         struct{}
	PlaybackStarted struct{ ClipID string }
	PlaybackEnded   struct{ ClipID string }
	PlaybackFailed  struct {
		ClipID string
		Err    error
	}
)

func (Guess) event()           {}
func (Replay) event()          {}
func (Advance) event()         {}
func (PlaybackStarted) event() {}
func (PlaybackEnded) event()   {}
func (PlaybackFailed) event()  {}

// Command is work the host performs on behalf of the state machine.
type Command interface{ command() }

type (
	PlayClip        struct{ Clip Clip }
	ScheduleAdvance struct{ Delay time.Duration }
	Feedback        struct {
		Clip    Clip
		Guessed bool
		Correct bool
	}
	ShowResults struct{ Summary Summary }
)

func (PlayClip) command()        {}
func (ScheduleAdvance) command() {}
func (Feedback) command()        {}
func (ShowResults) command()     {}

// Reduce applies ev to s. On error s is returned unchanged.
func Reduce(s Session, ev Event) (Session, []Command, error) {
	switch ev := ev.(type) {
	case Guess:
		return reduceGuess(s, ev)
	case Replay:
		return reduceReplay(s)
	case Advance:
		if !s.Pending {
			return s, nil, fmt.Errorf("advance without a pending guess")
		}
		s.Pending = false
		if s.Complete() {
			return s, []Command{ShowResults{Summary: s.Summary()}}, nil
		}
		return s, nil, nil
	case PlaybackStarted:
		if !s.isCurrent(ev.ClipID) {
			return s, nil, nil
		}
		if s.Played {
			s.ReplaysUsed++
		}
		s.Played = true
		return s, nil, nil
	case PlaybackEnded:
		if s.isCurrent(ev.ClipID) {
			s.Playing = false
		}
		return s, nil, nil
	case PlaybackFailed:
		if s.isCurrent(ev.ClipID) {
			s.Playing = false
		}
		return s, nil, nil
	default:
		return s, nil, fmt.Errorf("unknown event %T", ev)
	}
}

func reduceGuess(s Session, g Guess) (Session, []Command, error) {
	if err := s.awaiting(); err != nil {
		return s, nil, err
	}
	clip := s.Clips[s.CurrentIndex]
	correct := g.AI == clip.IsAI

	s.History = append(slices.Clip(s.History), correct)
	if correct {
		s.Score++
		s.CurrentStreak++
		s.LongestStreak = max(s.LongestStreak, s.CurrentStreak)
	} else {
		s.CurrentStreak = 0
	}
	s.ReplaysUsed = 0
	s.Played = false
	s.CurrentIndex++
	s.Pending = true

	return s, []Command{
		Feedback{Clip: clip, Guessed: g.AI, Correct: correct},
		ScheduleAdvance{Delay: s.Rules.AdvanceDelay},
	}, nil
}

func reduceReplay(s Session) (Session, []Command, error) {
	if err := s.awaiting(); err != nil {
		return s, nil, err
	}
	if s.Played && s.ReplaysUsed >= s.Rules.MaxReplays {
		return s, nil, ErrReplayLimitReached
	}
	s.Playing = true
	return s, []Command{PlayClip{Clip: s.Clips[s.CurrentIndex]}}, nil
}

func (s Session) awaiting() error {
	switch {
	case s.Complete():
		return ErrSessionComplete
	case s.Pending:
		return ErrAdvancePending
	case s.Playing:
		return ErrPlaybackActive
	}
	return nil
}

func (s Session) isCurrent(clipID string) bool {
	return !s.Complete() && s.Clips[s.CurrentIndex].ID == clipID
}
