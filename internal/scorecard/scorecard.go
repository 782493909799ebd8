// Package scorecard renders the shareable plain-text summary of a finished
// game.
package scorecard

import (
	"fmt"
	"math"
	"strings"

	"voiceguess/internal/game"
)

const (
	Title      = "🗣️ Guess the Voice Results"
	GridWidth  = 5
	PassGlyph  = "✅"
	FailGlyph  = "❌"
	callToPlay = "Can you beat my score? Try it yourself!"
)

type Rating struct {
	Percent int
	Emoji   string
	Message string
}

var tiers = []struct {
	min     int
	emoji   string
	message string
}{
	{90, "🎯", "AI Detection Expert!"},
	{80, "🔥", "Excellent ear for voices!"},
	{70, "👏", "Great voice detection!"},
	{60, "👍", "Good job identifying voices!"},
	{50, "😊", "Not bad! Practice makes perfect."},
	{0, "🤔", "Keep practicing to improve!"},
}

// Rate turns a score into a rounded percentage and a performance tier.
func Rate(score, total int) Rating {
	pct := 0
	if total > 0 {
		pct = int(math.Round(float64(score) / float64(total) * 100))
	}
	for _, t := range tiers {
		if pct >= t.min {
			return Rating{Percent: pct, Emoji: t.emoji, Message: t.message}
		}
	}
	return Rating{Percent: pct}
}

// Grid lays the history out GridWidth glyphs per row.
func Grid(history []bool) string {
	var rows []string
	for start := 0; start < len(history); start += GridWidth {
		rows = append(rows, Line(history[start:min(start+GridWidth, len(history))]))
	}
	return strings.Join(rows, "\n")
}

// Line renders the history as a single row of glyphs.
func Line(history []bool) string {
	var b strings.Builder
	for _, ok := range history {
		if ok {
			b.WriteString(PassGlyph)
		} else {
			b.WriteString(FailGlyph)
		}
	}
	return b.String()
}

func Text(s game.Summary) string {
	var b strings.Builder
	b.WriteString(Title)
	b.WriteByte('\n')
	if len(s.History) > 0 {
		b.WriteString(Grid(s.History))
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "%d/%d correct | 🔥%d-streak\n\n", s.Score, s.TotalClips, s.LongestStreak)
	b.WriteString(callToPlay)
	return b.String()
}
