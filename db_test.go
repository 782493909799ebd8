package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceguess/internal/game"
)

func guessesFor(history []bool) []guessRecord {
	out := make([]guessRecord, len(history))
	for i, ok := range history {
		isAI := i%2 == 0
		guessed := isAI
		if !ok {
			guessed = !isAI
		}
		out[i] = guessRecord{
			Position:  i + 1,
			Clip:      game.Clip{ID: "clip", Title: "t", IsAI: isAI},
			GuessedAI: guessed,
			Correct:   ok,
		}
	}
	return out
}

func TestStatsEmptyDB(t *testing.T) {
	db, err := initDB(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer db.Close()

	st, err := getStats(db)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)
}

func TestSaveGameAndStats(t *testing.T) {
	db, err := initDB(filepath.Join(t.TempDir(), "nested", "results.db"))
	require.NoError(t, err)
	defer db.Close()

	first := game.Summary{Score: 3, TotalClips: 4, LongestStreak: 2, History: []bool{true, true, false, true}}
	second := game.Summary{Score: 1, TotalClips: 4, LongestStreak: 1, History: []bool{false, true, false, false}}
	require.NoError(t, saveGame(db, "g1", first, guessesFor(first.History)))
	require.NoError(t, saveGame(db, "g2", second, guessesFor(second.History)))

	st, err := getStats(db)
	require.NoError(t, err)
	assert.Equal(t, 2, st.GamesPlayed)
	assert.Equal(t, 3, st.BestScore)
	assert.InDelta(t, 2.0, st.AverageScore, 0.001)
	assert.Equal(t, 2, st.BestStreak)
	// Positions 1 and 3 are AI clips in guessesFor.
	assert.Equal(t, 4, st.AITotal)
	assert.Equal(t, 1, st.AICorrect)
	assert.Equal(t, 4, st.HumanTotal)
	assert.Equal(t, 3, st.HumanCorrect)

	games, err := getRecentGames(db, 10)
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "g2", games[0].ID)
	assert.Equal(t, second.History, games[0].History)
	assert.Equal(t, "g1", games[1].ID)
}

func TestSaveGameDuplicateIDFails(t *testing.T) {
	db, err := initDB(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer db.Close()

	s := game.Summary{Score: 1, TotalClips: 1, LongestStreak: 1, History: []bool{true}}
	require.NoError(t, saveGame(db, "same", s, guessesFor(s.History)))
	assert.Error(t, saveGame(db, "same", s, guessesFor(s.History)))

	st, err := getStats(db)
	require.NoError(t, err)
	assert.Equal(t, 1, st.GamesPlayed)
	assert.Equal(t, 1, st.AITotal, "rolled back guesses must not be counted")
}

func TestPrintStats(t *testing.T) {
	db, err := initDB(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer db.Close()

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	require.NoError(t, printStats(cmd, db, 5))
	assert.Contains(t, buf.String(), "No games played yet.")

	s := game.Summary{Score: 2, TotalClips: 3, LongestStreak: 2, History: []bool{true, true, false}}
	require.NoError(t, saveGame(db, "g", s, guessesFor(s.History)))

	buf.Reset()
	require.NoError(t, printStats(cmd, db, 5))
	out := buf.String()
	assert.Contains(t, out, "Games played:  1")
	assert.Contains(t, out, "Best streak:   2")
	assert.Contains(t, out, "✅✅❌")
}
