package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"voiceguess/internal/game"
)

// --- DATA STRUCTURES ---

type guessRecord struct {
	Position  int
	Clip      game.Clip
	GuessedAI bool
	Correct   bool
}

type Stats struct {
	GamesPlayed  int
	BestScore    int
	AverageScore float64
	BestStreak   int
	AICorrect    int
	AITotal      int
	HumanCorrect int
	HumanTotal   int
}

type GameRecord struct {
	ID            string
	FinishedAt    time.Time
	Score         int
	Total         int
	LongestStreak int
	History       []bool
}

// --- DATABASE FUNCTIONS ---

func initDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	createGamesTableSQL := `
	CREATE TABLE IF NOT EXISTS games (
		id TEXT PRIMARY KEY,
		finished_at INTEGER NOT NULL,
		score INTEGER NOT NULL,
		total INTEGER NOT NULL,
		longest_streak INTEGER NOT NULL,
		history TEXT NOT NULL
	);`
	createGuessesTableSQL := `
	CREATE TABLE IF NOT EXISTS guesses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		game_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		clip_id TEXT NOT NULL,
		clip_title TEXT NOT NULL,
		is_ai BOOLEAN NOT NULL,
		guessed_ai BOOLEAN NOT NULL,
		correct BOOLEAN NOT NULL,
		FOREIGN KEY (game_id) REFERENCES games (id)
	);`
	for _, stmt := range []string{createGamesTableSQL, createGuessesTableSQL} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

func saveGame(db *sql.DB, gameID string, summary game.Summary, guesses []guessRecord) error {
	historyJSON, err := json.Marshal(summary.History)
	if err != nil {
		return fmt.Errorf("marshalling history: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO games (id, finished_at, score, total, longest_streak, history) VALUES (?, ?, ?, ?, ?, ?)",
		gameID,
		time.Now().Unix(),
		summary.Score,
		summary.TotalClips,
		summary.LongestStreak,
		string(historyJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting game: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO guesses (game_id, position, clip_id, clip_title, is_ai, guessed_ai, correct) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, g := range guesses {
		if _, err := stmt.Exec(gameID, g.Position, g.Clip.ID, g.Clip.Title, g.Clip.IsAI, g.GuessedAI, g.Correct); err != nil {
			return fmt.Errorf("inserting guess %d: %w", g.Position, err)
		}
	}
	return tx.Commit()
}

func getStats(db *sql.DB) (Stats, error) {
	var st Stats
	var best, streak sql.NullInt64
	var avg sql.NullFloat64
	err := db.QueryRow(`
		SELECT COUNT(*), MAX(score), AVG(score), MAX(longest_streak)
		FROM games;
	`).Scan(&st.GamesPlayed, &best, &avg, &streak)
	if err != nil {
		return st, fmt.Errorf("failed to query game stats: %w", err)
	}
	st.BestScore = int(best.Int64)
	st.AverageScore = avg.Float64
	st.BestStreak = int(streak.Int64)

	rows, err := db.Query(`
		SELECT
			is_ai,
			COUNT(*) AS total,
			SUM(CASE WHEN correct = 1 THEN 1 ELSE 0 END) AS correct
		FROM guesses
		GROUP BY is_ai;
	`)
	if err != nil {
		return st, fmt.Errorf("failed to query guess stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var isAI bool
		var total int
		var correct sql.NullInt64
		if err := rows.Scan(&isAI, &total, &correct); err != nil {
			return st, fmt.Errorf("failed to scan guess stat row: %w", err)
		}
		if isAI {
			st.AITotal, st.AICorrect = total, int(correct.Int64)
		} else {
			st.HumanTotal, st.HumanCorrect = total, int(correct.Int64)
		}
	}
	return st, rows.Err()
}

func getRecentGames(db *sql.DB, limit int) ([]GameRecord, error) {
	rows, err := db.Query(`
		SELECT id, finished_at, score, total, longest_streak, history
		FROM games
		ORDER BY finished_at DESC, rowid DESC
		LIMIT ?;
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer rows.Close()
	var games []GameRecord
	for rows.Next() {
		var g GameRecord
		var finished int64
		var history string
		if err := rows.Scan(&g.ID, &finished, &g.Score, &g.Total, &g.LongestStreak, &history); err != nil {
			return nil, fmt.Errorf("failed to scan game row: %w", err)
		}
		g.FinishedAt = time.Unix(finished, 0)
		if err := json.Unmarshal([]byte(history), &g.History); err != nil {
			return nil, fmt.Errorf("game %s: bad history: %w", g.ID, err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func logGameResult(db *sql.DB, log *zap.Logger, gameID string, summary game.Summary, guesses []guessRecord) {
	if err := saveGame(db, gameID, summary, guesses); err != nil {
		log.Error("saving game result", zap.String("game", gameID), zap.Error(err))
		return
	}
	log.Info("game saved",
		zap.String("game", gameID),
		zap.Int("score", summary.Score),
		zap.Int("total", summary.TotalClips),
		zap.Int("longest_streak", summary.LongestStreak))
}
