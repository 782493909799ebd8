package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/faiface/beep"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"voiceguess/internal/catalog"
	"voiceguess/internal/config"
	"voiceguess/internal/playback"
	"voiceguess/internal/scorecard"
	"voiceguess/internal/storage"
)

var (
	configPath string
	dbPath     string
	logFile    string
	seed       uint64
	statsLimit int

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "voiceguess",
	Short:         "Listen to voice clips and guess: human or AI?",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("db") {
			cfg.DBPath = dbPath
		}
		if cmd.Flags().Changed("log-file") {
			cfg.LogFile = logFile
		}
		logger, err = newLogger(cfg.LogFile, cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runPlay,
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Start a game (the default)",
	Args:  cobra.NoArgs,
	RunE:  runPlay,
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the playable clips found in storage",
	Args:  cobra.NoArgs,
	RunE:  runCatalog,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show results of past games",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "results database (default from config)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "log file, empty disables logging (default from config)")
	rootCmd.PersistentFlags().Uint64Var(&seed, "seed", 0, "shuffle seed, 0 picks a random one")
	statsCmd.Flags().IntVar(&statsLimit, "limit", 10, "number of recent games to list")
	rootCmd.AddCommand(playCmd, catalogCmd, statsCmd)
}

func newBucket(c config.Config) (storage.Bucket, error) {
	switch c.Storage.Backend {
	case config.BackendSupabase:
		return storage.NewSupabase(c.Storage.URL, c.Storage.Bucket, c.Storage.Key), nil
	case config.BackendDir:
		return storage.NewDir(c.Storage.Dir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
}

func newLoader(c config.Config, log *zap.Logger) (*catalog.Loader, error) {
	bucket, err := newBucket(c)
	if err != nil {
		return nil, err
	}
	l := &catalog.Loader{
		Bucket:      bucket,
		AIFolder:    c.Storage.AIFolder,
		HumanFolder: c.Storage.HumanFolder,
		Size:        c.Game.Size,
		Logger:      log.Named("catalog"),
	}
	if seed != 0 {
		l.Rand = rand.New(rand.NewPCG(seed, seed))
	}
	return l, nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	loader, err := newLoader(cfg, logger)
	if err != nil {
		return err
	}
	db, err := initDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	out := playback.NewSpeaker(beep.SampleRate(cfg.SampleRate))
	player := playback.NewController(out, logger.Named("playback"))
	defer player.Stop()

	logger.Info("voiceguess starting",
		zap.String("backend", cfg.Storage.Backend),
		zap.Int("session_size", cfg.Game.Size),
		zap.Int("max_replays", cfg.Game.MaxReplays))

	p := tea.NewProgram(newModel(loader, player, db, logger, cfg.Rules()), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}

func runCatalog(cmd *cobra.Command, args []string) error {
	loader, err := newLoader(cfg, logger)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), catalogTimeout)
	defer cancel()
	pool, err := loader.Pool(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	var ai, human int
	for _, c := range pool {
		if c.IsAI {
			ai++
		} else {
			human++
		}
		fmt.Fprintf(w, "%-6s %-40s %s\n", c.Origin(), c.Title, c.AudioURL)
	}
	fmt.Fprintf(w, "\n%d AI clips, %d human clips, %d per game\n", ai, human, cfg.Game.Size)
	if len(pool) < cfg.Game.Size {
		fmt.Fprintf(w, "Not enough clips to start a game: need %d more.\n", cfg.Game.Size-len(pool))
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	db, err := initDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	return printStats(cmd, db, statsLimit)
}

func printStats(cmd *cobra.Command, db *sql.DB, limit int) error {
	stats, err := getStats(db)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if stats.GamesPlayed == 0 {
		fmt.Fprintln(w, "No games played yet.")
		return nil
	}
	fmt.Fprintf(w, "Games played:  %d\n", stats.GamesPlayed)
	fmt.Fprintf(w, "Best score:    %d\n", stats.BestScore)
	fmt.Fprintf(w, "Average score: %.1f\n", stats.AverageScore)
	fmt.Fprintf(w, "Best streak:   %d\n", stats.BestStreak)
	fmt.Fprintf(w, "AI clips:      %s (%d/%d)\n", accuracy(stats.AICorrect, stats.AITotal), stats.AICorrect, stats.AITotal)
	fmt.Fprintf(w, "Human clips:   %s (%d/%d)\n", accuracy(stats.HumanCorrect, stats.HumanTotal), stats.HumanCorrect, stats.HumanTotal)

	games, err := getRecentGames(db, limit)
	if err != nil {
		return err
	}
	fmt.Fprintln(w)
	for _, g := range games {
		fmt.Fprintf(w, "%s  %2d/%-2d  🔥%-2d  %s\n",
			g.FinishedAt.Local().Format(time.DateTime), g.Score, g.Total, g.LongestStreak,
			scorecard.Line(g.History))
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("voiceguess: %v", err)
		os.Exit(1)
	}
}
