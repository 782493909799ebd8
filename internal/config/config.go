package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"voiceguess/internal/game"
)

const (
	BackendSupabase = "supabase"
	BackendDir      = "dir"
)

// Config holds all runtime configuration. Values come from the defaults,
// then an optional YAML file, then VOICEGUESS_* environment variables.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Game    GameConfig    `yaml:"game"`

	DBPath     string `yaml:"db_path"`
	LogFile    string `yaml:"log_file"`
	LogLevel   string `yaml:"log_level"`
	SampleRate int    `yaml:"sample_rate"`
}

type StorageConfig struct {
	Backend     string `yaml:"backend"`
	URL         string `yaml:"url"`
	Key         string `yaml:"key"`
	Bucket      string `yaml:"bucket"`
	Dir         string `yaml:"dir"`
	AIFolder    string `yaml:"ai_folder"`
	HumanFolder string `yaml:"human_folder"`
}

type GameConfig struct {
	Size         int           `yaml:"size"`
	MaxReplays   int           `yaml:"max_replays"`
	AdvanceDelay time.Duration `yaml:"advance_delay"`
}

func Default() Config {
	return Config{
		Storage: StorageConfig{
			Backend:     BackendDir,
			Bucket:      "voice-clips",
			Dir:         "clips",
			AIFolder:    "AI",
			HumanFolder: "human",
		},
		Game: GameConfig{
			Size:         game.DefaultSize,
			MaxReplays:   game.DefaultMaxReplays,
			AdvanceDelay: game.DefaultAdvanceDelay,
		},
		DBPath:     "voiceguess.db",
		LogFile:    "voiceguess.log",
		LogLevel:   "info",
		SampleRate: 44100,
	}
}

// Load reads path (if not empty), applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Storage.Backend = envStr("VOICEGUESS_STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.URL = envStr("VOICEGUESS_SUPABASE_URL", c.Storage.URL)
	c.Storage.Key = envStr("VOICEGUESS_SUPABASE_KEY", c.Storage.Key)
	c.Storage.Bucket = envStr("VOICEGUESS_BUCKET", c.Storage.Bucket)
	c.Storage.Dir = envStr("VOICEGUESS_CLIPS_DIR", c.Storage.Dir)
	c.Storage.AIFolder = envStr("VOICEGUESS_AI_FOLDER", c.Storage.AIFolder)
	c.Storage.HumanFolder = envStr("VOICEGUESS_HUMAN_FOLDER", c.Storage.HumanFolder)

	c.Game.Size = envInt("VOICEGUESS_SESSION_SIZE", c.Game.Size)
	c.Game.MaxReplays = envInt("VOICEGUESS_MAX_REPLAYS", c.Game.MaxReplays)
	c.Game.AdvanceDelay = envDuration("VOICEGUESS_ADVANCE_DELAY", c.Game.AdvanceDelay)

	c.DBPath = envStr("VOICEGUESS_DB", c.DBPath)
	c.LogFile = envStr("VOICEGUESS_LOG_FILE", c.LogFile)
	c.LogLevel = envStr("VOICEGUESS_LOG_LEVEL", c.LogLevel)
	c.SampleRate = envInt("VOICEGUESS_SAMPLE_RATE", c.SampleRate)
}

func (c Config) Validate() error {
	var errs []error
	if c.Game.Size < 1 {
		errs = append(errs, fmt.Errorf("game.size must be at least 1, got %d", c.Game.Size))
	}
	if c.Game.MaxReplays < 0 {
		errs = append(errs, fmt.Errorf("game.max_replays must not be negative, got %d", c.Game.MaxReplays))
	}
	if c.Game.AdvanceDelay < 0 {
		errs = append(errs, fmt.Errorf("game.advance_delay must not be negative"))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate))
	}
	if c.Storage.AIFolder == "" || c.Storage.HumanFolder == "" {
		errs = append(errs, errors.New("storage.ai_folder and storage.human_folder are required"))
	}
	switch c.Storage.Backend {
	case BackendSupabase:
		if c.Storage.URL == "" {
			errs = append(errs, errors.New("storage.url is required for the supabase backend"))
		}
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("storage.bucket is required for the supabase backend"))
		}
	case BackendDir:
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("storage.dir is required for the dir backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c Config) Rules() game.Rules {
	return game.Rules{
		Size:         c.Game.Size,
		MaxReplays:   c.Game.MaxReplays,
		AdvanceDelay: c.Game.AdvanceDelay,
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
