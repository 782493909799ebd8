package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceguess/internal/game"
)

var envVars = []string{
	"VOICEGUESS_STORAGE_BACKEND", "VOICEGUESS_SUPABASE_URL", "VOICEGUESS_SUPABASE_KEY",
	"VOICEGUESS_BUCKET", "VOICEGUESS_CLIPS_DIR", "VOICEGUESS_AI_FOLDER",
	"VOICEGUESS_HUMAN_FOLDER", "VOICEGUESS_SESSION_SIZE", "VOICEGUESS_MAX_REPLAYS",
	"VOICEGUESS_ADVANCE_DELAY", "VOICEGUESS_DB", "VOICEGUESS_LOG_FILE",
	"VOICEGUESS_LOG_LEVEL", "VOICEGUESS_SAMPLE_RATE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envVars {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, game.DefaultRules(), cfg.Rules())
	assert.Equal(t, BackendDir, cfg.Storage.Backend)
	assert.Equal(t, "AI", cfg.Storage.AIFolder)
	assert.Equal(t, "human", cfg.Storage.HumanFolder)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	p := filepath.Join(t.TempDir(), "voiceguess.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
storage:
  backend: supabase
  url: https://proj.supabase.co
  key: anon
  bucket: clips
game:
  size: 5
  max_replays: 1
  advance_delay: 2s
log_level: debug
`), 0o644))

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, BackendSupabase, cfg.Storage.Backend)
	assert.Equal(t, "https://proj.supabase.co", cfg.Storage.URL)
	assert.Equal(t, "clips", cfg.Storage.Bucket)
	assert.Equal(t, "AI", cfg.Storage.AIFolder, "unset keys keep defaults")
	assert.Equal(t, game.Rules{Size: 5, MaxReplays: 1, AdvanceDelay: 2 * time.Second}, cfg.Rules())
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	p := filepath.Join(t.TempDir(), "voiceguess.yaml")
	require.NoError(t, os.WriteFile(p, []byte("game:\n  size: 5\n"), 0o644))
	t.Setenv("VOICEGUESS_SESSION_SIZE", "12")
	t.Setenv("VOICEGUESS_ADVANCE_DELAY", "250ms")
	t.Setenv("VOICEGUESS_CLIPS_DIR", "/srv/clips")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Game.Size)
	assert.Equal(t, 250*time.Millisecond, cfg.Game.AdvanceDelay)
	assert.Equal(t, "/srv/clips", cfg.Storage.Dir)
}

func TestInvalidEnvFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("VOICEGUESS_MAX_REPLAYS", "lots")
	t.Setenv("VOICEGUESS_ADVANCE_DELAY", "soon")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, game.DefaultMaxReplays, cfg.Game.MaxReplays)
	assert.Equal(t, game.DefaultAdvanceDelay, cfg.Game.AdvanceDelay)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero size", func(c *Config) { c.Game.Size = 0 }, "game.size"},
		{"negative replays", func(c *Config) { c.Game.MaxReplays = -1 }, "game.max_replays"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "s3" }, "unknown storage backend"},
		{"supabase without url", func(c *Config) { c.Storage.Backend = BackendSupabase }, "storage.url"},
		{"dir without root", func(c *Config) { c.Storage.Dir = "" }, "storage.dir"},
		{"no folders", func(c *Config) { c.Storage.AIFolder = "" }, "ai_folder"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
