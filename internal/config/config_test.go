package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("pagebuilder.yaml")
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "utf8", cfg.Charset)
	require.True(t, cfg.History.Enabled)
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "pagebuilder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
charset: gbk
logging:
  level: DEBUG
  format: " JSON "
build:
  cleanup_on_failure: true
history:
  enabled: false
tools:
  module_compiler: [closure, "{in}", "{out}"]
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "gbk", cfg.Charset)
	require.Equal(t, LogLevelDebug, cfg.Logging.Level)
	require.Equal(t, LogFormatJSON, cfg.Logging.Format)
	require.True(t, cfg.Build.CleanupOnFailure)
	require.False(t, cfg.History.Enabled)
	require.Equal(t, []string{"closure", "{in}", "{out}"}, cfg.Tools.ModuleCompiler)
	require.Equal(t, []string{"lessc", "{in}", "{out}"}, cfg.Tools.Lessc)
	require.Equal(t, "pagebuilder", cfg.Launcher.Command)
}

func TestLoadExpandsEnvFromDotenv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("PB_LAUNCHER", "")
	require.NoError(t, os.Unsetenv("PB_LAUNCHER"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PB_LAUNCHER=fb\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pagebuilder.yaml"), []byte("launcher:\n  command: ${PB_LAUNCHER}\n"), 0o600))

	cfg, err := Load("pagebuilder.yaml")
	require.NoError(t, err)
	require.Equal(t, "fb", cfg.Launcher.Command)
}

func TestLoadRejectsUnknownLogLevel(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile("pagebuilder.yaml", []byte("logging:\n  level: chatty\n"), 0o600))

	_, err := Load("pagebuilder.yaml")
	require.ErrorContains(t, err, "invalid logging.level")
}

func TestHistoryPath(t *testing.T) {
	cfg := Default()
	require.Equal(t, filepath.Join("/apps", ".pagebuilder", "history.db"), cfg.HistoryPath("/apps"))

	cfg.History.Path = "/var/lib/pb.db"
	require.Equal(t, "/var/lib/pb.db", cfg.HistoryPath("/apps"))
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "pagebuilder.yaml")

	require.NoError(t, Init(path, false))
	require.Error(t, Init(path, false))
	require.NoError(t, Init(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLogLevelSlog(t *testing.T) {
	require.Equal(t, slog.LevelDebug, NormalizeLogLevel("debug").Slog())
	require.Equal(t, slog.LevelWarn, NormalizeLogLevel("WARNING").Slog())
	require.Equal(t, slog.LevelInfo, NormalizeLogLevel("bogus").Slog())
	require.Equal(t, LogFormatText, NormalizeLogFormat(""))
}
