package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load(nil)
	require.NoError(t, err)
	require.Equal(t, "file", cfg.Storage.Driver)
	require.Equal(t, ".", cfg.Storage.Dir)
	require.Equal(t, "hms_data.json", cfg.Storage.Document)
	require.Equal(t, "clinicdesk.db", cfg.Storage.SQLitePath)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "console", cfg.Log.Format)
	require.Equal(t, "System", cfg.Actor)
	require.Empty(t, cfg.Metrics.Textfile)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	yaml := "storage:\n  driver: sqlite\n  sqlite_path: from-file.db\n  s3:\n    bucket: records\nlog:\n  level: warn\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clinicdesk.yaml"), []byte(yaml), 0o600))
	t.Setenv("CLINICDESK_LOG_LEVEL", "debug")
	t.Setenv("CLINICDESK_STORAGE_S3_PATH_STYLE", "true")
	t.Setenv("CLINICDESK_METRICS_TEXTFILE", "/var/lib/node_exporter/clinicdesk.prom")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--sqlite-path", "from-flag.db", "--actor", "dr.roe"}))

	cfg, err := Load(fs)
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Storage.Driver, "file overrides default")
	require.Equal(t, "from-flag.db", cfg.Storage.SQLitePath, "flag overrides file")
	require.Equal(t, "debug", cfg.Log.Level, "env overrides file")
	require.Equal(t, "records", cfg.Storage.S3.Bucket)
	require.True(t, cfg.Storage.S3.PathStyle)
	require.Equal(t, "dr.roe", cfg.Actor)
	require.Equal(t, "console", cfg.Log.Format)
	require.Equal(t, "/var/lib/node_exporter/clinicdesk.prom", cfg.Metrics.Textfile)
}

func TestLoadExplicitConfigFile(t *testing.T) {
	chdir(t, t.TempDir())
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}))
	_, err := Load(fs)
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: memory\n"), 0o600))
	fs = pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", path}))
	cfg, err := Load(fs)
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.Storage.Driver)
}
