package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	BaseUrl     string `json:"base_url"`
	MaxAttempts int    `json:"max_attempts"`
	Label       string `json:"label"`
}

func writeFile(t testing.TB, path, contents string) {
	t.Helper()
	err := os.WriteFile(path, []byte(contents), 0600)
	if err != nil {
		t.Fatal(err)
	}
}

func TestReadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.json5"), `{
		// comments are allowed
		base_url: "https://www.hamqth.com",
		max_attempts: 3,
	}`)
	writeFile(t, filepath.Join(dir, "app.local.json5"), `{max_attempts: 5}`)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "app.json5"))
	require.NoError(t, err)
	require.Equal(t, "https://www.hamqth.com", cfg.BaseUrl)
	require.Equal(t, 5, cfg.MaxAttempts)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "app.json5"))
	require.True(t, os.IsNotExist(err))
}

func TestReadConfigOnlyLocal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.local.json5"), `{label: "local"}`)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "app.json5"))
	require.NoError(t, err)
	require.Equal(t, "local", cfg.Label)
}

func TestReadRecursively(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0700))
	writeFile(t, filepath.Join(root, "found.json5"), `{label: "root"}`)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	defer os.Chdir(wd)

	cfg, err := ReadRecursively[testConfig]("found.json5")
	require.NoError(t, err)
	require.Equal(t, "root", cfg.Label)
}

func TestWithDefaults(t *testing.T) {
	cfg, err := WithDefaults(
		testConfig{Label: "mine"},
		testConfig{Label: "default", MaxAttempts: 3},
	)
	require.NoError(t, err)
	require.Equal(t, testConfig{Label: "mine", MaxAttempts: 3}, cfg)
}

type switchConfig struct {
	Enabled *bool  `json:"enabled"`
	Name    string `json:"name"`
}

func TestWithDefaultsKeepsSetPointers(t *testing.T) {
	on := true
	off := false

	cfg, err := WithDefaults(switchConfig{Enabled: &off}, switchConfig{Enabled: &on, Name: "default"})
	require.NoError(t, err)
	require.False(t, *cfg.Enabled)
	require.Equal(t, "default", cfg.Name)

	cfg, err = WithDefaults(switchConfig{}, switchConfig{Enabled: &on})
	require.NoError(t, err)
	require.True(t, *cfg.Enabled)
}
