package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/engine/config"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/tonemap"
	"github.com/Carmen-Shannon/oxy-cluster/engine/screenshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagsOverrideOnlyWhenSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cluster.toml")
	require.NoError(t, os.WriteFile(path, []byte("[renderer]\npath = \"deferred\"\n[lights]\ncount = 32\n"), 0o644))

	o, err := parseFlags([]string{"--config", path, "--lights", "8", "--tonemap", "reinhard"})
	require.NoError(t, err)
	cfg, err := loadConfig(o)
	require.NoError(t, err)

	assert.Equal(t, renderer.RenderPathDeferred, cfg.Renderer.Path, "file value kept when the flag is unset")
	assert.Equal(t, 8, cfg.Lights.Count)
	assert.Equal(t, tonemap.ModeReinhard, cfg.Renderer.ToneMapping)
	assert.Equal(t, config.DefaultMaxLights, cfg.Lights.Max)
}

func TestInvalidFlagValues(t *testing.T) {
	for _, args := range [][]string{
		{"--path", "raytraced"},
		{"--tonemap", "filmic"},
		{"--screenshot-format", "gif"},
		{"--lights", "5000"},
	} {
		o, err := parseFlags(args)
		require.NoError(t, err)
		_, err = loadConfig(o)
		assert.Error(t, err, args)
	}
}

func TestHeadlessScreenshotRun(t *testing.T) {
	dir := t.TempDir()
	code := run([]string{
		"--headless", "--frames", "4", "--screenshot",
		"--width", "64", "--height", "36",
		"--lights", "3", "--path", "forward",
		"--screenshot-dir", dir, "--screenshot-format", "bmp",
		"--log-file", "", "--log-level", "warn",
	})
	require.Equal(t, 0, code)

	files, err := filepath.Glob(filepath.Join(dir, "*"+screenshot.FormatBMP.Extension()))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestWriteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.toml")
	require.Equal(t, 0, run([]string{"--write-config", path, "--path", "forward", "--moving"}))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, renderer.RenderPathForward, cfg.Renderer.Path)
	assert.True(t, cfg.Lights.Moving)
}
