package logging

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gluk-w/sshagent/internal/config"
)

func withConfig(t *testing.T, s config.Settings) {
	t.Helper()
	prev := config.Cfg
	config.Cfg = s
	t.Cleanup(func() {
		Close()
		config.Cfg = prev
	})
}

func TestInit_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "agent.log")
	withConfig(t, config.Settings{LogPath: path, LogLevel: "debug", LogFormat: FormatJSON})

	require.NoError(t, Init())
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	log.WithField("component", "test").Info("hello file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello file"`)
	assert.Contains(t, string(data), `"component":"test"`)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestInit_InvalidSettings(t *testing.T) {
	withConfig(t, config.Settings{LogLevel: "loud", LogFormat: FormatText})
	assert.ErrorContains(t, Init(), "unknown log level: loud")

	withConfig(t, config.Settings{LogLevel: LevelInfo, LogFormat: "xml"})
	assert.ErrorContains(t, Init(), "unknown log format: xml")
}

func TestConfigure(t *testing.T) {
	l := log.New()
	for _, lvl := range Levels {
		require.NoError(t, Configure(l, lvl, FormatText), lvl)
		want, err := log.ParseLevel(lvl)
		require.NoError(t, err)
		assert.Equal(t, want, l.GetLevel())
	}
	require.NoError(t, Configure(l, LevelWarn, FormatJSON))
	assert.IsType(t, &log.JSONFormatter{}, l.Formatter)
}

func TestTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.log")
	withConfig(t, config.Settings{LogPath: path, LogLevel: LevelInfo, LogFormat: FormatText})
	require.NoError(t, Init())

	lines, err := Tail(5)
	require.NoError(t, err)
	assert.Empty(t, lines)

	for _, msg := range []string{"one", "two", "three", "four"} {
		log.Info(msg)
	}

	lines, err = Tail(2)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "three")
	assert.Contains(t, lines[1], "four")

	lines, err = Tail(10)
	require.NoError(t, err)
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "one")

	lines, err = Tail(0)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestTail_NoLogFile(t *testing.T) {
	withConfig(t, config.Settings{LogLevel: LevelInfo, LogFormat: FormatText})
	require.NoError(t, Init())

	_, err := Tail(10)
	assert.ErrorIs(t, err, ErrNoLogFile)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "alice@laptop", "alice@laptop"},
		{"newlines", "a\nb\r\nc", "a b  c"},
		{"tab", "a\tb", "a b"},
		{"control", "a\x00b\x1bc\x7f", "abc"},
		{"unicode", "clé 🔑", "clé 🔑"},
		{"forged entry", "x\nlevel=error msg=owned", "x level=error msg=owned"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}
