package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLoggingWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")
	closer, err := SetupLogging(path, "debug")
	require.NoError(t, err)

	log.Info().Str("object", "pkg.json").Msg("retrieved")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "pkg.json")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestSetupLoggingBadLevelFallsBackToInfo(t *testing.T) {
	closer, err := SetupLogging("", "loud")
	require.NoError(t, err)
	require.NoError(t, closer.Close())
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
