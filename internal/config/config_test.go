package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mdouchement/uploadstore/internal/model"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load([]string{t.TempDir()}, nil)
	require.NoError(t, err)

	assert.Equal(t, "uploadstore.db", c.DatabasePath)
	assert.Equal(t, "uploads", c.Bucket)
	assert.Equal(t, int64(model.DefaultChunkSize), c.ChunkSize)
	assert.Equal(t, "0.0.0.0:5000", c.Listen())
	assert.Equal(t, 24*time.Hour, c.PendingGrace)
	assert.Equal(t, "info", c.LogLevel)
	assert.False(t, c.DumpRequests)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, Name+".yaml"), []byte("chunk_size: 1024\npending_grace: 1h\nport: \"6000\"\n"), 0644)
	require.NoError(t, err)

	c, err := Load([]string{dir}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), c.ChunkSize)
	assert.Equal(t, time.Hour, c.PendingGrace)
	assert.Equal(t, "6000", c.Port)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "2048")
	t.Setenv("DATABASE_PATH", "/tmp/other.db")

	c, err := Load([]string{t.TempDir()}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2048), c.ChunkSize)
	assert.Equal(t, "/tmp/other.db", c.DatabaseFile())
}

func TestLoad_Flags(t *testing.T) {
	t.Setenv("PORT", "7000")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("port", "5000", "")
	require.NoError(t, flags.Parse([]string{"--port", "8000"}))

	c, err := Load([]string{t.TempDir()}, flags)
	require.NoError(t, err)
	assert.Equal(t, "8000", c.Port)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "0")

	_, err := Load([]string{t.TempDir()}, nil)
	assert.Error(t, err)
}
