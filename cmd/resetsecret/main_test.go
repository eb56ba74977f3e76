package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetSecretKeepsOtherValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=9000\nSESSION_SECRET=old\n"), 0o600))

	require.NoError(t, resetSecret(path))

	env, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", env["PORT"])
	assert.NotEqual(t, "old", env["SESSION_SECRET"])
	assert.Len(t, env["SESSION_SECRET"], 2*secretBytes)
}

func TestResetSecretCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")

	require.NoError(t, resetSecret(path))

	env, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "development", env["ENV"])
	assert.NotEmpty(t, env["SESSION_SECRET"])
}
