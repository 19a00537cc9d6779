package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `{
	"port": 8080,
	"jwt_secret": "secret",
	"database": {"dsn": "postgres://localhost/assistkb?sslmode=disable"},
	"file_store": {"type": "local", "data": {"dir": "/tmp/files"}},
	"ai": {
		"providers": [{"name": "gemini", "data": {"api_key": "k"}}],
		"embed_model": "text-embedding-004"
	}
}`

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	require.Equal(t, 768, cfg.AI.EmbedDim)
	require.Equal(t, 5, cfg.AI.EmbedBatchSize)
	require.Equal(t, 200, cfg.AI.EmbedDelayMS)
	require.Equal(t, 60, cfg.Extract.MinTextChars)
	require.Equal(t, 0.45, cfg.Extract.MinLetterRatio)
	require.Equal(t, 0.18, cfg.Extract.MinVowelRatio)
	require.Equal(t, 0.45, cfg.Extract.MaxDigitRatio)
	require.Equal(t, 1800, cfg.Chunk.MaxChars)
	require.Equal(t, 60, cfg.Chunk.MinChars)
	require.Equal(t, 0.3, cfg.Retrieval.Threshold)
	require.Equal(t, 0.1, cfg.Retrieval.WideThreshold)
	require.Equal(t, 5, cfg.Retrieval.TopK)
	require.Equal(t, 8, cfg.Retrieval.WideTopK)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, "30 3 * * *", cfg.Jobs.CacheCleanupSpec)
}

func TestLoad_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "missing port", content: `{"jwt_secret":"s","database":{"dsn":"x"},"file_store":{"type":"local"},"ai":{"providers":[{"name":"gemini"}],"embed_model":"m"}}`},
		{name: "missing jwt secret", content: `{"port":1,"database":{"dsn":"x"},"file_store":{"type":"local"},"ai":{"providers":[{"name":"gemini"}],"embed_model":"m"}}`},
		{name: "missing database", content: `{"port":1,"jwt_secret":"s","file_store":{"type":"local"},"ai":{"providers":[{"name":"gemini"}],"embed_model":"m"}}`},
		{name: "missing providers", content: `{"port":1,"jwt_secret":"s","database":{"dsn":"x"},"file_store":{"type":"local"},"ai":{"embed_model":"m"}}`},
		{name: "missing embed model", content: `{"port":1,"jwt_secret":"s","database":{"dsn":"x"},"file_store":{"type":"local"},"ai":{"providers":[{"name":"gemini"}]}}`},
		{name: "missing file store", content: `{"port":1,"jwt_secret":"s","database":{"dsn":"x"},"ai":{"providers":[{"name":"gemini"}],"embed_model":"m"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}
