package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, SourceEmbedded, cfg.Corpus.Source)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  port: 9000
  readTimeout: 3s
corpus:
  source: dir
  dir: /srv/corpus
search:
  defaultLimit: 10
  stemming: true
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("SP_SERVER_PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "/srv/corpus", cfg.Corpus.Dir)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.True(t, cfg.Search.Stemming)
	assert.Equal(t, 100, cfg.Search.MaxResults)
}

func TestLoadRejectsBadCorpusSource(t *testing.T) {
	t.Setenv("SP_CORPUS_SOURCE", "s3")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadDirSourceNeedsDir(t *testing.T) {
	t.Setenv("SP_CORPUS_SOURCE", SourceDir)
	_, err := Load("")
	assert.ErrorContains(t, err, "corpus.dir")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadServerListsFromEnv(t *testing.T) {
	t.Setenv("SP_SERVER_CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("SP_ADMIN_API_KEYS", "k1,k2")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Server.AdminKeys)
}
