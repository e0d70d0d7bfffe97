package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
storage:
  type: local
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, 4, cfg.Clustering.WorkerCount)
	assert.Equal(t, 2048, cfg.Clustering.BlockSize)
	assert.Equal(t, 0.95, cfg.Clustering.PctTarget)
}

func TestLoad_CustomValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
clustering:
  sort_key: 2
  first_cutoff: 4.0
  last_cutoff: 20.0
  step: 2.0
  pct_target: 0.9
  block_size: 4096
  worker_count: 8
database:
  type: postgres
  host: db.example.com
  port: 5432
  database: dclust
  user: admin
  password: secret
storage:
  type: local
  local_path: /tmp/storage
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Clustering.SortKey)
	assert.Equal(t, 4096, cfg.Clustering.BlockSize)
	assert.Equal(t, 8, cfg.Clustering.WorkerCount)
	assert.Equal(t, "db.example.com", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "dclust", cfg.Database.Database)
}

func TestLoad_InvalidDatabaseType(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
database:
  type: oracle
storage:
  type: local
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	_, err = Load(configFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}

func TestLoad_COSWithCredentials(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
storage:
  type: cos
  bucket: test-bucket
  region: ap-guangzhou
  secret_id: test-id
  secret_key: test-key
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)
	assert.Equal(t, "cos", cfg.Storage.Type)
	assert.Equal(t, "test-bucket", cfg.Storage.Bucket)
}

func TestValidate_RemoteDatabaseRequiresHost(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{
			Type: "postgres",
			Host: "",
		},
		Storage:    StorageConfig{Type: "local"},
		Clustering: ClusteringConfig{WorkerCount: 1},
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database host is required")
}

func TestValidate_SqliteNeedsNoHost(t *testing.T) {
	cfg := &Config{
		Database:   DatabaseConfig{Type: "sqlite"},
		Storage:    StorageConfig{Type: "local"},
		Clustering: ClusteringConfig{WorkerCount: 1},
	}

	assert.NoError(t, cfg.Validate())
}

func TestValidate_InvalidWorkerCount(t *testing.T) {
	cfg := &Config{
		Database:   DatabaseConfig{Type: "sqlite"},
		Storage:    StorageConfig{Type: "local"},
		Clustering: ClusteringConfig{WorkerCount: 0},
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "worker count must be at least 1")
}

func TestValidate_NegativeStep(t *testing.T) {
	cfg := &Config{
		Database:   DatabaseConfig{Type: "sqlite"},
		Storage:    StorageConfig{Type: "local"},
		Clustering: ClusteringConfig{WorkerCount: 1, Step: -1},
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "step must be non-negative")
}

func TestEnsureStorageDir(t *testing.T) {
	dir := t.TempDir()
	storageDir := filepath.Join(dir, "run", "output")

	cfg := &Config{
		Storage: StorageConfig{LocalPath: storageDir},
	}

	err := cfg.EnsureStorageDir()
	require.NoError(t, err)

	_, err = os.Stat(storageDir)
	assert.NoError(t, err)
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestLoadFromReader(t *testing.T) {
	content := []byte(`
database:
  type: mysql
  host: mysql.local
storage:
  type: local
`)
	cfg, err := LoadFromReader("yaml", content)
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Type)
	assert.Equal(t, "mysql.local", cfg.Database.Host)
}
