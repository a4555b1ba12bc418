package database

import (
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"armada/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSourceDB(t *testing.T, dir string) string {
	t.Helper()
	dbPath := filepath.Join(dir, "source.db")
	db, err := sql.Open(DriverSQLite, dbPath)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE test (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)
	require.NoError(t, db.Close())
	return dbPath
}

func TestBackupService(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := newSourceDB(t, tempDir)
	storagePath := filepath.Join(tempDir, "backups")

	logger := zerolog.Nop()
	s := NewBackupService(dbPath, config.BackupConfig{Enabled: true, StoragePath: storagePath, RetentionDays: 1}, &logger)

	t.Run("PerformBackup", func(t *testing.T) {
		path, err := s.PerformBackup(context.Background())
		require.NoError(t, err)
		assert.FileExists(t, path)
	})

	t.Run("CleanupOldBackups", func(t *testing.T) {
		oldFile := filepath.Join(storagePath, "backup_old.db")
		require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
		oldTime := time.Now().AddDate(0, 0, -2)
		require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))

		// foreign files are never touched
		foreign := filepath.Join(storagePath, "notes.txt")
		require.NoError(t, os.WriteFile(foreign, []byte("keep"), 0o644))
		require.NoError(t, os.Chtimes(foreign, oldTime, oldTime))

		assert.Equal(t, 1, s.CleanupOldBackups())
		assert.NoFileExists(t, oldFile)
		assert.FileExists(t, foreign)
	})

	t.Run("Run", func(t *testing.T) {
		before, _ := os.ReadDir(storagePath)
		time.Sleep(5 * time.Millisecond) // distinct timestamp
		s.Run()
		after, _ := os.ReadDir(storagePath)
		assert.Len(t, after, len(before)+1)
	})
}

func TestBackupService_Disabled(t *testing.T) {
	storagePath := filepath.Join(t.TempDir(), "backups")
	logger := zerolog.Nop()
	s := NewBackupService("any", config.BackupConfig{Enabled: false, StoragePath: storagePath}, &logger)

	s.Run()
	assert.NoDirExists(t, storagePath)
}

func TestBackupService_Fallback(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := newSourceDB(t, tempDir)
	logger := zerolog.New(io.Discard)
	s := NewBackupService(dbPath, config.BackupConfig{Enabled: true, StoragePath: tempDir}, &logger)

	backupPath := filepath.Join(tempDir, "fallback_test.db")
	require.NoError(t, s.performBackupFallback(backupPath))
	assert.FileExists(t, backupPath)
}

func TestBackupService_StorageIsAFile(t *testing.T) {
	tmpFile, err := os.CreateTemp(t.TempDir(), "notadir")
	require.NoError(t, err)
	tmpFile.Close()

	logger := zerolog.New(io.Discard)
	bs := NewBackupService(":memory:", config.BackupConfig{Enabled: true, StoragePath: tmpFile.Name() + "/subdir"}, &logger)

	_, err = bs.PerformBackup(context.Background())
	assert.Error(t, err)
}
