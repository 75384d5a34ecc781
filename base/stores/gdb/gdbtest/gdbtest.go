// Package gdbtest opens throwaway sqlite databases with the service schema.
package gdbtest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/locey/TaskAVS/base/stores/gdb"
)

func Open(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gdb.NewDB(&gdb.Config{
		Driver:       "sqlite",
		Dsn:          filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	require.NoError(t, gdb.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
