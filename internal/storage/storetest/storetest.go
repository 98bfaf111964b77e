// Package storetest opens throwaway SQLite databases with the job schema
// for tests outside the storage package.
package storetest

import (
	"testing"

	"github.com/joshu-sajeev/jobtracker/internal/models"
	"github.com/joshu-sajeev/jobtracker/internal/storage/postgres"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns an in-memory database migrated with the job models.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), postgres.GormConfig(logger.Silent))
	require.NoError(t, err)

	// every pooled connection to :memory: would get its own database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, postgres.MigrateModels(db, &models.Job{}, &models.Transaction{}))
	return db
}

// NewRepo returns a repository over a fresh NewDB database.
func NewRepo(t testing.TB) (*postgres.JobRepository, *gorm.DB) {
	t.Helper()
	db := NewDB(t)
	return postgres.NewJobRepository(db), db
}
