package postgres

import (
	"testing"

	"github.com/joshu-sajeev/jobtracker/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), GormConfig(logger.Silent)) // Disable logs during tests
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = MigrateModels(db, &models.Job{}, &models.Transaction{})
	require.NoError(t, err)

	return db
}

func seedJob(t *testing.T, db *gorm.DB, customID, status string) *models.Job {
	t.Helper()
	j := &models.Job{CustomID: customID, Status: status}
	require.NoError(t, db.Create(j).Error)
	return j
}
