package generation

import (
	"context"
	"testing"

	"github.com/Jazys/instagen-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	recorder := NewRecorder(db)
	require.NoError(t, recorder.AutoMigrate())
	return recorder
}

func TestWorkerRecordsSubmittedTasks(t *testing.T) {
	recorder := newTestRecorder(t)
	worker := NewWorker(recorder, 2, 16)

	for i := 0; i < 5; i++ {
		worker.Submit(models.RecordGenerationParams{
			UserID:         "user_1",
			RequestID:      "req_" + string(rune('a'+i)),
			ActionType:     models.ActionGeneration,
			CreditsCharged: 1,
			StatusCode:     200,
			LatencyMs:      120,
		})
	}

	// Stop drains the queue before returning.
	worker.Stop()

	records, err := recorder.GetRecent(context.Background(), "user_1", 10)
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestWorkerDropsAfterStop(t *testing.T) {
	recorder := newTestRecorder(t)
	worker := NewWorker(recorder, 1, 4)
	worker.Stop()

	worker.Submit(models.RecordGenerationParams{
		UserID:    "user_1",
		RequestID: "req_late",
	})

	records, err := recorder.GetRecent(context.Background(), "user_1", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestWorkerStopIsIdempotent(t *testing.T) {
	recorder := newTestRecorder(t)
	worker := NewWorker(recorder, 1, 4)

	worker.Stop()
	worker.Stop()
}
