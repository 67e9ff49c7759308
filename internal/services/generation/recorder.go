package generation

import (
	"context"
	"fmt"

	"github.com/Jazys/instagen-sub000/internal/models"
	"gorm.io/gorm"
)

// Recorder persists generation telemetry. It is deliberately separate from
// the credit ledger: telemetry is best-effort and written off the hot path,
// the ledger is transactional.
type Recorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) AutoMigrate() error {
	return r.db.AutoMigrate(&models.GenerationRecord{})
}

func (r *Recorder) Record(ctx context.Context, params models.RecordGenerationParams) (*models.GenerationRecord, error) {
	record := models.GenerationRecord{
		UserID:         params.UserID,
		RequestID:      params.RequestID,
		ActionType:     params.ActionType,
		CreditsCharged: params.CreditsCharged,
		StatusCode:     params.StatusCode,
		LatencyMs:      params.LatencyMs,
		ErrorMessage:   params.ErrorMessage,
	}

	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to record generation: %w", err)
	}

	return &record, nil
}

// GetRecent returns the user's latest generation records, newest first.
func (r *Recorder) GetRecent(ctx context.Context, userID string, limit int) ([]models.GenerationRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	var records []models.GenerationRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get generation records: %w", err)
	}
	return records, nil
}
