package models

import "time"

// GenerationRecord captures telemetry for each image-generation request.
// It is written off the hot path by the recording worker and is separate
// from the credit ledger, which stays transactional.
type GenerationRecord struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         string    `gorm:"not null;index;size:255" json:"user_id"`
	RequestID      string    `gorm:"size:100;index;default:''" json:"request_id,omitzero"`
	ActionType     string    `gorm:"size:100;default:''" json:"action_type"`
	CreditsCharged int64     `gorm:"default:0" json:"credits_charged"`
	StatusCode     int       `gorm:"default:0" json:"status_code"`
	LatencyMs      int       `gorm:"default:0" json:"latency_ms"`
	ErrorMessage   string    `gorm:"type:text;default:''" json:"error_message,omitzero"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

func (GenerationRecord) TableName() string {
	return "generation_records"
}

// RecordGenerationParams carries telemetry fields into the worker pool.
type RecordGenerationParams struct {
	UserID         string
	RequestID      string
	ActionType     string
	CreditsCharged int64
	StatusCode     int
	LatencyMs      int
	ErrorMessage   string
}

// GenerateRequest is the payload forwarded to the external image model.
type GenerateRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	ActionType     string `json:"action_type,omitempty"`
	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
	Seed           int64  `json:"seed,omitempty"`
}

// GenerateResponse is the opaque result relayed back to the client, plus
// the caller's remaining balance.
type GenerateResponse struct {
	RequestID        string `json:"request_id"`
	ImageURL         string `json:"image_url,omitempty"`
	ImageBase64      string `json:"image_base64,omitempty"`
	CreditsRemaining int64  `json:"credits_remaining"`
}
