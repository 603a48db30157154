package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookEvent is the append-only audit log of inbound gateway events. Events
// are recorded unconditionally, including duplicates and orphans (rows whose
// reference matched no transaction).
type WebhookEvent struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TransactionID *uuid.UUID      `gorm:"column:transaction_id;type:uuid;index"`
	Reference     string          `gorm:"column:reference;not null;index"`
	EventType     string          `gorm:"column:event_type;not null"`
	Payload       json.RawMessage `gorm:"column:payload;type:jsonb"`
	Orphan        bool            `gorm:"column:orphan;not null;default:false"`
	ReceivedAt    time.Time       `gorm:"column:received_at;autoCreateTime"`
}
