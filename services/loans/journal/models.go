package journal

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRecord is one committed loan event. Seq orders records globally.
type EventRecord struct {
	Seq        uint64    `gorm:"primaryKey;autoIncrement"`
	EventID    uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	LoanID     uint64    `gorm:"index"`
	Type       string    `gorm:"size:64;index"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time
}

// IdempotencyKey stores the first response served for an Idempotency-Key.
type IdempotencyKey struct {
	Key       string `gorm:"primaryKey;size:128"`
	Caller    string `gorm:"size:64;index"`
	RequestID string `gorm:"size:64"`
	Method    string `gorm:"size:8"`
	Path      string `gorm:"size:255"`
	Status    int
	Response  string `gorm:"type:text"`
	CreatedAt time.Time
}

// AutoMigrate performs the journal schema migrations.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRecord{}, &IdempotencyKey{})
}
