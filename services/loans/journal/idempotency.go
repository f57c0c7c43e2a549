package journal

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatusPending marks a key whose request is still executing.
const StatusPending = 0

// LookupIdempotency returns the stored record for key, if any.
func (j *Journal) LookupIdempotency(ctx context.Context, key string) (*IdempotencyKey, bool, error) {
	var record IdempotencyKey
	err := j.db.WithContext(ctx).First(&record, "key = ?", strings.TrimSpace(key)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &record, true, nil
}

// ReserveIdempotency claims rec.Key for an in-flight request with a single
// insert. When the key is already claimed it returns false and the stored
// record, which is pending until the first request completes.
func (j *Journal) ReserveIdempotency(ctx context.Context, rec *IdempotencyKey) (bool, *IdempotencyKey, error) {
	if rec == nil || strings.TrimSpace(rec.Key) == "" {
		return false, nil, errors.New("journal: idempotency key required")
	}
	if rec.RequestID == "" {
		rec.RequestID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = j.nowFn().UTC()
	}
	rec.Status = StatusPending
	rec.Response = ""
	res := j.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if res.Error != nil {
		return false, nil, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil, nil
	}
	existing, found, err := j.LookupIdempotency(ctx, rec.Key)
	if err != nil {
		return false, nil, err
	}
	if !found {
		// Released between the insert and the lookup; treat as in flight.
		return false, &IdempotencyKey{Key: rec.Key, Method: rec.Method, Path: rec.Path}, nil
	}
	return false, existing, nil
}

// CompleteIdempotency stores the response served for a reserved key. A
// completed key is never overwritten.
func (j *Journal) CompleteIdempotency(ctx context.Context, key string, status int, response string) error {
	return j.db.WithContext(ctx).
		Model(&IdempotencyKey{}).
		Where("key = ? AND status = ?", key, StatusPending).
		Updates(map[string]interface{}{"status": status, "response": response}).Error
}

// ReleaseIdempotency drops a pending reservation so the key can be retried.
func (j *Journal) ReleaseIdempotency(ctx context.Context, key string) error {
	return j.db.WithContext(ctx).
		Where("key = ? AND status = ?", key, StatusPending).
		Delete(&IdempotencyKey{}).Error
}
