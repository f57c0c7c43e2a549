// Package journal persists committed loan events and idempotent HTTP
// responses in a SQL database through gorm.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"notelend/core/events"
	"notelend/core/types"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultPageSize = 100
	maxPageSize     = 1000
)

var ErrUnknownDriver = errors.New("journal: unknown driver")

// Publisher receives each event once it has a sequence number.
type Publisher interface {
	Publish(seq uint64, evt *types.Event)
}

// Journal records events and idempotency keys.
type Journal struct {
	db        *gorm.DB
	logger    *slog.Logger
	nowFn     func() time.Time
	publisher Publisher
}

// Open connects to the configured database and migrates the schema.
func Open(driver, dsn string, log *slog.Logger) (*Journal, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite, "":
		if strings.TrimSpace(dsn) == "" {
			dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", driver, err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return New(db, log), nil
}

// New wraps an already migrated database handle.
func New(db *gorm.DB, log *slog.Logger) *Journal {
	if log == nil {
		log = slog.Default()
	}
	return &Journal{db: db, logger: log, nowFn: time.Now}
}

// SetPublisher forwards every appended event, tagged with its sequence
// number, to p.
func (j *Journal) SetPublisher(p Publisher) {
	if j == nil {
		return
	}
	j.publisher = p
}

// DB exposes the underlying handle.
func (j *Journal) DB() *gorm.DB {
	return j.db
}

// Close releases the connection pool.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Emit appends evt to the journal. Write failures are logged; the state
// change the event describes has already been committed.
func (j *Journal) Emit(evt events.Event) {
	if j == nil || j.db == nil || evt == nil {
		return
	}
	if err := j.Append(context.Background(), evt); err != nil {
		j.logger.Error("journal append failed", "event", evt.EventType(), "error", err)
	}
}

// Append writes evt, then hands it to the publisher, and returns any
// database error.
func (j *Journal) Append(ctx context.Context, evt events.Event) error {
	flat := events.Flatten(evt)
	attrs, err := json.Marshal(flat.Attributes)
	if err != nil {
		return err
	}
	loanID, _ := strconv.ParseUint(flat.Attr("loanId"), 10, 64)
	record := EventRecord{
		EventID:    uuid.New(),
		LoanID:     loanID,
		Type:       flat.Type,
		Attributes: string(attrs),
		CreatedAt:  j.nowFn().UTC(),
	}
	if err := j.db.WithContext(ctx).Create(&record).Error; err != nil {
		return err
	}
	if j.publisher != nil {
		j.publisher.Publish(record.Seq, flat)
	}
	return nil
}

// Entry is a journaled event with its sequence number.
type Entry struct {
	Seq       uint64       `json:"seq"`
	Event     *types.Event `json:"event"`
	CreatedAt time.Time    `json:"createdAt"`
}

// LoanEvents returns the events recorded for loanID in commit order.
func (j *Journal) LoanEvents(ctx context.Context, loanID uint64, limit int) ([]Entry, error) {
	var records []EventRecord
	err := j.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("seq asc").
		Limit(pageSize(limit)).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return toEntries(records)
}

// Since returns up to limit events with a sequence number above after.
func (j *Journal) Since(ctx context.Context, after uint64, limit int) ([]Entry, error) {
	var records []EventRecord
	err := j.db.WithContext(ctx).
		Where("seq > ?", after).
		Order("seq asc").
		Limit(pageSize(limit)).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return toEntries(records)
}

func pageSize(limit int) int {
	switch {
	case limit <= 0:
		return defaultPageSize
	case limit > maxPageSize:
		return maxPageSize
	default:
		return limit
	}
}

func toEntries(records []EventRecord) ([]Entry, error) {
	out := make([]Entry, 0, len(records))
	for _, rec := range records {
		attrs := map[string]string{}
		if rec.Attributes != "" {
			if err := json.Unmarshal([]byte(rec.Attributes), &attrs); err != nil {
				return nil, fmt.Errorf("journal: decode event %d: %w", rec.Seq, err)
			}
		}
		out = append(out, Entry{
			Seq:       rec.Seq,
			Event:     &types.Event{Type: rec.Type, Attributes: attrs},
			CreatedAt: rec.CreatedAt,
		})
	}
	return out, nil
}
