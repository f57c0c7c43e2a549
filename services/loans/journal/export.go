package journal

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type parquetRow struct {
	Seq        int64  `parquet:"name=seq, type=INT64"`
	EventID    string `parquet:"name=event_id, type=UTF8, encoding=PLAIN_DICTIONARY"`
	LoanID     int64  `parquet:"name=loan_id, type=INT64"`
	Type       string `parquet:"name=type, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Attributes string `parquet:"name=attributes, type=UTF8, encoding=PLAIN_DICTIONARY"`
	CreatedAt  string `parquet:"name=created_at, type=UTF8, encoding=PLAIN_DICTIONARY"`
}

// ExportParquet writes every event with a sequence number above after to a
// Parquet file at path and returns the number of rows and the last sequence
// written.
func (j *Journal) ExportParquet(ctx context.Context, path string, after uint64) (int, uint64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, after, fmt.Errorf("journal: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		file.Close()
		return 0, after, fmt.Errorf("journal: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	rows := 0
	last := after
	for {
		var records []EventRecord
		err := j.db.WithContext(ctx).
			Where("seq > ?", last).
			Order("seq asc").
			Limit(maxPageSize).
			Find(&records).Error
		if err != nil {
			file.Close()
			return rows, last, err
		}
		for _, rec := range records {
			row := &parquetRow{
				Seq:        int64(rec.Seq),
				EventID:    rec.EventID.String(),
				LoanID:     int64(rec.LoanID),
				Type:       rec.Type,
				Attributes: rec.Attributes,
				CreatedAt:  rec.CreatedAt.UTC().Format(time.RFC3339Nano),
			}
			if err := pw.Write(row); err != nil {
				file.Close()
				return rows, last, fmt.Errorf("journal: write parquet row %d: %w", rec.Seq, err)
			}
			rows++
			last = rec.Seq
		}
		if len(records) < maxPageSize {
			break
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return rows, last, fmt.Errorf("journal: finalize parquet: %w", err)
	}
	if err := file.Close(); err != nil {
		return rows, last, fmt.Errorf("journal: close parquet: %w", err)
	}
	j.logger.Info("journal exported", "path", path, "rows", rows, "last_seq", last)
	return rows, last, nil
}
