package journal

import (
	"context"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"notelend/core/events"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(DriverSQLite, "", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalRecordsEventsInOrder(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	j.Emit(events.LoanStarted{LoanID: 1, Amount: big.NewInt(10), Currency: "NLD"})
	j.Emit(events.LoanStarted{LoanID: 2, Amount: big.NewInt(20), Currency: "NLD"})
	j.Emit(events.LoanLiquidated{LoanID: 1, Reason: "matured"})

	entries, err := j.LoanEvents(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, events.TypeLoanStarted, entries[0].Event.Type)
	require.Equal(t, "10", entries[0].Event.Attr("amount"))
	require.Equal(t, events.TypeLoanLiquidated, entries[1].Event.Type)
	require.Equal(t, "matured", entries[1].Event.Attr("reason"))
	require.Less(t, entries[0].Seq, entries[1].Seq)

	tail, err := j.Since(ctx, entries[0].Seq, 10)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	require.Equal(t, "2", tail[0].Event.Attr("loanId"))
}

func TestIdempotencyReservation(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	_, found, err := j.LookupIdempotency(ctx, "k-1")
	require.NoError(t, err)
	require.False(t, found)

	reserved, _, err := j.ReserveIdempotency(ctx, &IdempotencyKey{Key: "k-1", Method: http.MethodPost, Path: "/v1/loans"})
	require.NoError(t, err)
	require.True(t, reserved)

	reserved, existing, err := j.ReserveIdempotency(ctx, &IdempotencyKey{Key: "k-1", Method: http.MethodPost, Path: "/v1/loans"})
	require.NoError(t, err)
	require.False(t, reserved)
	require.Equal(t, StatusPending, existing.Status)

	require.NoError(t, j.CompleteIdempotency(ctx, "k-1", 201, `{"loanId":1}`))
	require.NoError(t, j.CompleteIdempotency(ctx, "k-1", 409, `{}`))
	require.NoError(t, j.ReleaseIdempotency(ctx, "k-1"))

	rec, found, err := j.LookupIdempotency(ctx, "k-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 201, rec.Status)
	require.Equal(t, `{"loanId":1}`, rec.Response)
	require.NotEmpty(t, rec.RequestID)

	reserved, _, err = j.ReserveIdempotency(ctx, &IdempotencyKey{Key: "k-2", Method: http.MethodPost, Path: "/v1/loans"})
	require.NoError(t, err)
	require.True(t, reserved)
	require.NoError(t, j.ReleaseIdempotency(ctx, "k-2"))
	reserved, _, err = j.ReserveIdempotency(ctx, &IdempotencyKey{Key: "k-2", Method: http.MethodPost, Path: "/v1/loans"})
	require.NoError(t, err)
	require.True(t, reserved, "released keys can be claimed again")
}

func TestAppendPublishesSequence(t *testing.T) {
	j := openTestJournal(t)
	hub := events.NewHub(4)
	ch, cancel := hub.Subscribe()
	defer cancel()
	j.SetPublisher(hub)

	require.NoError(t, j.Append(context.Background(), events.LoanStarted{LoanID: 4, Amount: big.NewInt(10), Currency: "NLD"}))
	require.NoError(t, j.Append(context.Background(), events.LoanLiquidated{LoanID: 4, Reason: "matured"}))

	first, second := <-ch, <-ch
	require.Equal(t, events.TypeLoanStarted, first.Event.Type)
	require.Equal(t, "4", first.Event.Attr("loanId"))
	require.Equal(t, first.Seq+1, second.Seq)
	require.NotZero(t, first.Seq)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "dsn", nil)
	require.ErrorIs(t, err, ErrUnknownDriver)
}

func TestExportParquetWritesTail(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	j.Emit(events.LoanStarted{LoanID: 1, Amount: big.NewInt(10), Currency: "NLD"})
	j.Emit(events.LoanStarted{LoanID: 2, Amount: big.NewInt(20), Currency: "NLD"})
	j.Emit(events.LoanLiquidated{LoanID: 1, Reason: "matured"})

	entries, err := j.Since(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	path := filepath.Join(t.TempDir(), "events.parquet")
	rows, last, err := j.ExportParquet(ctx, path, entries[0].Seq)
	require.NoError(t, err)
	require.Equal(t, 2, rows)
	require.Equal(t, entries[2].Seq, last)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Positive(t, info.Size())

	rows, last, err = j.ExportParquet(ctx, filepath.Join(t.TempDir(), "empty.parquet"), entries[2].Seq)
	require.NoError(t, err)
	require.Zero(t, rows)
	require.Equal(t, entries[2].Seq, last)
}
