package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeNATS struct {
	msgs  []*nats.Msg
	fails int
	calls int
}

func (f *fakeNATS) PublishMsg(msg *nats.Msg) error {
	f.calls++
	if f.calls <= f.fails {
		return errors.New("nats unavailable")
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

const selectPending = "SELECT id, topic, event_id, event_type, payload, created_at FROM outbox"

func outboxColumns() []string {
	return []string{"id", "topic", "event_id", "event_type", "payload", "created_at"}
}

func TestRelayOncePublishesAndMarks(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	created := time.Now().Add(-time.Second)
	mock.ExpectBegin()
	mock.ExpectQuery(selectPending).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows(outboxColumns()).
			AddRow(int64(1), "cab.trips", "evt-1", "TripBooked", []byte(`{"trip_id":1}`), created).
			AddRow(int64(2), "cab.trips", "evt-2", "TripCanceled", []byte(`{"trip_id":1}`), created))
	mock.ExpectExec("UPDATE outbox SET published = true").
		WithArgs(int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	pub := &fakeNATS{}
	w := NewWorker(db, pub, zap.NewNop(), WorkerConfig{BatchSize: 10})
	n, err := w.RelayOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.Len(t, pub.msgs, 2)
	require.Equal(t, "cab.trips", pub.msgs[0].Subject)
	require.Equal(t, "TripBooked", pub.msgs[0].Header.Get("x-event-type"))
	require.Equal(t, "TripCanceled", pub.msgs[1].Header.Get("x-event-type"))
	require.Equal(t, "evt-1", pub.msgs[0].Header.Get(nats.MsgIdHdr))
	require.Equal(t, "evt-2", pub.msgs[1].Header.Get(nats.MsgIdHdr))
	require.JSONEq(t, `{"trip_id":1}`, string(pub.msgs[0].Data))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelayOnceEmptyBatchCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectBegin()
	mock.ExpectQuery(selectPending).WillReturnRows(sqlmock.NewRows(outboxColumns()))
	mock.ExpectCommit()

	n, err := NewWorker(db, &fakeNATS{}, nil, WorkerConfig{}).RelayOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelayOnceRetriesThenRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectBegin()
	mock.ExpectQuery(selectPending).
		WillReturnRows(sqlmock.NewRows(outboxColumns()).
			AddRow(int64(5), "cab.trips", "evt-5", "TripCompleted", []byte(`{}`), time.Now()))
	mock.ExpectRollback()

	pub := &fakeNATS{fails: 10}
	w := NewWorker(db, pub, zap.NewNop(), WorkerConfig{RetryMax: 2, RetryBackoff: time.Millisecond})
	_, err = w.RelayOnce(context.Background())
	require.Error(t, err)
	require.Equal(t, 2, pub.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelayOnceRecoversFromTransientFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectBegin()
	mock.ExpectQuery(selectPending).
		WillReturnRows(sqlmock.NewRows(outboxColumns()).
			AddRow(int64(9), "cab.trips", "evt-9", "CustomerDeleted", []byte(`{}`), time.Now()))
	mock.ExpectExec("UPDATE outbox SET published = true").
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	pub := &fakeNATS{fails: 1}
	w := NewWorker(db, pub, zap.NewNop(), WorkerConfig{RetryMax: 3, RetryBackoff: time.Millisecond})
	n, err := w.RelayOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 2, pub.calls)
	require.Equal(t, "evt-9", pub.msgs[0].Header.Get(nats.MsgIdHdr))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRequiresDependencies(t *testing.T) {
	w := NewWorker(nil, nil, nil, WorkerConfig{})
	require.Error(t, w.Run(context.Background()))
}
