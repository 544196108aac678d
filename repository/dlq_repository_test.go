package repository

import (
	"context"
	"testing"
	"time"

	apperrors "exam-portal/errors"

	"github.com/DATA-DOG/go-sqlmock"
)

const (
	msgID     = "3f2b8c1e-6d4a-4f7e-9c2a-1b5d8e7f6a90"
	missingID = "00000000-0000-4000-8000-000000000000"
)

func newDLQMock(t *testing.T) (*DLQRepository, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewDLQRepository(conn), mock
}

func TestStoreDLQMessage(t *testing.T) {
	repo, mock := newDLQMock(t)

	mock.ExpectExec(`INSERT INTO dlq_messages`).
		WithArgs(sqlmock.AnyArg(), "payments", "registration-r1", `"not json"`, "broker down").
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := repo.StoreDLQMessage(context.Background(), "payments", "registration-r1", []byte("not json"), "broker down")
	if err != nil || id == "" {
		t.Fatalf("unexpected %q %v", id, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetDLQMessages(t *testing.T) {
	repo, mock := newDLQMock(t)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .* FROM dlq_messages WHERE resolved_at IS NULL`).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"message_id", "topic", "key", "value", "error_message", "created_at"}).
			AddRow("m1", "payments", "registration-r1", `{"event":"payment.verified"}`, "smtp down", created))

	msgs, err := repo.GetDLQMessages(context.Background(), 10)
	if err != nil || len(msgs) != 1 || msgs[0].MessageID != "m1" {
		t.Fatalf("unexpected %+v %v", msgs, err)
	}
}

func TestGetDLQMessageNotFound(t *testing.T) {
	repo, mock := newDLQMock(t)
	mock.ExpectQuery(`FROM dlq_messages WHERE message_id = \$1`).
		WithArgs(missingID).
		WillReturnRows(sqlmock.NewRows([]string{"message_id", "topic", "key", "value", "error_message", "created_at", "resolved_at"}))

	if _, err := repo.GetDLQMessage(context.Background(), missingID); apperrors.KindOf(err) != apperrors.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestResolveDLQMessage(t *testing.T) {
	repo, mock := newDLQMock(t)

	mock.ExpectExec(`UPDATE dlq_messages SET resolved_at = NOW\(\), notes = \$2`).
		WithArgs(msgID, "fixed").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE dlq_messages`).
		WithArgs(msgID, "again").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.ResolveDLQMessage(context.Background(), msgID, "fixed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.ResolveDLQMessage(context.Background(), msgID, "again"); apperrors.KindOf(err) != apperrors.NotFound {
		t.Fatalf("expected NotFound for resolved message, got %v", err)
	}
}

func TestDLQMessageMalformedID(t *testing.T) {
	repo, mock := newDLQMock(t)

	if _, err := repo.GetDLQMessage(context.Background(), "m1"); apperrors.KindOf(err) != apperrors.NotFound {
		t.Fatalf("get: expected NotFound, got %v", err)
	}
	if err := repo.ResolveDLQMessage(context.Background(), "m1", "x"); apperrors.KindOf(err) != apperrors.NotFound {
		t.Fatalf("resolve: expected NotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no query expected for malformed ids: %v", err)
	}
}
