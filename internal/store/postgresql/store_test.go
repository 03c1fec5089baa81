package postgresql

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/loykin/mongorun/internal/store/connector"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	st, err := NewWithDB(db, "")
	if err != nil {
		t.Fatalf("NewWithDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return st, mock
}

func TestConfig_ConnString(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{"explicit dsn", Config{DSN: " postgres://u:p@h/db "}, "postgres://u:p@h/db", false},
		{"components with defaults", Config{Host: "db", User: "app", Password: "pw", DBName: "hist"}, "postgres://app:pw@db:5432/hist?sslmode=disable", false},
		{"escaped password", Config{Host: "db", Port: 6543, User: "app", Password: "p@ss", DBName: "hist", SSLMode: "require"}, "postgres://app:p%40ss@db:6543/hist?sslmode=require", false},
		{"missing host", Config{User: "app"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.ConnString()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ConnString() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ConnString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStore_EnsureIndex(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS flyway_script_histories")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS idx_flyway_script_histories_collection ON flyway_script_histories(collection)")).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := st.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStore_EnsureIndexError(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))
	if err := st.EnsureIndex(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestStore_HasSucceeded(t *testing.T) {
	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		err     error
		want    bool
		wantErr bool
	}{
		{"success", sqlmock.NewRows([]string{"is_success"}).AddRow(true), nil, true, false},
		{"failed attempt", sqlmock.NewRows([]string{"is_success"}).AddRow(false), nil, false, false},
		{"no record", sqlmock.NewRows([]string{"is_success"}), nil, false, false},
		{"query error", nil, errors.New("conn reset"), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, mock := newMock(t)
			q := mock.ExpectQuery(regexp.QuoteMeta("SELECT is_success FROM flyway_script_histories WHERE id = $1")).WithArgs("items_T_s")
			if tt.err != nil {
				q.WillReturnError(tt.err)
			} else {
				q.WillReturnRows(tt.rows)
			}
			got, err := st.HasSucceeded(context.Background(), "items_T_s")
			if (err != nil) != tt.wantErr {
				t.Fatalf("HasSucceeded() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("HasSucceeded() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStore_RecordUpserts(t *testing.T) {
	st, mock := newMock(t)
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	st.now = func() time.Time { return at }

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO flyway_script_histories(id, collection, ticket, description, is_success, elapsed_time, created_time) VALUES($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO UPDATE")).
		WithArgs("items_T_s", "items", "T", "desc", true, int64(15), at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := connector.Record{ID: "items_T_s", Collection: "items", Ticket: "T", Description: "desc", IsSuccess: true, ElapsedTime: 15}
	if err := st.Record(context.Background(), rec); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStore_RecordError(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectExec("INSERT INTO").WillReturnError(errors.New("disk full"))
	err := st.Record(context.Background(), connector.Record{ID: "x"})
	if err == nil || !regexp.MustCompile(`failed to write history record x`).MatchString(err.Error()) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStore_ListBuildsFilter(t *testing.T) {
	st, mock := newMock(t)
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	cols := []string{"id", "collection", "ticket", "description", "is_success", "elapsed_time", "created_time"}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+columns+" FROM flyway_script_histories WHERE collection = $1 AND is_success = $2 ORDER BY created_time ASC, id ASC")).
		WithArgs("items", false).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("items_T_s", "items", "T", "d", false, int64(3), at))

	got, err := st.List(context.Background(), connector.Filter{Collection: "items", FailedOnly: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].ID != "items_T_s" || got[0].IsSuccess || !got[0].CreatedTime.Equal(at) {
		t.Fatalf("unexpected records: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStore_GetMissing(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectQuery("SELECT").WithArgs("nope").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, found, err := st.Get(context.Background(), "nope")
	if err != nil || found {
		t.Fatalf("Get(missing) = %v, %v", found, err)
	}
}

func TestStore_MissingTableReadsAsEmpty(t *testing.T) {
	st, mock := newMock(t)
	missing := &pgconn.PgError{Code: "42P01", Message: `relation "flyway_script_histories" does not exist`}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT is_success FROM flyway_script_histories")).WillReturnError(missing)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, collection")).WillReturnError(missing)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, collection")).WillReturnError(errors.New("connection reset"))

	ctx := context.Background()
	if done, err := st.HasSucceeded(ctx, "items_T_a"); err != nil || done {
		t.Fatalf("HasSucceeded = %v, %v", done, err)
	}
	if recs, err := st.List(ctx, connector.Filter{}); err != nil || len(recs) != 0 {
		t.Fatalf("List = %v, %v", recs, err)
	}
	if _, err := st.List(ctx, connector.Filter{}); err == nil {
		t.Fatal("other errors must surface")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
