package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Row ---

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

// taskMockRows implements pgx.Rows for the tasks-table SELECT column set:
// (id, user_id, title, status, due_date, notifications, recurrence,
// overdue_sticky, overdue_at, created_at, updated_at)
type taskMockRows struct {
	data    []taskRowData
	idx     int
	closed  bool
	scanErr error
	errVal  error
}

type taskRowData struct {
	id            string
	userID        string
	title         string
	status        string
	dueDate       *time.Time
	notifications []byte
	recurrence    []byte
	overdueSticky bool
	overdueAt     *time.Time
	createdAt     time.Time
	updatedAt     time.Time
}

func (r *taskMockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx <= len(r.data)
}

func (r *taskMockRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row := r.data[r.idx-1]
	*dest[0].(*string) = row.id
	*dest[1].(*string) = row.userID
	*dest[2].(*string) = row.title
	*dest[3].(*string) = row.status
	*dest[4].(**time.Time) = row.dueDate
	*dest[5].(*[]byte) = row.notifications
	*dest[6].(*[]byte) = row.recurrence
	*dest[7].(*bool) = row.overdueSticky
	*dest[8].(**time.Time) = row.overdueAt
	*dest[9].(*time.Time) = row.createdAt
	*dest[10].(*time.Time) = row.updatedAt
	return nil
}

func (r *taskMockRows) Close()                                        { r.closed = true }
func (r *taskMockRows) Err() error                                    { return r.errVal }
func (r *taskMockRows) CommandTag() pgconn.CommandTag                 { return pgconn.CommandTag{} }
func (r *taskMockRows) FieldDescriptions() []pgconn.FieldDescription  { return nil }
func (r *taskMockRows) RawValues() [][]byte                           { return nil }
func (r *taskMockRows) Values() ([]any, error)                        { return nil, nil }
func (r *taskMockRows) Conn() *pgx.Conn                               { return nil }

// docMockRows implements pgx.Rows for the user_task_docs SELECT:
// (user_id, doc)
type docMockRows struct {
	data   []docRowData
	idx    int
	closed bool
	errVal error
}

type docRowData struct {
	userID string
	doc    []byte
}

func (r *docMockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx <= len(r.data)
}

func (r *docMockRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	*dest[0].(*string) = row.userID
	*dest[1].(*[]byte) = row.doc
	return nil
}

func (r *docMockRows) Close()                                        { r.closed = true }
func (r *docMockRows) Err() error                                    { return r.errVal }
func (r *docMockRows) CommandTag() pgconn.CommandTag                 { return pgconn.CommandTag{} }
func (r *docMockRows) FieldDescriptions() []pgconn.FieldDescription  { return nil }
func (r *docMockRows) RawValues() [][]byte                           { return nil }
func (r *docMockRows) Values() ([]any, error)                        { return nil, nil }
func (r *docMockRows) Conn() *pgx.Conn                               { return nil }

// ledgerMockRows implements pgx.Rows for the notification_ledger SELECT:
// (key, sent_at, expires_at)
type ledgerMockRows struct {
	data   []ledgerRowData
	idx    int
	closed bool
	errVal error
}

type ledgerRowData struct {
	key       string
	sentAt    time.Time
	expiresAt time.Time
}

func (r *ledgerMockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx <= len(r.data)
}

func (r *ledgerMockRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	*dest[0].(*string) = row.key
	*dest[1].(*time.Time) = row.sentAt
	*dest[2].(*time.Time) = row.expiresAt
	return nil
}

func (r *ledgerMockRows) Close()                                        { r.closed = true }
func (r *ledgerMockRows) Err() error                                    { return r.errVal }
func (r *ledgerMockRows) CommandTag() pgconn.CommandTag                 { return pgconn.CommandTag{} }
func (r *ledgerMockRows) FieldDescriptions() []pgconn.FieldDescription  { return nil }
func (r *ledgerMockRows) RawValues() [][]byte                           { return nil }
func (r *ledgerMockRows) Values() ([]any, error)                        { return nil, nil }
func (r *ledgerMockRows) Conn() *pgx.Conn                               { return nil }

// tokenMockRows implements pgx.Rows for the device_tokens SELECT:
// (token, user_id, platform, created_at)
type tokenMockRows struct {
	data   []tokenRowData
	idx    int
	closed bool
	errVal error
}

type tokenRowData struct {
	token     string
	userID    string
	platform  string
	createdAt time.Time
}

func (r *tokenMockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx <= len(r.data)
}

func (r *tokenMockRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	*dest[0].(*string) = row.token
	*dest[1].(*string) = row.userID
	*dest[2].(*string) = row.platform
	*dest[3].(*time.Time) = row.createdAt
	return nil
}

func (r *tokenMockRows) Close()                                        { r.closed = true }
func (r *tokenMockRows) Err() error                                    { return r.errVal }
func (r *tokenMockRows) CommandTag() pgconn.CommandTag                 { return pgconn.CommandTag{} }
func (r *tokenMockRows) FieldDescriptions() []pgconn.FieldDescription  { return nil }
func (r *tokenMockRows) RawValues() [][]byte                           { return nil }
func (r *tokenMockRows) Values() ([]any, error)                        { return nil, nil }
func (r *tokenMockRows) Conn() *pgx.Conn                               { return nil }
