package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bubbletasks/internal/types"
)

func TestTaskRepository_ListActiveForAllUsers_GroupsByUser(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewTaskRepository(dbx)

	due := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	rows := &taskMockRows{data: []taskRowData{
		{
			id: "t1", userID: "u1", title: "pay rent", status: "active",
			dueDate:       &due,
			notifications: []byte(`["15m", 60]`),
			createdAt:     due.AddDate(0, -1, 0),
			updatedAt:     due.AddDate(0, -1, 0),
		},
		{
			id: "t2", userID: "u1", title: "water plants", status: "active",
			recurrence: []byte(`{"every":1,"unit":"days"}`),
			createdAt:  due.AddDate(0, -1, 0),
			updatedAt:  due.AddDate(0, -1, 0),
		},
		{
			id: "t3", userID: "u2", title: "standup notes", status: "active",
			dueDate:   &due,
			createdAt: due.AddDate(0, -1, 0),
			updatedAt: due.AddDate(0, -1, 0),
		},
	}}

	dbx.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(rows, nil)

	byUser, err := repo.ListActiveForAllUsers(context.Background())
	require.NoError(t, err)

	require.Len(t, byUser, 2)
	require.Len(t, byUser["u1"], 2)
	require.Len(t, byUser["u2"], 1)

	t1 := byUser["u1"][0]
	assert.Equal(t, "pay rent", t1.Title)
	require.Len(t, t1.Notifications, 2)
	assert.Equal(t, types.OffsetPreset, t1.Notifications[0].Kind)
	assert.Equal(t, types.OffsetMinutes, t1.Notifications[1].Kind)

	t2 := byUser["u1"][1]
	require.NotNil(t, t2.Recurrence)
	assert.Equal(t, types.RecurDays, t2.Recurrence.Unit)
	assert.Nil(t, t2.DueDate)

	dbx.AssertExpectations(t)
}

func TestTaskRepository_ListActiveForAllUsers_QueryError(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewTaskRepository(dbx)

	dbx.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(nil, errors.New("connection refused"))

	_, err := repo.ListActiveForAllUsers(context.Background())
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestTaskRepository_ListActiveForAllUsers_MalformedJSONBDegrades(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewTaskRepository(dbx)

	due := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	rows := &taskMockRows{data: []taskRowData{
		{
			id: "t1", userID: "u1", title: "broken offsets", status: "active",
			dueDate:       &due,
			notifications: []byte(`{not json`),
			recurrence:    []byte(`"also broken"`),
		},
	}}

	dbx.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(rows, nil)

	byUser, err := repo.ListActiveForAllUsers(context.Background())
	require.NoError(t, err)

	task := byUser["u1"][0]
	assert.Empty(t, task.Notifications)
	assert.Nil(t, task.Recurrence)
}

func TestTaskRepository_HasTasks(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewTaskRepository(dbx)

	dbx.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: func(dest ...any) error {
			*dest[0].(*bool) = true
			return nil
		}})

	exists, err := repo.HasTasks(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestTaskRepository_UpdateDueDate_Success(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewTaskRepository(dbx)

	dbx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := repo.UpdateDueDate(context.Background(), "u1", "t1",
		time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	dbx.AssertExpectations(t)
}

func TestTaskRepository_UpdateDueDate_NotFound(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewTaskRepository(dbx)

	dbx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.UpdateDueDate(context.Background(), "u1", "missing",
		time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC))
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundTask, appErr.Code)
}

func TestTaskRepository_MarkOverdue_Success(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewTaskRepository(dbx)

	dbx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := repo.MarkOverdue(context.Background(), "u1", "t1",
		time.Date(2024, 6, 1, 10, 5, 0, 0, time.UTC))
	require.NoError(t, err)
	dbx.AssertExpectations(t)
}
