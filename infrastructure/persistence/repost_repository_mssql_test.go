package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestRepostRepositoryMSSQL_GetDueReposts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewRepostRepositoryMSSQL(db)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "post_id", "account_id", "uri", "cid", "group_id", "scheduled_at", "created_at"}).
		AddRow(int64(1), int64(10), "acct-1", "at://u1", "c1", nil, now.Add(-time.Hour), now)

	// Same violation anti-join as the Postgres due query, on dbo tables.
	mock.ExpectQuery(`(?s)FROM dbo\.\[scheduled_reposts\] r.*NOT EXISTS.*dbo\.\[account_violations\] v.*v\.cleared_at IS NULL`).
		WithArgs(now).WillReturnRows(rows)

	res, err := repository.GetDueReposts(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Nil(t, res[0].GroupID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepostRepositoryMSSQL_DeleteExpiredReposts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewRepostRepositoryMSSQL(db)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`DELETE FROM dbo\.\[scheduled_reposts\] OUTPUT DELETED\.post_id`).
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{"post_id"}).
			AddRow(int64(10)).AddRow(int64(11)).AddRow(int64(10)))

	ids, err := repository.DeleteExpiredReposts(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, []int64{10, 11}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}
