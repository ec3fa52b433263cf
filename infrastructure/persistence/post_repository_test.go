package persistence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"skypress/domain/model"
)

var postCols = []string{
	"id", "account_id", "text", "embeds", "sensitivity", "scheduled_at", "post_now", "posted", "uri", "cid",
	"is_thread_root", "is_child_post", "root_id", "parent_id", "thread_order", "cadences", "reposts_left",
	"created_at", "updated_at",
}

func TestPostRepository_GetDuePosts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewPostRepository(db)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	scheduledAt := now.Add(-time.Hour)

	rows := sqlmock.NewRows(postCols).
		AddRow(
			int64(1), "acct-1", "plain post", []byte(`[]`), "", scheduledAt, false, false, nil, nil,
			false, false, nil, nil, 0, []byte(`[]`), 0, now, now,
		).
		AddRow(
			int64(2), "acct-2", "post with link",
			[]byte(`[{"kind":"link","link":{"url":"https://example.com","title":"Example"}}]`),
			"porn", scheduledAt, false, false, nil, nil,
			true, false, nil, nil, 0,
			[]byte(`[{"group_id":"g1","interval_hours":24,"repeat_count":3}]`), 3, now, now,
		)

	// The due query must keep excluding accounts with an uncleared violation.
	mock.ExpectQuery(`(?s)FROM scheduled_posts p.*NOT EXISTS.*FROM account_violations v.*v\.cleared_at IS NULL`).
		WithArgs(now).WillReturnRows(rows)

	res, err := repository.GetDuePosts(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, res, 2)

	require.Equal(t, int64(1), res[0].ID)
	require.Equal(t, "plain post", res[0].Text)
	require.Nil(t, res[0].URI)
	require.Empty(t, res[0].Embeds)

	require.Equal(t, int64(2), res[1].ID)
	require.True(t, res[1].IsThreadRoot)
	require.Equal(t, "porn", res[1].Sensitivity)
	require.Len(t, res[1].Embeds, 1)
	require.Equal(t, model.EmbedLink, res[1].Embeds[0].Kind)
	require.Equal(t, "https://example.com", res[1].Embeds[0].Link.URL)
	require.Equal(t, []model.RepostCadence{{GroupID: "g1", IntervalHours: 24, RepeatCount: 3}}, res[1].Cadences)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_GetChildSegments(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewPostRepository(db)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rootID := int64(10)

	rows := sqlmock.NewRows(postCols).
		AddRow(
			int64(11), "acct-1", "child one", []byte(`[]`), "", now, false, true,
			"at://did:plc:a/app.bsky.feed.post/c1", "bafyc1",
			false, true, rootID, rootID, 1, []byte(`[]`), 0, now, now,
		).
		AddRow(
			int64(12), "acct-1", "child two", []byte(`[]`), "", now, false, false, nil, nil,
			false, true, rootID, int64(11), 2, []byte(`[]`), 0, now, now,
		)

	mock.ExpectQuery("FROM scheduled_posts p").WithArgs(rootID).WillReturnRows(rows)

	res, err := repository.GetChildSegments(context.Background(), rootID)
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.True(t, res[0].Posted)
	require.NotNil(t, res[0].URI)
	require.Equal(t, "at://did:plc:a/app.bsky.feed.post/c1", *res[0].URI)
	require.Equal(t, 2, res[1].Order)
	require.NotNil(t, res[1].ParentID)
	require.Equal(t, int64(11), *res[1].ParentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_MarkPublished(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewPostRepository(db)

	mock.ExpectExec("UPDATE scheduled_posts").
		WithArgs(int64(7), "at://u", "bafyc", "retained text", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repository.MarkPublished(context.Background(), 7, "at://u", "bafyc", "retained text")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_ClearPostNow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewPostRepository(db)

	mock.ExpectExec("UPDATE scheduled_posts SET post_now = FALSE").
		WithArgs(int64(7), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repository.ClearPostNow(context.Background(), 7)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_RecomputeRepostCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewPostRepository(db)
	postID := int64(5)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM scheduled_reposts`).
		WithArgs(postID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT cadences FROM scheduled_posts").
		WithArgs(postID).
		WillReturnRows(sqlmock.NewRows([]string{"cadences"}).
			AddRow([]byte(`[{"group_id":"g1","interval_hours":24,"repeat_count":3},{"group_id":"g2","interval_hours":48,"repeat_count":2}]`)))
	mock.ExpectQuery("SELECT DISTINCT group_id FROM scheduled_reposts").
		WithArgs(postID).
		WillReturnRows(sqlmock.NewRows([]string{"group_id"}).AddRow("g1"))
	// Only the cadence group with live reposts survives.
	mock.ExpectExec("UPDATE scheduled_posts SET reposts_left").
		WithArgs(postID, 2, []byte(`[{"group_id":"g1","interval_hours":24,"repeat_count":3}]`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = repository.RecomputeRepostCount(context.Background(), postID)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_RecomputeRepostCount_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewPostRepository(db)
	postID := int64(5)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM scheduled_reposts`).
		WithArgs(postID).
		WillReturnError(fmt.Errorf("query error"))
	mock.ExpectRollback()

	err = repository.RecomputeRepostCount(context.Background(), postID)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
