package persistence

import (
	"context"
	"database/sql"
	"time"

	"skypress/domain/model"
)

// RepostRepositoryMSSQL implements scheduled-repost persistence for SQL
// Server/Azure SQL using database/sql.
type RepostRepositoryMSSQL struct{ db *sql.DB }

func NewRepostRepositoryMSSQL(db *sql.DB) *RepostRepositoryMSSQL {
	return &RepostRepositoryMSSQL{db: db}
}

func (r *RepostRepositoryMSSQL) GetDueReposts(ctx context.Context, now time.Time) ([]*model.Repost, error) {
	q := `SELECT r.id, r.post_id, r.account_id, r.uri, r.cid, r.group_id, r.scheduled_at, r.created_at
		FROM dbo.[scheduled_reposts] r
		WHERE r.scheduled_at <= @p1
		  AND NOT EXISTS (
			SELECT 1 FROM dbo.[account_violations] v
			WHERE v.account_id = r.account_id AND v.cleared_at IS NULL
		  )
		ORDER BY r.scheduled_at ASC`
	rows, err := r.db.QueryContext(ctx, q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*model.Repost
	for rows.Next() {
		rp := &model.Repost{}
		var groupID sql.NullString
		if err := rows.Scan(&rp.ID, &rp.PostID, &rp.AccountID, &rp.URI, &rp.CID, &groupID, &rp.ScheduledAt, &rp.CreatedAt); err != nil {
			return nil, err
		}
		if groupID.Valid {
			rp.GroupID = &groupID.String
		}
		list = append(list, rp)
	}
	return list, rows.Err()
}

// DeleteExpiredReposts removes past-due repost rows. OUTPUT DELETED replaces
// the Postgres RETURNING clause; the result is deduplicated the same way.
func (r *RepostRepositoryMSSQL) DeleteExpiredReposts(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`DELETE FROM dbo.[scheduled_reposts] OUTPUT DELETED.post_id WHERE scheduled_at <= @p1`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := map[int64]bool{}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}
