package persistence

import (
	"context"
	"database/sql"
	"time"

	"skypress/domain/model"
)

// RepostRepository implements scheduled-repost persistence on PostgreSQL.
type RepostRepository struct {
	db *sql.DB
}

func NewRepostRepository(db *sql.DB) *RepostRepository { return &RepostRepository{db: db} }

func (r *RepostRepository) GetDueReposts(ctx context.Context, now time.Time) ([]*model.Repost, error) {
	q := `SELECT r.id, r.post_id, r.account_id, r.uri, r.cid, r.group_id, r.scheduled_at, r.created_at
		FROM scheduled_reposts r
		WHERE r.scheduled_at <= $1
		  AND NOT EXISTS (
			SELECT 1 FROM account_violations v
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

// DeleteExpiredReposts removes past-due repost rows and returns the distinct
// parent post ids so their counters can be recomputed.
func (r *RepostRepository) DeleteExpiredReposts(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`DELETE FROM scheduled_reposts WHERE scheduled_at <= $1 RETURNING post_id`, now)
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
