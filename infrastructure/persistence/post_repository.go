package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"skypress/domain/model"
)

const postColumns = `id, account_id, text, embeds, sensitivity, scheduled_at, post_now, posted, uri, cid,
	is_thread_root, is_child_post, root_id, parent_id, thread_order, cadences, reposts_left, created_at, updated_at`

// PostRepository implements scheduled-post persistence on PostgreSQL.
type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) *PostRepository { return &PostRepository{db: db} }

func (r *PostRepository) GetDuePosts(ctx context.Context, now time.Time) ([]*model.Post, error) {
	q := `SELECT ` + postColumns + ` FROM scheduled_posts p
		WHERE p.posted = FALSE
		  AND p.post_now = FALSE
		  AND p.is_child_post = FALSE
		  AND p.scheduled_at <= $1
		  AND NOT EXISTS (
			SELECT 1 FROM account_violations v
			WHERE v.account_id = p.account_id AND v.cleared_at IS NULL
		  )
		ORDER BY p.scheduled_at ASC`
	rows, err := r.db.QueryContext(ctx, q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPosts(rows)
}

func (r *PostRepository) GetChildSegments(ctx context.Context, rootID int64) ([]*model.Post, error) {
	q := `SELECT ` + postColumns + ` FROM scheduled_posts p
		WHERE p.root_id = $1 AND p.is_child_post = TRUE
		ORDER BY p.thread_order ASC`
	rows, err := r.db.QueryContext(ctx, q, rootID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPosts(rows)
}

func (r *PostRepository) MarkPublished(ctx context.Context, id int64, uri, cid, truncatedText string) error {
	q := `UPDATE scheduled_posts
		SET posted = TRUE, uri = $2, cid = $3, text = $4, embeds = '[]'::jsonb, post_now = FALSE, updated_at = $5
		WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id, uri, cid, truncatedText, time.Now().UTC())
	return err
}

func (r *PostRepository) ClearPostNow(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE scheduled_posts SET post_now = FALSE, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC())
	return err
}

// RecomputeRepostCount refreshes reposts_left from the repost table and drops
// cadence groups that no longer have any pending occurrence.
func (r *PostRepository) RecomputeRepostCount(ctx context.Context, postID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var remaining int
	row := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scheduled_reposts WHERE post_id = $1`, postID)
	if err = row.Scan(&remaining); err != nil {
		return err
	}

	var cadencesRaw []byte
	row = tx.QueryRowContext(ctx, `SELECT cadences FROM scheduled_posts WHERE id = $1`, postID)
	if err = row.Scan(&cadencesRaw); err != nil {
		return err
	}
	var cadences []model.RepostCadence
	if len(cadencesRaw) > 0 {
		if err = json.Unmarshal(cadencesRaw, &cadences); err != nil {
			return err
		}
	}

	live := map[string]bool{}
	var groupRows *sql.Rows
	groupRows, err = tx.QueryContext(ctx,
		`SELECT DISTINCT group_id FROM scheduled_reposts WHERE post_id = $1 AND group_id IS NOT NULL`, postID)
	if err != nil {
		return err
	}
	for groupRows.Next() {
		var g string
		if err = groupRows.Scan(&g); err != nil {
			groupRows.Close()
			return err
		}
		live[g] = true
	}
	groupRows.Close()
	if err = groupRows.Err(); err != nil {
		return err
	}

	kept := cadences[:0]
	for _, c := range cadences {
		if live[c.GroupID] {
			kept = append(kept, c)
		}
	}
	if kept == nil {
		kept = []model.RepostCadence{}
	}
	var keptRaw []byte
	keptRaw, err = json.Marshal(kept)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE scheduled_posts SET reposts_left = $2, cadences = $3, updated_at = $4 WHERE id = $1`,
		postID, remaining, keptRaw, time.Now().UTC())
	if err != nil {
		return err
	}
	return tx.Commit()
}

func scanPosts(rows *sql.Rows) ([]*model.Post, error) {
	var list []*model.Post
	for rows.Next() {
		p := &model.Post{}
		var (
			embedsRaw   []byte
			cadencesRaw []byte
			uri, cid    sql.NullString
			rootID      sql.NullInt64
			parentID    sql.NullInt64
		)
		if err := rows.Scan(
			&p.ID, &p.AccountID, &p.Text, &embedsRaw, &p.Sensitivity, &p.ScheduledAt,
			&p.PostNow, &p.Posted, &uri, &cid,
			&p.IsThreadRoot, &p.IsChildPost, &rootID, &parentID, &p.Order,
			&cadencesRaw, &p.RepostsLeft, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if uri.Valid {
			p.URI = &uri.String
		}
		if cid.Valid {
			p.CID = &cid.String
		}
		if rootID.Valid {
			p.RootID = &rootID.Int64
		}
		if parentID.Valid {
			p.ParentID = &parentID.Int64
		}
		if len(embedsRaw) > 0 {
			if err := json.Unmarshal(embedsRaw, &p.Embeds); err != nil {
				return nil, err
			}
		}
		if len(cadencesRaw) > 0 {
			if err := json.Unmarshal(cadencesRaw, &p.Cadences); err != nil {
				return nil, err
			}
		}
		list = append(list, p)
	}
	return list, rows.Err()
}
