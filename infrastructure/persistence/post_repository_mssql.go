package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"skypress/domain/model"
)

// PostRepositoryMSSQL implements scheduled-post persistence for SQL
// Server/Azure SQL using database/sql. Row shapes match the Postgres
// repository so both share scanPosts.
type PostRepositoryMSSQL struct{ db *sql.DB }

func NewPostRepositoryMSSQL(db *sql.DB) *PostRepositoryMSSQL { return &PostRepositoryMSSQL{db: db} }

func (r *PostRepositoryMSSQL) GetDuePosts(ctx context.Context, now time.Time) ([]*model.Post, error) {
	q := `SELECT ` + postColumns + ` FROM dbo.[scheduled_posts] p
		WHERE p.posted = 0
		  AND p.post_now = 0
		  AND p.is_child_post = 0
		  AND p.scheduled_at <= @p1
		  AND NOT EXISTS (
			SELECT 1 FROM dbo.[account_violations] v
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

func (r *PostRepositoryMSSQL) GetChildSegments(ctx context.Context, rootID int64) ([]*model.Post, error) {
	q := `SELECT ` + postColumns + ` FROM dbo.[scheduled_posts] p
		WHERE p.root_id = @p1 AND p.is_child_post = 1
		ORDER BY p.thread_order ASC`
	rows, err := r.db.QueryContext(ctx, q, rootID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPosts(rows)
}

func (r *PostRepositoryMSSQL) MarkPublished(ctx context.Context, id int64, uri, cid, truncatedText string) error {
	q := `UPDATE dbo.[scheduled_posts]
		SET posted = 1, uri = @p2, cid = @p3, text = @p4, embeds = '[]', post_now = 0, updated_at = @p5
		WHERE id = @p1`
	_, err := r.db.ExecContext(ctx, q, id, uri, cid, truncatedText, time.Now().UTC())
	return err
}

func (r *PostRepositoryMSSQL) ClearPostNow(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE dbo.[scheduled_posts] SET post_now = 0, updated_at = @p2 WHERE id = @p1`,
		id, time.Now().UTC())
	return err
}

func (r *PostRepositoryMSSQL) RecomputeRepostCount(ctx context.Context, postID int64) error {
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
		`SELECT COUNT(*) FROM dbo.[scheduled_reposts] WHERE post_id = @p1`, postID)
	if err = row.Scan(&remaining); err != nil {
		return err
	}

	var cadencesRaw []byte
	row = tx.QueryRowContext(ctx,
		`SELECT cadences FROM dbo.[scheduled_posts] WHERE id = @p1`, postID)
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
		`SELECT DISTINCT group_id FROM dbo.[scheduled_reposts] WHERE post_id = @p1 AND group_id IS NOT NULL`, postID)
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
		`UPDATE dbo.[scheduled_posts] SET reposts_left = @p2, cadences = @p3, updated_at = @p4 WHERE id = @p1`,
		postID, remaining, keptRaw, time.Now().UTC())
	if err != nil {
		return err
	}
	return tx.Commit()
}
