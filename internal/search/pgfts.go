package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// buildQuery returns the shared FROM/WHERE clause and its arguments.
func buildQuery(q Query) (string, []any) {
	args := []any{q.Text}
	where := []string{"c.fts @@ plainto_tsquery('english', $1)"}
	if q.TaskID != "" {
		args = append(args, q.TaskID)
		where = append(where, fmt.Sprintf("c.task_id = $%d", len(args)))
	}
	if q.ViewerID != "" {
		args = append(args, q.ViewerID)
		where = append(where, fmt.Sprintf("(t.assigned_to = $%d OR t.created_by = $%d)", len(args), len(args)))
	}
	from := `
		FROM task_comments c
		JOIN tasks t ON t.id = c.task_id
		WHERE ` + strings.Join(where, " AND ")
	return from, args
}

// Search ranks comments with ts_rank and builds snippets with ts_headline.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	from, args := buildQuery(q)

	var total int
	if err := p.db.QueryRowContext(ctx, "SELECT count(*)"+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT c.id, c.task_id, t.title,
			ts_headline('english', c.content, plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30,StartSel=<mark>,StopSel=</mark>'),
			c.author_name, COALESCE(c.parent_comment_id, ''), c.created_at,
			COALESCE(t.assigned_to, ''), COALESCE(t.created_by, '')
		%s
		ORDER BY ts_rank(c.fts, plainto_tsquery('english', $1)) DESC, c.created_at DESC
		LIMIT %d OFFSET %d`, from, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.TaskID, &r.TaskTitle, &r.Snippet, &r.AuthorName, &r.ParentCommentID, &r.CreatedAt, &r.assignedTo, &r.createdBy); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}
