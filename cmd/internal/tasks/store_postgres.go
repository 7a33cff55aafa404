package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over the tasks table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const taskColumns = `id::text, user_id::text, title, description, status::text, due_date, created_at, updated_at, deleted_at`

func scanTask(row pgx.Row) (Task, error) {
	var (
		t      Task
		status string
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &status, &t.DueDate, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, err
	}
	t.Status = Status(status)
	t.DueDate = dateOf(t.DueDate)
	return t, nil
}

func (s *PostgresStore) Insert(ctx context.Context, t Task) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasks (id, user_id, title, description, status, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::task_status, $6, $7, $7)
	`, t.ID, t.UserID, t.Title, t.Description, string(t.Status), t.DueDate, t.CreatedAt)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, userID, id string) (Task, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, id, userID)
	return scanTask(row)
}

func (s *PostgresStore) Update(ctx context.Context, userID, id string, ch Changes, now time.Time) (Task, error) {
	sets := []string{"updated_at = $3"}
	args := []any{id, userID, now}
	add := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if ch.Title != nil {
		add("title = $%d", *ch.Title)
	}
	if ch.SetDescription {
		add("description = $%d", ch.Description)
	}
	if ch.Status != nil {
		add("status = $%d::task_status", string(*ch.Status))
	}
	if ch.DueDate != nil {
		add("due_date = $%d", *ch.DueDate)
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE tasks SET `+strings.Join(sets, ", ")+`
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
		RETURNING `+taskColumns, args...)
	return scanTask(row)
}

func (s *PostgresStore) SoftDelete(ctx context.Context, userID, id string, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks SET deleted_at = $3
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, id, userID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Task, int, error) {
	where, args := buildWhere(f)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM tasks WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT `+taskColumns+`
		FROM tasks
		WHERE %s
		ORDER BY created_at ASC, id ASC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Task, 0, f.Limit)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func buildWhere(f Filter) (string, []any) {
	conds := []string{"user_id = $1", "deleted_at IS NULL"}
	args := []any{f.UserID}
	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}

	if f.Status != "" {
		add("status = $%d::task_status", string(f.Status))
	}
	if f.OpenOnly {
		conds = append(conds, "status = 'open'")
	}
	if !f.DueFrom.IsZero() {
		add("due_date >= $%d", f.DueFrom)
	}
	if !f.DueBefore.IsZero() {
		add("due_date < $%d", f.DueBefore)
	}
	if f.Search != "" {
		args = append(args, "%"+escapeLike(f.Search)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(`(title ILIKE $%d ESCAPE '\' OR description ILIKE $%d ESCAPE '\')`, n, n))
	}
	return strings.Join(conds, " AND "), args
}

// escapeLike escapes LIKE metacharacters so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *PostgresStore) Stats(ctx context.Context, userID string, today time.Time) (Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE status = 'open'),
			count(*) FILTER (WHERE status = 'closed'),
			count(*) FILTER (WHERE status = 'open' AND due_date < $2)
		FROM tasks
		WHERE user_id = $1 AND deleted_at IS NULL
	`, userID, today).Scan(&st.Total, &st.Open, &st.Closed, &st.Overdue)
	return st, err
}
