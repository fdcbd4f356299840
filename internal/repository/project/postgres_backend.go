package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore persists project records as JSONB documents. Partial updates
// are read-modify-write inside one transaction, keeping last-write-wins
// semantics identical to the file backend.
type PostgresStore struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("projectstore: dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("projectstore: open: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) ensureSchema() error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS projects (
    id TEXT PRIMARY KEY,
    doc JSONB NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS project_tasks (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    doc JSONB NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_project_tasks_project_id ON project_tasks(project_id);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Create(ctx context.Context, p *Project) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = newID()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("projectstore: encode: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO projects (id, doc, created_at, updated_at) VALUES ($1, $2, $3, $3)
ON CONFLICT (id) DO UPDATE SET doc=EXCLUDED.doc, updated_at=EXCLUDED.updated_at
`, p.ID, doc, now)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Project, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM projects WHERE id=$1`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("projectstore: get %s: %w", id, err)
	}
	var p Project
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("projectstore: decode %s: %w", id, err)
	}
	return &p, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, apply func(*Project)) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("projectstore: begin: %w", err)
	}
	defer tx.Rollback()

	var doc []byte
	err = tx.QueryRowContext(ctx, `SELECT doc FROM projects WHERE id=$1 FOR UPDATE`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("projectstore: update %s: %w", id, err)
	}
	var p Project
	if err := json.Unmarshal(doc, &p); err != nil {
		return fmt.Errorf("projectstore: decode %s: %w", id, err)
	}
	apply(&p)
	p.UpdatedAt = time.Now().UTC()
	out, err := json.Marshal(&p)
	if err != nil {
		return fmt.Errorf("projectstore: encode %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE projects SET doc=$2, updated_at=$3 WHERE id=$1`, id, out, p.UpdatedAt); err != nil {
		return fmt.Errorf("projectstore: write %s: %w", id, err)
	}
	return tx.Commit()
}

func (s *PostgresStore) CreateTask(ctx context.Context, t Task) (Task, error) {
	if err := s.ensureSchema(); err != nil {
		return Task{}, err
	}
	if t.ProjectID == "" {
		return Task{}, fmt.Errorf("projectstore: task project id is required")
	}
	if t.ID == "" {
		t.ID = newID()
	}
	if t.Status == "" {
		t.Status = "open"
	}
	t.CreatedAt = time.Now().UTC()
	doc, err := json.Marshal(t)
	if err != nil {
		return Task{}, fmt.Errorf("projectstore: encode task: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO project_tasks (id, project_id, doc, created_at) VALUES ($1, $2, $3, $4)
`, t.ID, t.ProjectID, doc, t.CreatedAt)
	if err != nil {
		return Task{}, fmt.Errorf("projectstore: insert task: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM project_tasks WHERE project_id=$1 ORDER BY created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("projectstore: list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var t Task
		if err := json.Unmarshal(doc, &t); err != nil {
			return nil, fmt.Errorf("projectstore: decode task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *PostgresStore) Close() error { return s.db.Close() }
