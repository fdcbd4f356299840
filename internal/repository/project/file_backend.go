package project

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileStore persists projects as one JSON document per id under a base
// directory, with per-project task files alongside. Suitable for single-node
// deployments and tests.
type FileStore struct {
	base string
	mu   sync.Mutex
}

func NewFileStore(base string) (*FileStore, error) {
	if base == "" {
		return nil, fmt.Errorf("projectstore: base dir is required")
	}
	for _, sub := range []string{"projects", "tasks"} {
		if err := os.MkdirAll(filepath.Join(base, sub), 0o755); err != nil {
			return nil, fmt.Errorf("projectstore: mkdir %s: %w", sub, err)
		}
	}
	return &FileStore{base: base}, nil
}

func (s *FileStore) projectPath(id string) string {
	return filepath.Join(s.base, "projects", id+".json")
}

func (s *FileStore) tasksPath(projectID string) string {
	return filepath.Join(s.base, "tasks", projectID+".json")
}

func (s *FileStore) Create(ctx context.Context, p *Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = newID()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	return writeJSON(s.projectPath(p.ID), p)
}

func (s *FileStore) Get(ctx context.Context, id string) (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readProject(id)
}

func (s *FileStore) readProject(id string) (*Project, error) {
	raw, err := os.ReadFile(s.projectPath(id))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("projectstore: read %s: %w", id, err)
	}
	var p Project
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("projectstore: decode %s: %w", id, err)
	}
	return &p, nil
}

func (s *FileStore) Update(ctx context.Context, id string, apply func(*Project)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.readProject(id)
	if err != nil {
		return err
	}
	apply(p)
	p.UpdatedAt = time.Now().UTC()
	return writeJSON(s.projectPath(id), p)
}

func (s *FileStore) CreateTask(ctx context.Context, t Task) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
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

	tasks, err := s.readTasks(t.ProjectID)
	if err != nil {
		return Task{}, err
	}
	tasks = append(tasks, t)
	if err := writeJSON(s.tasksPath(t.ProjectID), tasks); err != nil {
		return Task{}, err
	}
	return t, nil
}

func (s *FileStore) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks, err := s.readTasks(projectID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (s *FileStore) readTasks(projectID string) ([]Task, error) {
	raw, err := os.ReadFile(s.tasksPath(projectID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("projectstore: read tasks %s: %w", projectID, err)
	}
	var tasks []Task
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, fmt.Errorf("projectstore: decode tasks %s: %w", projectID, err)
	}
	return tasks, nil
}

func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("projectstore: encode %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("projectstore: write %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}

func newID() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("p%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
