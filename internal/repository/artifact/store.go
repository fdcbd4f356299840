// Package artifact stores the file blobs attached to a project: the uploaded
// source set and the files the completion pipeline generates.
package artifact

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("artifact not found")

// Store defines operations for persisting project file artifacts.
type Store interface {
	Put(ctx context.Context, projectID, path string, content []byte) error
	Get(ctx context.Context, projectID, path string) ([]byte, error)
	List(ctx context.Context, projectID string) ([]string, error)
}
