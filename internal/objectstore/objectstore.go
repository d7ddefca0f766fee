// Package objectstore provides a local-filesystem-backed implementation
// of the platform's partitioned object key scheme, standing in behind an
// interface for a cloud object store (S3-compatible or similar) that a
// production deployment would substitute.
package objectstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aristath/arbitrage-platform/internal/apperr"
)

// Store persists and retrieves opaque payloads by key.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// FilesystemStore implements Store by writing each key below a root
// directory, creating intermediate directories as needed. Keys are
// expected to use forward slashes per the platform's partitioned key
// format; callers must not pass keys containing "..".
type FilesystemStore struct {
	root string
}

// NewFilesystemStore builds a FilesystemStore rooted at dir, creating it
// if necessary.
func NewFilesystemStore(dir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.New(apperr.Internal, "objectstore.NewFilesystemStore", err)
	}
	return &FilesystemStore{root: dir}, nil
}

func (s *FilesystemStore) resolve(key string) (string, error) {
	if key == "" {
		return "", apperr.New(apperr.ValidationError, "objectstore.resolve", errKeyRequired)
	}
	clean := filepath.Clean(key)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", apperr.New(apperr.ValidationError, "objectstore.resolve", errKeyInvalid)
	}
	return filepath.Join(s.root, clean), nil
}

// Put writes data to key, creating intermediate directories.
func (s *FilesystemStore) Put(_ context.Context, key string, data []byte) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperr.New(apperr.Internal, "objectstore.Put", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperr.New(apperr.Internal, "objectstore.Put", err)
	}
	return nil
}

// Get reads the payload stored at key.
func (s *FilesystemStore) Get(_ context.Context, key string) ([]byte, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.New(apperr.NotFound, "objectstore.Get", err)
		}
		return nil, apperr.New(apperr.Internal, "objectstore.Get", err)
	}
	return data, nil
}

// Delete removes the payload stored at key. Deleting a missing key is
// not an error.
func (s *FilesystemStore) Delete(_ context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return apperr.New(apperr.Internal, "objectstore.Delete", err)
	}
	return nil
}

// Exists reports whether key has a payload stored.
func (s *FilesystemStore) Exists(_ context.Context, key string) (bool, error) {
	path, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	_, statErr := os.Stat(path)
	if statErr == nil {
		return true, nil
	}
	if os.IsNotExist(statErr) {
		return false, nil
	}
	return false, apperr.New(apperr.Internal, "objectstore.Exists", statErr)
}

type storeError string

func (e storeError) Error() string { return string(e) }

const (
	errKeyRequired storeError = "object key must not be empty"
	errKeyInvalid  storeError = "object key must not escape the store root"
)

// PartitionedKey builds a key of the form
// prefix/YYYY/MM/DD/HH/[partition/]eventID.json, per the platform's
// persisted-layout convention.
func PartitionedKey(prefix string, at time.Time, partition, eventID string) string {
	at = at.UTC()
	parts := []string{
		prefix,
		at.Format("2006"),
		at.Format("01"),
		at.Format("02"),
		at.Format("15"),
	}
	if partition != "" {
		parts = append(parts, partition)
	}
	parts = append(parts, eventID+".json")
	return filepath.ToSlash(filepath.Join(parts...))
}
