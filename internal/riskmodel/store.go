package riskmodel

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// ErrArtifactNotFound is returned by ModelStore.Load when nothing has been saved yet.
var ErrArtifactNotFound = errors.New("model artifact not found")

// ModelStore persists the single current artifact. Save replaces it atomically.
type ModelStore interface {
	Load(ctx context.Context) (*Artifact, error)
	Save(ctx context.Context, artifact *Artifact) error
}

// FileStore keeps the artifact at a fixed path. Saves write a temp file in the same
// directory, fsync it, then rename over the target, so readers never see a partial file.
type FileStore struct {
	logger *slog.Logger
	path   string
	mu     sync.Mutex
}

// NewFileStore constructs a FileStore for path.
func NewFileStore(logger *slog.Logger, path string) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{logger: logger, path: path}
}

// Path returns the artifact location.
func (s *FileStore) Path() string { return s.path }

// Load reads and decodes the artifact.
func (s *FileStore) Load(ctx context.Context) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrArtifactNotFound
		}
		return nil, fmt.Errorf("read artifact %s: %w", s.path, err)
	}
	artifact, err := UnmarshalArtifact(data)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", s.path, err)
	}
	return artifact, nil
}

// Save atomically replaces the artifact.
func (s *FileStore) Save(ctx context.Context, artifact *Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := artifact.Marshal()
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp artifact: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace artifact: %w", err)
	}
	committed = true
	syncDir(dir)

	s.logger.Info("model artifact saved",
		slog.String("path", s.path),
		slog.String("run_id", artifact.RunID),
		slog.Int("bytes", len(data)),
	)
	return nil
}

// syncDir flushes the rename; not every platform supports fsync on directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// MemoryStore keeps the encoded artifact in memory. Loads decode a fresh copy.
type MemoryStore struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Load implements ModelStore.
func (s *MemoryStore) Load(ctx context.Context) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data := s.data
	s.mu.RUnlock()
	if data == nil {
		return nil, ErrArtifactNotFound
	}
	return UnmarshalArtifact(data)
}

// Save implements ModelStore.
func (s *MemoryStore) Save(ctx context.Context, artifact *Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := artifact.Marshal()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}
