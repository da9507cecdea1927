package indexstore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dd0wney/scann-ondevice/pkg/scann"
)

const (
	dirPermissions  = 0755
	filePermissions = 0644
)

// FileStore keeps blobs as files under Dir
type FileStore struct {
	dir string
	t   transfer
}

// NewFileStore creates a store rooted at dir, creating it if needed
func NewFileStore(dir string, opts Options) (*FileStore, error) {
	if dir == "" {
		return nil, scann.NewError("new_file_store").InvalidArgument().Msgf("directory is required").Err()
	}
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, scann.NewError("new_file_store").Key(dir).Msgf("failed to create directory").Cause(err).Err()
	}
	return &FileStore{dir: dir, t: newTransfer("file", opts)}, nil
}

// Dir returns the store root
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file path backing name
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, filepath.FromSlash(name))
}

// Get reads the whole blob stored under name
func (s *FileStore) Get(ctx context.Context, name string) ([]byte, error) {
	start := time.Now()
	data, err := s.get(ctx, name)
	s.t.record(directionGet, name, len(data), start, err)
	return data, err
}

func (s *FileStore) get(ctx context.Context, name string) ([]byte, error) {
	if err := validName("file_get", name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, scann.NewError("file_get").Key(name).Cause(err).Err()
	}
	data, err := os.ReadFile(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, scann.NewError("file_get").NotFound().Key(name).Msgf("no such blob").Err()
	}
	if err != nil {
		return nil, scann.NewError("file_get").Key(name).Msgf("failed to read blob").Cause(err).Err()
	}
	return data, nil
}

// Put writes data to a temporary file and renames it over name, so readers
// never observe a partial blob.
func (s *FileStore) Put(ctx context.Context, name string, data []byte) error {
	start := time.Now()
	err := s.put(ctx, name, data)
	s.t.record(directionPut, name, len(data), start, err)
	return err
}

func (s *FileStore) put(ctx context.Context, name string, data []byte) error {
	if err := validName("file_put", name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return scann.NewError("file_put").Key(name).Cause(err).Err()
	}

	target := s.Path(name)
	if err := os.MkdirAll(filepath.Dir(target), dirPermissions); err != nil {
		return scann.NewError("file_put").Key(name).Msgf("failed to create directory").Cause(err).Err()
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".*.tmp")
	if err != nil {
		return scann.NewError("file_put").Key(name).Msgf("failed to create temporary file").Cause(err).Err()
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return scann.NewError("file_put").Key(name).Msgf("failed to write blob").Cause(err).Err()
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return scann.NewError("file_put").Key(name).Msgf("failed to sync blob").Cause(err).Err()
	}
	if err := tmp.Close(); err != nil {
		return scann.NewError("file_put").Key(name).Msgf("failed to close blob").Cause(err).Err()
	}
	if err := os.Chmod(tmpPath, filePermissions); err != nil {
		return scann.NewError("file_put").Key(name).Msgf("failed to set permissions").Cause(err).Err()
	}

	// Atomic rename
	if err := os.Rename(tmpPath, target); err != nil {
		return scann.NewError("file_put").Key(name).Msgf("failed to rename blob").Cause(err).Err()
	}
	return nil
}
