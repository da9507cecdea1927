package indexstore

import (
	"errors"
	"io/fs"

	"golang.org/x/exp/mmap"

	"github.com/dd0wney/scann-ondevice/pkg/logging"
	"github.com/dd0wney/scann-ondevice/pkg/scann"
)

// MappedIndex is an index read through a memory-mapped file. Blocks are
// read from the mapping on demand; the file is never loaded whole.
type MappedIndex struct {
	*scann.Index
	path   string
	reader *mmap.ReaderAt
}

// OpenMapped maps the index file at path. The file must not change while
// the index is open. Close releases the mapping.
func OpenMapped(path string, opts scann.ReaderOptions) (*MappedIndex, error) {
	reader, err := mmap.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, scann.NewError("open_mapped").NotFound().Key(path).Msgf("no such index file").Err()
	}
	if err != nil {
		return nil, scann.NewError("open_mapped").Key(path).Msgf("failed to map index file").Cause(err).Err()
	}

	index, err := scann.CreateFromReaderAt(reader, int64(reader.Len()), opts)
	if err != nil {
		_ = reader.Close()
		return nil, err
	}

	logging.OrDefault(opts.Logger).Debug("mapped index",
		logging.Component("index_store"), logging.Path(path), logging.Bytes(reader.Len()))
	return &MappedIndex{Index: index, path: path, reader: reader}, nil
}

// Path returns the mapped file path
func (m *MappedIndex) Path() string {
	return m.path
}

// Close unmaps the file. The index must not be used afterwards.
func (m *MappedIndex) Close() error {
	return m.reader.Close()
}
