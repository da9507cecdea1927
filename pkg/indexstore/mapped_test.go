package indexstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/scann-ondevice/pkg/scann"
)

func testIndexBuffer(t *testing.T) []byte {
	t.Helper()
	buf, err := scann.CreateIndexBuffer(scann.IndexedArtifacts{
		EmbeddingDim:   2,
		UserInfo:       "mapped",
		Metadata:       []string{"a", "b", "c"},
		HashedDatabase: []uint8{1, 2, 3, 4, 5, 6},
	}, true)
	require.NoError(t, err)
	return buf
}

func TestOpenMapped(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), Options{})
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), "test.idx", testIndexBuffer(t)))

	index, err := OpenMapped(store.Path("test.idx"), scann.DefaultReaderOptions())
	require.NoError(t, err)
	defer index.Close()

	assert.Equal(t, store.Path("test.idx"), index.Path())
	info, err := index.GetUserInfo()
	require.NoError(t, err)
	assert.Equal(t, "mapped", info)

	partition, err := index.GetPartitionAtIndex(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, partition)

	metadata, err := index.GetMetadataAtIndex(2)
	require.NoError(t, err)
	assert.Equal(t, "c", metadata)
}

func TestOpenMapped_ReadsFromMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.idx")
	require.NoError(t, os.WriteFile(path, testIndexBuffer(t), 0644))

	index, err := OpenMapped(path, scann.DefaultReaderOptions())
	require.NoError(t, err)
	defer index.Close()

	// Without a block cache every lookup reads a fresh copy from the mapping
	first, err := index.GetPartitionAtIndex(0)
	require.NoError(t, err)
	first[0] = 0xFF
	second, err := index.GetPartitionAtIndex(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, second)

	cached, err := OpenMapped(path, scann.ReaderOptions{BlockCacheSize: 4})
	require.NoError(t, err)
	defer cached.Close()
	for i := 0; i < 3; i++ {
		partition, err := cached.GetPartitionAtIndex(0)
		require.NoError(t, err)
		assert.Len(t, partition, 6)
	}
}

func TestOpenMapped_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := OpenMapped(filepath.Join(dir, "missing.idx"), scann.DefaultReaderOptions())
	assert.True(t, scann.IsNotFound(err), "missing file: %v", err)

	garbage := filepath.Join(dir, "garbage.idx")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not an index"), 0644))
	_, err = OpenMapped(garbage, scann.DefaultReaderOptions())
	assert.True(t, scann.IsInternal(err), "garbage file: %v", err)
}
