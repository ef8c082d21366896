package objectstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), "acme", "configs")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutBlobIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	d1, err := s.PutBlob([]byte("hello"))
	require.NoError(t, err)

	d2, err := s.PutBlob([]byte("hello"))
	require.NoError(t, err)

	assert.Equal(t, d1, d2)

	content, err := s.GetBlob(d1)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), content)
}

func TestGetBlobNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetBlob(HashBytes([]byte("never written")))
	assert.Error(t, err)
}

func TestTreeEncodeIsSortedByName(t *testing.T) {
	tree := Tree{
		{Name: "b.json", Type: TreeEntryBlob, Digest: HashBytes([]byte("b"))},
		{Name: "a.json", Type: TreeEntryBlob, Digest: HashBytes([]byte("a"))},
	}

	encoded := tree.Encode()

	reordered := Tree{tree[1], tree[0]}
	assert.Equal(t, encoded, reordered.Encode())
}

func TestPutTreeRoundTrip(t *testing.T) {
	s := openTestStore(t)

	blobDigest, err := s.PutBlob([]byte(`{"k":"v"}`))
	require.NoError(t, err)

	tree := Tree{{Name: "config.json", Type: TreeEntryBlob, Digest: blobDigest}}
	treeDigest, err := s.PutTree(tree)
	require.NoError(t, err)

	got, err := s.GetTree(treeDigest)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "config.json", got[0].Name)
	assert.Equal(t, blobDigest, got[0].Digest)
}

func TestHasReportsPresence(t *testing.T) {
	s := openTestStore(t)

	digest, err := s.PutBlob([]byte("present"))
	require.NoError(t, err)

	assert.True(t, s.Has(TreeEntryBlob, digest))
	assert.False(t, s.Has(TreeEntryBlob, HashBytes([]byte("absent"))))
}
