package revlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/ridgeline/pkg/objectstore"
	"github.com/cuemby/ridgeline/pkg/rerr"
	"github.com/cuemby/ridgeline/pkg/types"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(t.TempDir(), "acme", "configs")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func appendCommit(t *testing.T, l *Log, parent types.Revision, summary string) types.Revision {
	t.Helper()
	rev, err := l.Append(types.Commit{Author: "alice", Summary: summary}, objectstore.Digest{}, parent)
	require.NoError(t, err)
	return rev
}

func TestHeadOfEmptyLogIsZero(t *testing.T) {
	l := openTestLog(t)

	head, err := l.Head()
	require.NoError(t, err)
	assert.Equal(t, types.Revision(0), head)
}

func TestAppendAdvancesHead(t *testing.T) {
	l := openTestLog(t)

	rev1 := appendCommit(t, l, 0, "first")
	assert.Equal(t, types.Revision(1), rev1)

	rev2 := appendCommit(t, l, rev1, "second")
	assert.Equal(t, types.Revision(2), rev2)

	head, err := l.Head()
	require.NoError(t, err)
	assert.Equal(t, types.Revision(2), head)
}

func TestAppendConflictOnStaleParent(t *testing.T) {
	l := openTestLog(t)
	appendCommit(t, l, 0, "first")

	_, err := l.Append(types.Commit{Author: "bob", Summary: "racing"}, objectstore.Digest{}, 0)
	require.Error(t, err)
	assert.Equal(t, rerr.ChangeConflict, rerr.CodeOf(err))
}

func TestGetMissingRevision(t *testing.T) {
	l := openTestLog(t)

	_, err := l.Get(5)
	require.Error(t, err)
	assert.Equal(t, rerr.RevisionNotFound, rerr.CodeOf(err))
}

func TestRangeAscendingAndDescending(t *testing.T) {
	l := openTestLog(t)
	var last types.Revision
	for i := 0; i < 5; i++ {
		last = appendCommit(t, l, last, "commit")
	}

	ascending, err := l.Range(1, 5, 10)
	require.NoError(t, err)
	require.Len(t, ascending, 5)
	assert.Equal(t, types.Revision(1), ascending[0].Revision)
	assert.Equal(t, types.Revision(5), ascending[4].Revision)

	descending, err := l.Range(5, 1, 10)
	require.NoError(t, err)
	require.Len(t, descending, 5)
	assert.Equal(t, types.Revision(5), descending[0].Revision)
	assert.Equal(t, types.Revision(1), descending[4].Revision)
}

func TestRangeBoundedByMaxCount(t *testing.T) {
	l := openTestLog(t)
	var last types.Revision
	for i := 0; i < 5; i++ {
		last = appendCommit(t, l, last, "commit")
	}

	records, err := l.Range(1, 5, 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
