package commit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/ridgeline/pkg/rerr"
	"github.com/cuemby/ridgeline/pkg/types"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(t.TempDir())
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func mustCreateRepo(t *testing.T, e *Engine, project, repo string) {
	t.Helper()
	_, err := e.CreateRepository(project, repo, "alice")
	require.NoError(t, err)
}

func TestCreateRepositoryStartsAtRevisionOne(t *testing.T) {
	e := newTestEngine(t)
	result, err := e.CreateRepository("acme", "configs", "alice")
	require.NoError(t, err)
	assert.Equal(t, types.Revision(1), result.Revision)

	_, err = e.CreateRepository("acme", "configs", "alice")
	assert.Equal(t, rerr.RepositoryExists, rerr.CodeOf(err))
}

func TestPushThenGetJSON(t *testing.T) {
	e := newTestEngine(t)
	mustCreateRepo(t, e, "acme", "configs")

	result, err := e.Push("acme", "configs", types.HeadRevision, "alice", "add a", []types.Change{
		{Op: types.OpUpsertJSON, Path: "/a.json", Content: json.RawMessage(`{"a":"b"}`)},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, types.Revision(2), result.Revision)

	entry, rev, err := e.Get("acme", "configs", types.HeadRevision, "/a.json")
	require.NoError(t, err)
	assert.Equal(t, types.Revision(2), rev)
	assert.JSONEq(t, `{"a":"b"}`, string(entry.Content))
}

func TestPushIdenticalContentIsRedundant(t *testing.T) {
	e := newTestEngine(t)
	mustCreateRepo(t, e, "acme", "configs")

	changes := []types.Change{{Op: types.OpUpsertJSON, Path: "/a.json", Content: json.RawMessage(`{"a":"b"}`)}}
	_, err := e.Push("acme", "configs", types.HeadRevision, "alice", "add", changes, false)
	require.NoError(t, err)

	_, err = e.Push("acme", "configs", types.HeadRevision, "alice", "add again", changes, false)
	assert.Equal(t, rerr.RedundantChange, rerr.CodeOf(err))
}

func TestPushNormalizesUpsertJSONToPatch(t *testing.T) {
	e := newTestEngine(t)
	mustCreateRepo(t, e, "acme", "configs")

	_, err := e.Push("acme", "configs", types.HeadRevision, "alice", "add", []types.Change{
		{Op: types.OpUpsertJSON, Path: "/a.json", Content: json.RawMessage(`{"a":"b"}`)},
	}, false)
	require.NoError(t, err)

	result, err := e.Push("acme", "configs", types.HeadRevision, "alice", "update", []types.Change{
		{Op: types.OpUpsertJSON, Path: "/a.json", Content: json.RawMessage(`{"a":"c"}`)},
	}, false)
	require.NoError(t, err)
	require.Len(t, result.ActualChanges, 1)
	assert.Equal(t, types.OpApplyJSONPatch, result.ActualChanges[0].Op)

	entry, _, err := e.Get("acme", "configs", types.HeadRevision, "/a.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"c"}`, string(entry.Content))
}

func TestPushExplicitStaleBaseFailsWithConflict(t *testing.T) {
	e := newTestEngine(t)
	mustCreateRepo(t, e, "acme", "configs")

	_, err := e.Push("acme", "configs", types.HeadRevision, "alice", "first", []types.Change{
		{Op: types.OpUpsertJSON, Path: "/a.json", Content: json.RawMessage(`{"a":"b"}`)},
	}, false)
	require.NoError(t, err)

	_, err = e.Push("acme", "configs", types.Revision(1), "bob", "racing", []types.Change{
		{Op: types.OpUpsertJSON, Path: "/b.json", Content: json.RawMessage(`{"b":"c"}`)},
	}, false)
	assert.Equal(t, rerr.ChangeConflict, rerr.CodeOf(err))
}

func TestRemoveNonexistentIsConflict(t *testing.T) {
	e := newTestEngine(t)
	mustCreateRepo(t, e, "acme", "configs")

	_, err := e.Push("acme", "configs", types.HeadRevision, "alice", "remove", []types.Change{
		{Op: types.OpRemove, Path: "/missing.json"},
	}, false)
	assert.Equal(t, rerr.ChangeConflict, rerr.CodeOf(err))
}

func TestRenameTargetExistsIsConflict(t *testing.T) {
	e := newTestEngine(t)
	mustCreateRepo(t, e, "acme", "configs")

	_, err := e.Push("acme", "configs", types.HeadRevision, "alice", "seed", []types.Change{
		{Op: types.OpUpsertJSON, Path: "/a.json", Content: json.RawMessage(`{}`)},
		{Op: types.OpUpsertJSON, Path: "/b.json", Content: json.RawMessage(`{}`)},
	}, false)
	require.NoError(t, err)

	_, err = e.Push("acme", "configs", types.HeadRevision, "alice", "rename", []types.Change{
		{Op: types.OpRename, Path: "/a.json", NewPath: "/b.json"},
	}, false)
	assert.Equal(t, rerr.ChangeConflict, rerr.CodeOf(err))
}

func TestQueryJSONPath(t *testing.T) {
	e := newTestEngine(t)
	mustCreateRepo(t, e, "acme", "configs")

	_, err := e.Push("acme", "configs", types.HeadRevision, "alice", "add", []types.Change{
		{Op: types.OpUpsertJSON, Path: "/a.json", Content: json.RawMessage(`{"a":"b"}`)},
	}, false)
	require.NoError(t, err)

	entry, _, err := e.Query("acme", "configs", types.HeadRevision, types.Query{
		Path: "/a.json", Type: types.QueryJSONPath, Expressions: []string{"$.a"},
	})
	require.NoError(t, err)
	assert.Equal(t, `"b"`, string(entry.Content))
}

func TestDiffWithJSONPath(t *testing.T) {
	e := newTestEngine(t)
	mustCreateRepo(t, e, "acme", "configs")

	_, err := e.Push("acme", "configs", types.HeadRevision, "alice", "add", []types.Change{
		{Op: types.OpUpsertJSON, Path: "/a.json", Content: json.RawMessage(`{"a":"b"}`)},
	}, false)
	require.NoError(t, err)
	_, err = e.Push("acme", "configs", types.HeadRevision, "alice", "update", []types.Change{
		{Op: types.OpUpsertJSON, Path: "/a.json", Content: json.RawMessage(`{"a":"c"}`)},
	}, false)
	require.NoError(t, err)

	changes, err := e.Diff("acme", "configs", types.Revision(2), types.Revision(3), "", "/a.json", []string{"$.a"})
	require.NoError(t, err)
	require.Len(t, changes, 1)

	var ops []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(changes[0].Patch, &ops))
	require.Len(t, ops, 1)
	assert.Equal(t, `"safeReplace"`, string(ops[0]["op"]))
	assert.Equal(t, `"b"`, string(ops[0]["oldValue"]))
	assert.Equal(t, `"c"`, string(ops[0]["value"]))
}

func TestHistoryReturnsLastTwoCommits(t *testing.T) {
	e := newTestEngine(t)
	mustCreateRepo(t, e, "acme", "configs")

	for i := 0; i < 3; i++ {
		path := "/f" + string(rune('a'+i)) + ".json"
		_, err := e.Push("acme", "configs", types.HeadRevision, "alice", "commit", []types.Change{
			{Op: types.OpUpsertJSON, Path: path, Content: json.RawMessage(`{}`)},
		}, false)
		require.NoError(t, err)
	}

	commits, err := e.History("acme", "configs", types.Revision(-2), types.HeadRevision, "/**", 10)
	require.NoError(t, err)
	assert.Len(t, commits, 2)
	assert.Equal(t, types.Revision(3), commits[0].Revision)
	assert.Equal(t, types.Revision(4), commits[1].Revision)
}

func TestMergeSkipsOptionalMissing(t *testing.T) {
	e := newTestEngine(t)
	mustCreateRepo(t, e, "acme", "configs")

	_, err := e.Push("acme", "configs", types.HeadRevision, "alice", "add", []types.Change{
		{Op: types.OpUpsertJSON, Path: "/base.json", Content: json.RawMessage(`{"a":1,"b":2}`)},
		{Op: types.OpUpsertJSON, Path: "/override.json", Content: json.RawMessage(`{"b":3}`)},
	}, false)
	require.NoError(t, err)

	entry, _, err := e.Merge("acme", "configs", types.HeadRevision, types.MergeQuery{
		Sources: []types.MergeSource{
			{Path: "/base.json"},
			{Path: "/missing.json", Optional: true},
			{Path: "/override.json"},
		},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":3}`, string(entry.Content))
}

func TestReadOnlyGateBlocksPushButNotForcePush(t *testing.T) {
	e := newTestEngine(t)
	mustCreateRepo(t, e, "acme", "configs")
	require.NoError(t, e.SetStatus("acme", "configs", types.RepositoryReadOnly))

	_, err := e.Push("acme", "configs", types.HeadRevision, "alice", "blocked", []types.Change{
		{Op: types.OpUpsertJSON, Path: "/a.json", Content: json.RawMessage(`{}`)},
	}, false)
	assert.Equal(t, rerr.ReadOnly, rerr.CodeOf(err))

	_, err = e.ForcePush("acme", "configs", types.HeadRevision, "alice", "forced", []types.Change{
		{Op: types.OpUpsertJSON, Path: "/a.json", Content: json.RawMessage(`{}`)},
	})
	require.NoError(t, err)
}

func TestTransformAppliesFunctionAgainstHead(t *testing.T) {
	e := newTestEngine(t)
	mustCreateRepo(t, e, "acme", "configs")

	_, err := e.Push("acme", "configs", types.HeadRevision, "alice", "seed", []types.Change{
		{Op: types.OpUpsertJSON, Path: "/counter.json", Content: json.RawMessage(`{"n":1}`)},
	}, false)
	require.NoError(t, err)

	result, err := e.Transform("acme", "configs", "alice", "bump", "/counter.json", types.EntryJSON,
		func(head types.Revision, content []byte) ([]byte, error) {
			var doc map[string]int
			require.NoError(t, json.Unmarshal(content, &doc))
			doc["n"]++
			return json.Marshal(doc)
		})
	require.NoError(t, err)
	assert.Equal(t, types.Revision(3), result.Revision)

	entry, _, err := e.Get("acme", "configs", types.HeadRevision, "/counter.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2}`, string(entry.Content))
}
