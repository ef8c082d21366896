package commit

import (
	"sort"

	"github.com/cuemby/ridgeline/pkg/revlog"
	"github.com/cuemby/ridgeline/pkg/types"
)

// findEntries returns every entry whose path matches pattern, ordered
// lexicographically by path.
func findEntries(entries map[string]types.Entry, pattern string) []types.Entry {
	matched := make([]types.Entry, 0)
	for path, entry := range entries {
		if matchesPattern(path, pattern) {
			matched = append(matched, entry)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Path < matched[j].Path })
	return matched
}

// commitTouchesPattern reports whether any change in a commit affects a
// path matching pattern.
func commitTouchesPattern(commit types.Commit, pattern string) bool {
	for _, change := range commit.Changes {
		if matchesPattern(change.Path, pattern) {
			return true
		}
		if change.Op == types.OpRename && matchesPattern(change.NewPath, pattern) {
			return true
		}
	}
	return false
}

// filterHistory narrows a range of revision-log records to those whose
// commit touches pattern, preserving the records' existing order.
func filterHistory(records []revlog.Record, pattern string) []types.Commit {
	commits := make([]types.Commit, 0, len(records))
	for _, record := range records {
		if commitTouchesPattern(record.Commit, pattern) {
			commits = append(commits, record.Commit)
		}
	}
	return commits
}
