package commit

import (
	"encoding/json"
	"sort"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/cuemby/ridgeline/pkg/rerr"
	"github.com/cuemby/ridgeline/pkg/types"
)

// diffByPattern returns the minimal Change set that transforms the paths of
// `from` matching pattern into the corresponding paths of `to`, ordered
// lexicographically by path.
func diffByPattern(from, to map[string]types.Entry, pattern string) ([]types.Change, error) {
	paths := make(map[string]struct{})
	for p := range from {
		if matchesPattern(p, pattern) {
			paths[p] = struct{}{}
		}
	}
	for p := range to {
		if matchesPattern(p, pattern) {
			paths[p] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	var changes []types.Change
	for _, path := range sorted {
		fromEntry, hadFrom := from[path]
		toEntry, hasTo := to[path]

		switch {
		case hadFrom && !hasTo:
			changes = append(changes, types.Change{Op: types.OpRemove, Path: path})
		case !hadFrom && hasTo:
			changes = append(changes, upsertFor(toEntry))
		case hadFrom && hasTo:
			change, changed, err := diffOneEntry(path, fromEntry, toEntry)
			if err != nil {
				return nil, err
			}
			if changed {
				changes = append(changes, change)
			}
		}
	}
	return changes, nil
}

func diffOneEntry(path string, fromEntry, toEntry types.Entry) (types.Change, bool, error) {
	if fromEntry.Type != toEntry.Type {
		return upsertFor(toEntry), true, nil
	}
	switch toEntry.Type {
	case types.EntryJSON:
		if jsonEqual(fromEntry.Content, toEntry.Content) {
			return types.Change{}, false, nil
		}
		ops, err := jsonpatch.CreatePatch(fromEntry.Content, toEntry.Content)
		if err != nil {
			return types.Change{}, false, rerr.Wrap(rerr.QueryExecution, path, err)
		}
		patchBytes, err := json.Marshal(ops)
		if err != nil {
			return types.Change{}, false, err
		}
		return types.Change{Op: types.OpApplyJSONPatch, Path: path, Patch: patchBytes}, true, nil
	case types.EntryText:
		var fromText, toText string
		_ = json.Unmarshal(fromEntry.Content, &fromText)
		_ = json.Unmarshal(toEntry.Content, &toText)
		if fromText == toText {
			return types.Change{}, false, nil
		}
		dmp := diffmatchpatch.New()
		diffs := dmp.DiffMain(fromText, toText, false)
		patches := dmp.PatchMake(fromText, diffs)
		return types.Change{Op: types.OpApplyTextPatch, Path: path, UnifiedDiff: dmp.PatchToText(patches)}, true, nil
	default:
		return types.Change{}, false, nil
	}
}

func upsertFor(entry types.Entry) types.Change {
	switch entry.Type {
	case types.EntryJSON:
		return types.Change{Op: types.OpUpsertJSON, Path: entry.Path, Content: entry.Content}
	case types.EntryText:
		var text string
		_ = json.Unmarshal(entry.Content, &text)
		return types.Change{Op: types.OpUpsertText, Path: entry.Path, Text: text}
	default:
		return types.Change{Op: types.OpUpsertText, Path: entry.Path}
	}
}

// diffByQuery narrows to a single path and an optional JSON_PATH expression
// chain, reporting the change as a single safeReplace patch against the
// selected sub-document (the shape the HTTP compare endpoint's
// path+jsonpath mode returns).
func diffByQuery(from, to map[string]types.Entry, path string, expressions []string) ([]types.Change, error) {
	fromEntry, fromOK := from[path]
	toEntry, toOK := to[path]
	if !fromOK && !toOK {
		return nil, rerr.New(rerr.EntryNotFound, path, "entry not found at either revision")
	}

	resolve := func(entry types.Entry, ok bool) (json.RawMessage, error) {
		if !ok {
			return nil, nil
		}
		val := entry.Content
		for _, expr := range expressions {
			next, err := evalJSONPathExpr(val, expr)
			if err != nil {
				return nil, rerr.Wrap(rerr.QueryExecution, path, err)
			}
			val = next
		}
		return val, nil
	}

	fromVal, err := resolve(fromEntry, fromOK)
	if err != nil {
		return nil, err
	}
	toVal, err := resolve(toEntry, toOK)
	if err != nil {
		return nil, err
	}
	if fromOK && toOK && jsonEqual(fromVal, toVal) {
		return nil, nil
	}

	op := map[string]json.RawMessage{
		"op":       json.RawMessage(`"safeReplace"`),
		"path":     json.RawMessage(`""`),
		"oldValue": fromVal,
		"value":    toVal,
	}
	encoded, err := json.Marshal([]map[string]json.RawMessage{op})
	if err != nil {
		return nil, err
	}
	return []types.Change{{Op: types.OpApplyJSONPatch, Path: path, Patch: encoded}}, nil
}
