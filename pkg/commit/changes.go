package commit

import (
	"encoding/json"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/cuemby/ridgeline/pkg/rerr"
	"github.com/cuemby/ridgeline/pkg/types"
)

// applyResult is the outcome of staging one Change against a snapshot: the
// (possibly normalized) change that was actually applied, or redundant if
// it produced no net effect on the snapshot.
type applyResult struct {
	change    types.Change
	redundant bool
}

// stageChange mutates entries in place to reflect change and reports the
// actual change recorded in history (normalizing UPSERT_* into patches when
// the target already exists), per the push preview rules.
func stageChange(entries map[string]types.Entry, change types.Change) (applyResult, error) {
	switch change.Op {
	case types.OpUpsertJSON:
		return stageUpsertJSON(entries, change)
	case types.OpUpsertText:
		return stageUpsertText(entries, change)
	case types.OpRemove:
		return stageRemove(entries, change)
	case types.OpRename:
		return stageRename(entries, change)
	case types.OpApplyJSONPatch:
		return stageApplyJSONPatch(entries, change)
	case types.OpApplyTextPatch:
		return stageApplyTextPatch(entries, change)
	default:
		return applyResult{}, rerr.New(rerr.InvalidPush, change.Path, "unknown change op "+string(change.Op))
	}
}

func stageUpsertJSON(entries map[string]types.Entry, change types.Change) (applyResult, error) {
	canon, err := canonicalizeJSON(change.Content)
	if err != nil {
		return applyResult{}, rerr.Wrap(rerr.ChangeFormat, change.Path, err)
	}

	existing, exists := entries[change.Path]
	if !exists {
		entries[change.Path] = types.Entry{Path: change.Path, Type: types.EntryJSON, Content: canon}
		return applyResult{change: types.Change{Op: types.OpUpsertJSON, Path: change.Path, Content: canon}}, nil
	}
	if existing.Type != types.EntryJSON {
		return applyResult{}, rerr.New(rerr.ChangeConflict, change.Path, "existing entry is not JSON")
	}
	if jsonEqual(existing.Content, canon) {
		return applyResult{redundant: true}, nil
	}

	ops, err := jsonpatch.CreatePatch(existing.Content, canon)
	if err != nil {
		return applyResult{}, rerr.Wrap(rerr.QueryExecution, change.Path, err)
	}
	patchBytes, err := json.Marshal(ops)
	if err != nil {
		return applyResult{}, err
	}

	entries[change.Path] = types.Entry{Path: change.Path, Type: types.EntryJSON, Content: canon}
	return applyResult{change: types.Change{Op: types.OpApplyJSONPatch, Path: change.Path, Patch: patchBytes}}, nil
}

func stageUpsertText(entries map[string]types.Entry, change types.Change) (applyResult, error) {
	encoded, err := json.Marshal(change.Text)
	if err != nil {
		return applyResult{}, err
	}

	existing, exists := entries[change.Path]
	if !exists {
		entries[change.Path] = types.Entry{Path: change.Path, Type: types.EntryText, Content: encoded}
		return applyResult{change: types.Change{Op: types.OpUpsertText, Path: change.Path, Text: change.Text}}, nil
	}
	if existing.Type != types.EntryText {
		return applyResult{}, rerr.New(rerr.ChangeConflict, change.Path, "existing entry is not TEXT")
	}

	var currentText string
	_ = json.Unmarshal(existing.Content, &currentText)
	if currentText == change.Text {
		return applyResult{redundant: true}, nil
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(currentText, change.Text, false)
	patches := dmp.PatchMake(currentText, diffs)
	patchText := dmp.PatchToText(patches)

	entries[change.Path] = types.Entry{Path: change.Path, Type: types.EntryText, Content: encoded}
	return applyResult{change: types.Change{Op: types.OpApplyTextPatch, Path: change.Path, UnifiedDiff: patchText}}, nil
}

func stageRemove(entries map[string]types.Entry, change types.Change) (applyResult, error) {
	_, fileExists := entries[change.Path]
	_, dirExists := entries[change.Path+"/"]
	if !fileExists && !dirExists {
		return applyResult{}, rerr.New(rerr.ChangeConflict, change.Path, "remove of nonexistent entry")
	}

	prefix := strings.TrimSuffix(change.Path, "/") + "/"
	for p := range entries {
		if p == change.Path || p == change.Path+"/" || strings.HasPrefix(p, prefix) {
			delete(entries, p)
		}
	}
	return applyResult{change: types.Change{Op: types.OpRemove, Path: change.Path}}, nil
}

func stageRename(entries map[string]types.Entry, change types.Change) (applyResult, error) {
	entry, ok := entries[change.Path]
	if !ok {
		return applyResult{}, rerr.New(rerr.ChangeConflict, change.Path, "rename of nonexistent entry")
	}
	if _, ok := entries[change.NewPath]; ok {
		return applyResult{}, rerr.New(rerr.ChangeConflict, change.NewPath, "rename target already exists")
	}

	oldPrefix := strings.TrimSuffix(change.Path, "/") + "/"
	newPrefix := strings.TrimSuffix(change.NewPath, "/") + "/"

	type move struct {
		from, to string
		entry    types.Entry
	}
	var descendants []move
	for p, e := range entries {
		if strings.HasPrefix(p, oldPrefix) {
			descendants = append(descendants, move{from: p, to: newPrefix + strings.TrimPrefix(p, oldPrefix), entry: e})
		}
	}

	delete(entries, change.Path)
	entry.Path = change.NewPath
	entries[change.NewPath] = entry

	for _, d := range descendants {
		delete(entries, d.from)
		d.entry.Path = d.to
		entries[d.to] = d.entry
	}

	return applyResult{change: types.Change{Op: types.OpRename, Path: change.Path, NewPath: change.NewPath}}, nil
}

func stageApplyJSONPatch(entries map[string]types.Entry, change types.Change) (applyResult, error) {
	existing, ok := entries[change.Path]
	if !ok || existing.Type != types.EntryJSON {
		return applyResult{}, rerr.New(rerr.EntryNotFound, change.Path, "entry not found for patch")
	}

	var rawOps []map[string]json.RawMessage
	if err := json.Unmarshal(change.Patch, &rawOps); err != nil {
		return applyResult{}, rerr.Wrap(rerr.ChangeFormat, change.Path, err)
	}

	doc := []byte(existing.Content)
	cleanedOps := make([]json.RawMessage, 0, len(rawOps))
	for _, op := range rawOps {
		if decodeOpString(op["op"]) != "safeReplace" {
			encoded, err := json.Marshal(op)
			if err != nil {
				return applyResult{}, err
			}
			cleanedOps = append(cleanedOps, encoded)
			continue
		}

		var pointer string
		if err := json.Unmarshal(op["path"], &pointer); err != nil {
			return applyResult{}, rerr.Wrap(rerr.ChangeFormat, change.Path, err)
		}
		current, found := jsonPointerGet(doc, pointer)
		if !found || !jsonEqual(current, op["oldValue"]) {
			return applyResult{}, rerr.New(rerr.ChangeConflict, change.Path, "safeReplace oldValue mismatch")
		}
		replaced, err := json.Marshal(map[string]json.RawMessage{
			"op":    json.RawMessage(`"replace"`),
			"path":  op["path"],
			"value": op["value"],
		})
		if err != nil {
			return applyResult{}, err
		}
		cleanedOps = append(cleanedOps, replaced)
	}

	cleanedBytes, err := json.Marshal(cleanedOps)
	if err != nil {
		return applyResult{}, err
	}
	patch, err := jsonpatch.DecodePatch(cleanedBytes)
	if err != nil {
		return applyResult{}, rerr.Wrap(rerr.ChangeFormat, change.Path, err)
	}
	newDoc, err := patch.Apply(doc)
	if err != nil {
		return applyResult{}, rerr.Wrap(rerr.ChangeConflict, change.Path, err)
	}
	canon, err := canonicalizeJSON(newDoc)
	if err != nil {
		return applyResult{}, err
	}
	if jsonEqual(existing.Content, canon) {
		return applyResult{redundant: true}, nil
	}

	entries[change.Path] = types.Entry{Path: change.Path, Type: types.EntryJSON, Content: canon}
	return applyResult{change: types.Change{Op: types.OpApplyJSONPatch, Path: change.Path, Patch: change.Patch}}, nil
}

func stageApplyTextPatch(entries map[string]types.Entry, change types.Change) (applyResult, error) {
	existing, ok := entries[change.Path]
	if !ok || existing.Type != types.EntryText {
		return applyResult{}, rerr.New(rerr.EntryNotFound, change.Path, "entry not found for patch")
	}

	var currentText string
	if err := json.Unmarshal(existing.Content, &currentText); err != nil {
		return applyResult{}, err
	}

	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(change.UnifiedDiff)
	if err != nil {
		return applyResult{}, rerr.Wrap(rerr.ChangeFormat, change.Path, err)
	}
	newText, applied := dmp.PatchApply(patches, currentText)
	for _, ok := range applied {
		if !ok {
			return applyResult{}, rerr.New(rerr.ChangeConflict, change.Path, "text patch did not apply cleanly")
		}
	}
	if newText == currentText {
		return applyResult{redundant: true}, nil
	}

	encoded, err := json.Marshal(newText)
	if err != nil {
		return applyResult{}, err
	}
	entries[change.Path] = types.Entry{Path: change.Path, Type: types.EntryText, Content: encoded}
	return applyResult{change: types.Change{Op: types.OpApplyTextPatch, Path: change.Path, UnifiedDiff: change.UnifiedDiff}}, nil
}
