package commit

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cuemby/ridgeline/pkg/rerr"
	"github.com/cuemby/ridgeline/pkg/types"
)

// evalJSONPathExpr applies a single dot/bracket expression ("$.a.b[0]")
// against a JSON document, returning the matched sub-document. There is no
// third-party JSON-path evaluator in the dependency set this module draws
// from, so this is a deliberately narrow evaluator: dotted field access and
// numeric bracket indexing only, enough for the expression chains the
// metadata layer and mirror configuration actually produce.
func evalJSONPathExpr(doc json.RawMessage, expr string) (json.RawMessage, error) {
	expr = strings.TrimPrefix(strings.TrimSpace(expr), "$")

	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '.', '[', ']':
			flush()
		default:
			cur.WriteByte(expr[i])
		}
	}
	flush()

	var current interface{}
	if err := json.Unmarshal(doc, &current); err != nil {
		return nil, err
	}
	for _, tok := range tokens {
		switch v := current.(type) {
		case map[string]interface{}:
			next, ok := v[tok]
			if !ok {
				return nil, fmt.Errorf("no match for field %q", tok)
			}
			current = next
		case []interface{}:
			idx, err := strconv.Atoi(tok)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("no match for index %q", tok)
			}
			current = v[idx]
		default:
			return nil, fmt.Errorf("cannot index into scalar at %q", tok)
		}
	}
	out, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(out), nil
}

// runQuery resolves q against a materialized snapshot.
func runQuery(entries map[string]types.Entry, q types.Query) (types.Entry, error) {
	entry, ok := entries[q.Path]
	if !ok {
		return types.Entry{}, rerr.New(rerr.EntryNotFound, q.Path, "entry not found")
	}

	switch q.Type {
	case types.QueryIdentity:
		return entry, nil
	case types.QueryIdentityJSON:
		if entry.Type != types.EntryJSON {
			return types.Entry{}, rerr.New(rerr.QueryExecution, q.Path, "entry is not JSON")
		}
		return entry, nil
	case types.QueryIdentityText:
		if entry.Type != types.EntryText {
			return types.Entry{}, rerr.New(rerr.QueryExecution, q.Path, "entry is not TEXT")
		}
		return entry, nil
	case types.QueryJSONPath:
		if entry.Type != types.EntryJSON {
			return types.Entry{}, rerr.New(rerr.QueryExecution, q.Path, "entry is not JSON")
		}
		content := entry.Content
		for _, expr := range q.Expressions {
			next, err := evalJSONPathExpr(content, expr)
			if err != nil {
				return types.Entry{}, rerr.Wrap(rerr.QueryExecution, q.Path, err)
			}
			content = next
		}
		return types.Entry{Path: entry.Path, Type: types.EntryJSON, Content: content, Revision: entry.Revision}, nil
	default:
		return types.Entry{}, rerr.New(rerr.QueryExecution, q.Path, "unknown query type "+string(q.Type))
	}
}

// runMerge right-folds the JSON documents named by mq.Sources (skipping
// absent optional ones), then applies mq.Expressions to the merged result.
func runMerge(entries map[string]types.Entry, mq types.MergeQuery) (types.Entry, error) {
	var merged interface{}
	found := false

	for _, src := range mq.Sources {
		entry, ok := entries[src.Path]
		if !ok {
			if src.Optional {
				continue
			}
			return types.Entry{}, rerr.New(rerr.EntryNotFound, src.Path, "merge source not found")
		}
		if entry.Type != types.EntryJSON {
			return types.Entry{}, rerr.New(rerr.QueryExecution, src.Path, "merge source is not JSON")
		}
		var v interface{}
		if err := json.Unmarshal(entry.Content, &v); err != nil {
			return types.Entry{}, rerr.Wrap(rerr.QueryExecution, src.Path, err)
		}
		if !found {
			merged, found = v, true
			continue
		}
		next, err := deepMerge(merged, v)
		if err != nil {
			return types.Entry{}, rerr.Wrap(rerr.QueryExecution, src.Path, err)
		}
		merged = next
	}
	if !found {
		return types.Entry{}, rerr.New(rerr.EntryNotFound, "", "all merge sources are optional and absent")
	}

	for _, expr := range mq.Expressions {
		encoded, err := json.Marshal(merged)
		if err != nil {
			return types.Entry{}, err
		}
		next, err := evalJSONPathExpr(encoded, expr)
		if err != nil {
			return types.Entry{}, rerr.Wrap(rerr.QueryExecution, "", err)
		}
		if err := json.Unmarshal(next, &merged); err != nil {
			return types.Entry{}, err
		}
	}

	out, err := json.Marshal(merged)
	if err != nil {
		return types.Entry{}, err
	}
	return types.Entry{Type: types.EntryJSON, Content: out}, nil
}

// deepMerge right-folds rhs onto lhs: objects merge key-wise, arrays and
// scalars are replaced wholesale, and a map/non-map or array/non-array
// mismatch at the same sub-path is an error.
func deepMerge(lhs, rhs interface{}) (interface{}, error) {
	lm, lok := lhs.(map[string]interface{})
	rm, rok := rhs.(map[string]interface{})
	if lok && rok {
		out := make(map[string]interface{}, len(lm))
		for k, v := range lm {
			out[k] = v
		}
		for k, v := range rm {
			if existing, ok := out[k]; ok {
				merged, err := deepMerge(existing, v)
				if err != nil {
					return nil, err
				}
				out[k] = merged
			} else {
				out[k] = v
			}
		}
		return out, nil
	}
	if lok != rok {
		return nil, fmt.Errorf("type mismatch merging object with non-object")
	}

	_, lArr := lhs.([]interface{})
	_, rArr := rhs.([]interface{})
	if lArr != rArr {
		return nil, fmt.Errorf("type mismatch merging array with non-array")
	}

	return rhs, nil
}
