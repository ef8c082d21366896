package commit

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
)

// jsonPointerGet resolves an RFC-6901 JSON Pointer against doc. pointer=""
// refers to the whole document. Returns false if any segment is absent.
func jsonPointerGet(doc []byte, pointer string) (json.RawMessage, bool) {
	if pointer == "" {
		return json.RawMessage(doc), true
	}
	var current interface{}
	if err := json.Unmarshal(doc, &current); err != nil {
		return nil, false
	}
	for _, tok := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		tok = strings.ReplaceAll(strings.ReplaceAll(tok, "~1", "/"), "~0", "~")
		switch v := current.(type) {
		case map[string]interface{}:
			next, ok := v[tok]
			if !ok {
				return nil, false
			}
			current = next
		case []interface{}:
			idx, err := strconv.Atoi(tok)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			current = v[idx]
		default:
			return nil, false
		}
	}
	out, err := json.Marshal(current)
	if err != nil {
		return nil, false
	}
	return json.RawMessage(out), true
}

// jsonEqual compares two JSON documents by decoded value rather than raw
// bytes, so differing whitespace or key order doesn't register as a change.
func jsonEqual(a, b json.RawMessage) bool {
	var av, bv interface{}
	if json.Unmarshal(a, &av) != nil || json.Unmarshal(b, &bv) != nil {
		return bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b))
	}
	return reflect.DeepEqual(av, bv)
}

func decodeOpString(raw json.RawMessage) string {
	var s string
	_ = json.Unmarshal(raw, &s)
	return s
}
