// Package persist mirrors selection state to shareable URLs and a local
// session store.
package persist

import (
	"net/url"
	"strings"
)

// QueryParam is the query-string parameter carrying the selected
// environment ids as a single comma-joined value.
const QueryParam = "envs"

// EncodeSelection joins ids into the envs parameter value.
func EncodeSelection(ids []string) string {
	return strings.Join(ids, ",")
}

// DecodeSelection splits a comma-joined envs value, trims blanks, drops
// duplicates, and keeps only ids accepted by the filter.
func DecodeSelection(raw string, keep func(string) bool) []string {
	var out []string
	seen := make(map[string]bool)
	for _, id := range strings.Split(raw, ",") {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if keep != nil && !keep(id) {
			continue
		}
		out = append(out, id)
	}
	return out
}

// ShareURL builds a shareable path carrying the current selection.
func ShareURL(path string, ids []string) string {
	if len(ids) == 0 {
		return path
	}
	v := url.Values{}
	v.Set(QueryParam, EncodeSelection(ids))
	return path + "?" + v.Encode()
}
