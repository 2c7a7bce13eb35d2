package domain

import (
	"sort"
	"strings"
)

// Args is the keyed argument map of one primitive invocation. Values are
// plain strings; interpretation (numbers, switches, file names) is up to the
// receiving primitive.
type Args map[string]string

// Clone returns an independent copy. A nil receiver yields an empty map so
// callers can mutate the result unconditionally.
func (a Args) Clone() Args {
	out := make(Args, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Keys returns the argument names in sorted order for deterministic output.
func (a Args) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders the map as a canonical "k=v k2=v2" string, quoting values
// that contain spaces. Used in diagnostics and the call trail.
func (a Args) String() string {
	var b strings.Builder
	for i, k := range a.Keys() {
		if i > 0 {
			b.WriteByte(' ')
		}
		v := a[k]
		if strings.ContainsAny(v, " \t") {
			b.WriteString(k + "=\"" + v + "\"")
		} else {
			b.WriteString(k + "=" + v)
		}
	}
	return b.String()
}
