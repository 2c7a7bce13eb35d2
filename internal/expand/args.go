package expand

import (
	"fmt"
	"strings"
	"unicode"
)

// ArgToken is one parsed token of a directive argument string: either a
// key=value pair or a splat reference pulling in the stored arguments of
// another primitive.
type ArgToken struct {
	Key   string // empty for splats
	Value string // pair value, or the referenced primitive name for splats
	Splat bool
}

func (t ArgToken) String() string {
	if t.Splat {
		return "%" + t.Value
	}
	if strings.ContainsAny(t.Value, " \t") {
		return fmt.Sprintf("%s=%q", t.Key, t.Value)
	}
	return t.Key + "=" + t.Value
}

// ParseArgs parses a `key=value key2="two words" %_OTHER_` argument string.
// Values may be double-quoted to include spaces. A token without an equals
// sign must be a %-prefixed primitive name; it expands to that primitive's
// stored arguments when the call runs. In literal mode, values starting with
// an interpolation or reference sigil and splat tokens are rejected: recipes
// may only pass values known before execution starts.
func ParseArgs(s string, literal bool) ([]ArgToken, error) {
	fields, err := splitQuoted(s)
	if err != nil {
		return nil, err
	}
	var toks []ArgToken
	for _, f := range fields {
		eq := strings.IndexByte(f, '=')
		if eq < 0 {
			name, ok := strings.CutPrefix(f, "%")
			if !ok || !isPrimitiveName(name) {
				return nil, fmt.Errorf("argument token %q is neither key=value nor a %%_NAME_ reference", f)
			}
			if literal {
				return nil, fmt.Errorf("argument reference %q not allowed here, only literal values", f)
			}
			toks = append(toks, ArgToken{Value: name, Splat: true})
			continue
		}
		key, val := f[:eq], f[eq+1:]
		if key == "" {
			return nil, fmt.Errorf("argument token %q is missing its key", f)
		}
		if literal && strings.HasPrefix(val, "$") {
			return nil, fmt.Errorf("argument %s=%q not allowed here, only literal values", key, val)
		}
		toks = append(toks, ArgToken{Key: key, Value: val})
	}
	return toks, nil
}

// splitQuoted splits on whitespace, treating double-quoted runs as single
// fields with the quotes removed.
func splitQuoted(s string) ([]string, error) {
	var fields []string
	var b strings.Builder
	quoted := false
	flush := func() {
		if b.Len() > 0 {
			fields = append(fields, b.String())
			b.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
		case unicode.IsSpace(r) && !quoted:
			flush()
		default:
			b.WriteRune(r)
		}
	}
	if quoted {
		return nil, fmt.Errorf("unterminated quote in %q", s)
	}
	flush()
	return fields, nil
}
