// Package params loads recipe parameter files: ini sections keyed by recipe
// name, with an optional object-specific section merged on top. The merged
// values reach primitives through RecipeContext: bare keys answer
// ${RECPAR.key} references, and PRIMITIVE.key entries override the
// arguments a recipe passes to that primitive.
package params

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// Values is the merged parameter view for one recipe/object pair.
type Values map[string]string

// Load reads an ini parameter file and merges the [RECIPE] section with
// [RECIPE:OBJECT], the object-specific section taking precedence. An empty
// object skips the override section. Recipes without a section get empty
// Values; a file that cannot be read or parsed is an error.
func Load(path, recipe, object string) (Values, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load parameter file %s: %w", path, err)
	}

	sections := []string{recipe}
	if object != "" {
		sections = append(sections, recipe+":"+object)
	}

	v := Values{}
	for _, name := range sections {
		sec, err := cfg.GetSection(name)
		if err != nil {
			continue
		}
		for _, key := range sec.KeyStrings() {
			v[key] = sec.Key(key).String()
		}
	}
	return v, nil
}

// List splits the comma-separated value of key into its trimmed elements,
// preserving order. A missing key yields nil; a plain value yields one
// element.
func (v Values) List(key string) []string {
	raw, ok := v[key]
	if !ok {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
