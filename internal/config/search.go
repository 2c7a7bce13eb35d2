package config

import (
	"os"
	"path/filepath"

	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

// Search collects the directory roots and identity values that drive source
// lookup for one pipeline instance.
type Search struct {
	Root       string // installation root holding recipes/ and primitives/
	RecipeDir  string // user override search path for recipes, list-separated
	PrimDir    string // user override search path for primitives, list-separated
	DataOut    string // working directory for products and the event log
	Instrument string // active instrument name
}

// SearchFromEnv reads the pipeline's conventional environment variables.
func SearchFromEnv() Search {
	return Search{
		Root:       os.Getenv("ORAC_DIR"),
		RecipeDir:  os.Getenv("ORAC_RECIPE_DIR"),
		PrimDir:    os.Getenv("ORAC_PRIMITIVE_DIR"),
		DataOut:    os.Getenv("ORAC_DATA_OUT"),
		Instrument: os.Getenv("ORAC_INSTRUMENT"),
	}
}

// WorkDir is DataOut, or the process working directory when unset.
func (s Search) WorkDir() string {
	if s.DataOut != "" {
		return s.DataOut
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// RecipeOverride splits the recipe override path into directories.
func (s Search) RecipeOverride() []string { return splitPath(s.RecipeDir) }

// PrimitiveOverride splits the primitive override path into directories.
func (s Search) PrimitiveOverride() []string { return splitPath(s.PrimDir) }

// RecipeDerived lists the recipe directories under the installation root:
// the instrument tree first, then one tree per generic observing mode, then
// the general fallback tree.
func (s Search) RecipeDerived() []string { return s.derived("recipes") }

// PrimitiveDerived lists the primitive directories under the installation
// root, in the same order as RecipeDerived.
func (s Search) PrimitiveDerived() []string { return s.derived("primitives") }

func (s Search) derived(kind string) []string {
	if s.Root == "" {
		return nil
	}
	base := filepath.Join(s.Root, kind)
	var dirs []string
	if s.Instrument != "" {
		dirs = append(dirs, filepath.Join(base, s.Instrument))
	}
	for _, m := range domain.GenericModes() {
		dirs = append(dirs, filepath.Join(base, string(m)))
	}
	return append(dirs, filepath.Join(base, "general"))
}

func splitPath(p string) []string {
	if p == "" {
		return nil
	}
	var dirs []string
	for _, d := range filepath.SplitList(p) {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}
