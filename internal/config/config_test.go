package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEngines(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engines.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadEngines(t *testing.T) {
	t.Run("Full Definition", func(t *testing.T) {
		t.Setenv("STARLINK_DIR", "/star")
		path := writeEngines(t, `
engines:
  - name: kappa
    protocol: adam
    class: kappa_mon
    path: ${STARLINK_DIR}/bin/kappa/kappa_mon
    env:
      ADAM_ABORT: "1"
      MSG_DIR: ${STARLINK_DIR}/msg
    startup_grace: 5s
  - name: extractor
    protocol: mcp
    path: /usr/local/bin/extractor-mcp
    args: ["--quiet"]
`)

		defs, err := LoadEngines(path)
		require.NoError(t, err)
		require.Len(t, defs, 2)

		kappa := defs["kappa"]
		assert.Equal(t, "adam", kappa.Protocol)
		assert.Equal(t, "kappa_mon", kappa.Class)
		assert.Equal(t, "/star/bin/kappa/kappa_mon", kappa.Path)
		assert.Equal(t, "1", kappa.Env["ADAM_ABORT"])
		assert.Equal(t, "/star/msg", kappa.Env["MSG_DIR"])
		assert.Equal(t, "5s", kappa.Extra["startup_grace"])

		ex := defs["extractor"]
		assert.Equal(t, "mcp", ex.Protocol)
		assert.Equal(t, []string{"--quiet"}, ex.Args)
	})

	t.Run("Missing Name Is Rejected", func(t *testing.T) {
		_, err := LoadEngines(writeEngines(t, "engines:\n  - protocol: adam\n    path: /bin/x\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "has no name")
	})

	t.Run("Missing Protocol Is Rejected", func(t *testing.T) {
		_, err := LoadEngines(writeEngines(t, "engines:\n  - name: kappa\n    path: /bin/x\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "has no protocol")
	})

	t.Run("Duplicate Names Are Rejected", func(t *testing.T) {
		_, err := LoadEngines(writeEngines(t, `
engines:
  - name: kappa
    protocol: adam
    path: /bin/x
  - name: kappa
    protocol: adam
    path: /bin/y
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "defined twice")
	})

	t.Run("Unreadable File", func(t *testing.T) {
		_, err := LoadEngines(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}

func TestSearchFromEnv(t *testing.T) {
	t.Setenv("ORAC_DIR", "/opt/oracdr")
	t.Setenv("ORAC_RECIPE_DIR", "/home/obs/recipes:/site/recipes")
	t.Setenv("ORAC_PRIMITIVE_DIR", "")
	t.Setenv("ORAC_DATA_OUT", "/data/out")
	t.Setenv("ORAC_INSTRUMENT", "SCUBA2")

	s := SearchFromEnv()
	assert.Equal(t, "/opt/oracdr", s.Root)
	assert.Equal(t, "SCUBA2", s.Instrument)
	assert.Equal(t, "/data/out", s.WorkDir())
	assert.Equal(t, []string{"/home/obs/recipes", "/site/recipes"}, s.RecipeOverride())
	assert.Nil(t, s.PrimitiveOverride())
}

func TestSearch_DerivedDirs(t *testing.T) {
	s := Search{Root: "/opt/oracdr", Instrument: "SCUBA2"}

	assert.Equal(t, []string{
		"/opt/oracdr/primitives/SCUBA2",
		"/opt/oracdr/primitives/imaging",
		"/opt/oracdr/primitives/spectroscopy",
		"/opt/oracdr/primitives/ifu",
		"/opt/oracdr/primitives/heterodyne",
		"/opt/oracdr/primitives/general",
	}, s.PrimitiveDerived())

	t.Run("Instrument Tree Is Skipped Without An Instrument", func(t *testing.T) {
		noInst := Search{Root: "/opt/oracdr"}
		dirs := noInst.RecipeDerived()
		require.NotEmpty(t, dirs)
		assert.Equal(t, "/opt/oracdr/recipes/imaging", dirs[0])
		assert.Equal(t, "/opt/oracdr/recipes/general", dirs[len(dirs)-1])
	})

	t.Run("No Root Means No Derived Tier", func(t *testing.T) {
		assert.Nil(t, Search{}.PrimitiveDerived())
	})
}
